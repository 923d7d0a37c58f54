package llm

import (
	"fmt"
	"strings"

	"github.com/iter8/iter8-cli/internal/changes"
)

const defaultPlanSummary = "Generated changes based on feedback"

// rawPlan mirrors changes.GeneratedChanges with pointers so missing fields
// can be told apart from empty ones.
type rawPlan struct {
	Changes       *[]rawChange `json:"changes"`
	Summary       string       `json:"summary"`
	EstimatedTime string       `json:"estimatedTime"`
	RiskLevel     string       `json:"riskLevel"`
}

type rawChange struct {
	FilePath    *string  `json:"filePath"`
	Content     *string  `json:"content"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence"`
}

// ParsePlan turns model output into a changes.PlanResult. Output that is
// not a JSON object with a "changes" array, or whose entries lack filePath
// or content, is Malformed. Paths are not validated here; the applier
// does that for every descriptor.
func ParsePlan(text string) changes.PlanResult {
	res := Parse[rawPlan](text, ParseOptions{Context: "change plan"})
	if !res.Success {
		return changes.Malformed{Raw: text, Reason: res.Error}
	}
	raw := res.Data
	if raw.Changes == nil {
		return changes.Malformed{Raw: text, Reason: `missing "changes" array`}
	}

	plan := changes.GeneratedChanges{
		Summary:       strings.TrimSpace(raw.Summary),
		EstimatedTime: strings.TrimSpace(raw.EstimatedTime),
		Changes:       make([]changes.ChangeDescriptor, 0, len(*raw.Changes)),
	}
	if plan.Summary == "" {
		plan.Summary = defaultPlanSummary
	}
	if level := changes.RiskLevel(strings.ToLower(strings.TrimSpace(raw.RiskLevel))); level.IsValid() {
		plan.RiskLevel = level
	}

	for i, c := range *raw.Changes {
		if c.FilePath == nil || strings.TrimSpace(*c.FilePath) == "" {
			return changes.Malformed{Raw: text, Reason: fmt.Sprintf("change %d has no filePath", i+1)}
		}
		if c.Content == nil {
			return changes.Malformed{Raw: text, Reason: fmt.Sprintf("change %d (%s) has no content", i+1, *c.FilePath)}
		}
		plan.Changes = append(plan.Changes, changes.ChangeDescriptor{
			FilePath:    strings.TrimSpace(*c.FilePath),
			Content:     *c.Content,
			Description: strings.TrimSpace(c.Description),
			Confidence:  clampConfidence(c.Confidence),
		})
	}
	return changes.Parsed{Plan: plan}
}

func clampConfidence(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c
	// Some models answer in percent.
	if v > 1 && v <= 100 {
		v /= 100
	}
	v = min(max(v, 0), 1)
	return &v
}
