package changes

import (
	"fmt"
	"os"
	"time"
)

// ChangeDescriptor is a proposed modification to one file.
type ChangeDescriptor struct {
	// FilePath is relative to the project root.
	FilePath string `json:"filePath"`
	// Content is the full replacement text, not a diff.
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	// Confidence is advisory (0.0-1.0); nil when the producer gave none.
	Confidence *float64 `json:"confidence,omitempty"`
}

// DescriptionOrDefault returns the description, or a placeholder naming the file.
func (c ChangeDescriptor) DescriptionOrDefault() string {
	if c.Description != "" {
		return c.Description
	}
	return fmt.Sprintf("Update %s", c.FilePath)
}

// GeneratedChanges is the change plan produced by an LLM backend.
type GeneratedChanges struct {
	Changes       []ChangeDescriptor `json:"changes"`
	Summary       string             `json:"summary"`
	EstimatedTime string             `json:"estimatedTime,omitempty"`
	RiskLevel     RiskLevel          `json:"riskLevel,omitempty"`
}

// PlanResult is the outcome of turning producer output into a plan.
// It is either Parsed or Malformed.
type PlanResult interface {
	isPlanResult()
}

// Parsed carries a well-typed plan. It is the only input ApplyChanges accepts.
type Parsed struct {
	Plan GeneratedChanges
}

// Malformed carries producer output that could not be turned into a plan.
type Malformed struct {
	Raw    string
	Reason string
}

func (Parsed) isPlanResult()    {}
func (Malformed) isPlanResult() {}

// BackupEntry is a snapshot of a file taken immediately before a change.
// Entries are immutable after creation.
type BackupEntry struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
	// OriginalContent is empty when Absent is true.
	OriginalContent string `json:"originalContent"`
	// Absent marks that the file did not exist at backup time; reverting
	// such an entry deletes the file.
	Absent    bool        `json:"absent"`
	Mode      os.FileMode `json:"mode,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Outcome records what happened to one descriptor or one backup entry.
type Outcome struct {
	FilePath string    `json:"filePath"`
	Success  bool      `json:"success"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Error    string    `json:"error,omitempty"`
	BackupID string    `json:"backupId,omitempty"`
	// Warning is set when the write succeeded but the backup did not.
	Warning string `json:"warning,omitempty"`
}

// ApplySummary aggregates the outcomes of one Apply call.
type ApplySummary struct {
	Outcomes     []Outcome `json:"outcomes"`
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	// RolledBack is true when the all-or-nothing policy undid this call.
	RolledBack bool `json:"rolledBack,omitempty"`
}

// Failed returns the outcomes that did not succeed.
func (s ApplySummary) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}

// BackedUp counts the outcomes that left a backup entry behind. A write
// whose backup failed succeeds without one, so this can be lower than
// SuccessCount.
func (s ApplySummary) BackedUp() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.BackupID != "" {
			n++
		}
	}
	return n
}

// RevertResult aggregates the outcomes of one Revert call.
type RevertResult struct {
	Reverted int       `json:"revertedCount"`
	Failed   int       `json:"failedCount"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// RiskLevel is the advisory risk of a plan.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// IsValid checks if the risk level is one of the known values
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskUnknown:
		return true
	}
	return false
}

// Risk returns the plan's declared risk level, or one derived from the
// lowest confidence among its changes.
func (g GeneratedChanges) Risk() RiskLevel {
	if g.RiskLevel != "" && g.RiskLevel.IsValid() && g.RiskLevel != RiskUnknown {
		return g.RiskLevel
	}
	lowest := -1.0
	for _, c := range g.Changes {
		if c.Confidence == nil {
			continue
		}
		if lowest < 0 || *c.Confidence < lowest {
			lowest = *c.Confidence
		}
	}
	switch {
	case lowest < 0:
		return RiskUnknown
	case lowest >= 0.8:
		return RiskLow
	case lowest >= 0.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}
