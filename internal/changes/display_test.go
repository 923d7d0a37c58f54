package changes

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func confidence(v float64) *float64 { return &v }

func TestGeneratedChangesRisk(t *testing.T) {
	tests := []struct {
		name string
		plan GeneratedChanges
		want RiskLevel
	}{
		{name: "declared", plan: GeneratedChanges{RiskLevel: RiskHigh}, want: RiskHigh},
		{name: "no confidence", plan: GeneratedChanges{Changes: []ChangeDescriptor{{FilePath: "a"}}}, want: RiskUnknown},
		{
			name: "high confidence",
			plan: GeneratedChanges{Changes: []ChangeDescriptor{{Confidence: confidence(0.9)}, {Confidence: confidence(0.85)}}},
			want: RiskLow,
		},
		{
			name: "lowest wins",
			plan: GeneratedChanges{Changes: []ChangeDescriptor{{Confidence: confidence(0.9)}, {Confidence: confidence(0.6)}}},
			want: RiskMedium,
		},
		{
			name: "low confidence",
			plan: GeneratedChanges{Changes: []ChangeDescriptor{{Confidence: confidence(0.2)}}},
			want: RiskHigh,
		},
		{
			name: "invalid declared level falls back",
			plan: GeneratedChanges{RiskLevel: "catastrophic", Changes: []ChangeDescriptor{{Confidence: confidence(0.95)}}},
			want: RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.plan.Risk())
		})
	}
}

func TestDisplayChanges(t *testing.T) {
	content := strings.Repeat("line\n", 25) + "last"
	p := GeneratedChanges{
		Summary:       "Add dark mode",
		EstimatedTime: "5 minutes",
		Changes: []ChangeDescriptor{
			{FilePath: "src/theme.ts", Content: content, Description: "Add theme toggle", Confidence: confidence(0.87)},
			{FilePath: "src/app.ts", Content: "short"},
		},
	}

	var buf bytes.Buffer
	DisplayChanges(&buf, p, DefaultPreviewLines)
	out := buf.String()

	assert.Contains(t, out, "Change Preview:")
	assert.Contains(t, out, "Summary: Add dark mode")
	assert.Contains(t, out, "Estimated Time: 5 minutes")
	assert.Contains(t, out, "Risk Level: LOW")
	assert.Contains(t, out, "Files to modify (2):")
	assert.Contains(t, out, "1. src/theme.ts")
	assert.Contains(t, out, "Confidence: 87%")
	assert.Contains(t, out, "Description: Add theme toggle")
	assert.Contains(t, out, "... (6 more lines)")
	assert.Contains(t, out, "Description: Update src/app.ts")
	assert.NotContains(t, out, "last")
}

func TestDisplayChangesEmptyPlan(t *testing.T) {
	var buf bytes.Buffer
	DisplayChanges(&buf, GeneratedChanges{}, DefaultPreviewLines)

	assert.Contains(t, buf.String(), "No summary provided")
	assert.Contains(t, buf.String(), "Risk Level: UNKNOWN")
	assert.Contains(t, buf.String(), "No changes to apply.")
}

func TestPrintApplySummary(t *testing.T) {
	var buf bytes.Buffer
	PrintApplySummary(&buf, ApplySummary{
		Outcomes: []Outcome{
			{FilePath: "a.txt", Success: true},
			{FilePath: "b.txt", Success: true, Warning: "disk full"},
			{FilePath: "../c.txt", Kind: KindUnsafePath, Error: "path escapes the project root"},
		},
		SuccessCount: 2,
		FailureCount: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "2 applied, 1 failed")
	assert.Contains(t, out, "✓ a.txt")
	assert.Contains(t, out, "(no backup: disk full)")
	assert.Contains(t, out, "✗ ../c.txt [UnsafePath]: path escapes the project root")
}

func TestPrintRevertResult(t *testing.T) {
	var buf bytes.Buffer
	PrintRevertResult(&buf, RevertResult{})
	assert.Empty(t, buf.String())

	PrintRevertResult(&buf, RevertResult{
		Reverted: 1,
		Failed:   1,
		Outcomes: []Outcome{{FilePath: "x.txt", Error: "permission denied"}},
	})
	assert.Contains(t, buf.String(), "1 reverted, 1 failed")
	assert.Contains(t, buf.String(), "✗ x.txt: permission denied")
}

func TestPrintBackups(t *testing.T) {
	var buf bytes.Buffer
	PrintBackups(&buf, nil)
	assert.Contains(t, buf.String(), "No backups.")

	buf.Reset()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	PrintBackups(&buf, []BackupEntry{
		{ID: "0123456789abcdef", FilePath: "src/a.ts", OriginalContent: "abc", Timestamp: ts},
		{ID: "fedcba98", FilePath: "src/new.ts", Absent: true, Timestamp: ts},
	})
	out := buf.String()
	assert.Contains(t, out, "01234567  src/a.ts (3 bytes)")
	assert.Contains(t, out, "fedcba98  src/new.ts (new file)")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}
