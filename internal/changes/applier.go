package changes

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
)

// FailurePolicy decides what Apply does after a descriptor fails.
type FailurePolicy string

const (
	// PolicyContinue keeps processing and reports partial success. No
	// implicit rollback; callers revert explicitly if they want to.
	PolicyContinue FailurePolicy = "continue"
	// PolicyAllOrNothing stops at the first failure, marks the remaining
	// descriptors skipped, and reverts what this call already wrote.
	PolicyAllOrNothing FailurePolicy = "all-or-nothing"
)

// IsValid checks if the policy is one of the known values
func (p FailurePolicy) IsValid() bool {
	return p == PolicyContinue || p == PolicyAllOrNothing
}

// Applier writes change descriptors to disk under backup protection.
type Applier struct {
	guard    *PathGuard
	store    *BackupStore
	reverter *Reverter
	policy   FailurePolicy
	out      io.Writer
}

// NewApplier creates an applier. A nil out discards progress messages; an
// empty policy means PolicyContinue.
func NewApplier(guard *PathGuard, store *BackupStore, reverter *Reverter, policy FailurePolicy, out io.Writer) *Applier {
	if policy == "" {
		policy = PolicyContinue
	}
	if out == nil {
		out = io.Discard
	}
	return &Applier{
		guard:    guard,
		store:    store,
		reverter: reverter,
		policy:   policy,
		out:      out,
	}
}

// Apply processes changes strictly in the given order, so a later
// descriptor targeting the same file sees the earlier one's write.
// Per-descriptor failures are reported in the summary, never returned;
// the only error is ErrNotInitialized.
func (a *Applier) Apply(changes []ChangeDescriptor) (ApplySummary, error) {
	if !a.store.isInitialized() {
		return ApplySummary{}, ErrNotInitialized
	}

	summary := ApplySummary{Outcomes: make([]Outcome, 0, len(changes))}
	var created []BackupEntry

	for i, change := range changes {
		outcome, entry := a.applyOne(change)
		if entry != nil {
			created = append(created, *entry)
		}
		summary.record(outcome)

		if !outcome.Success && a.policy == PolicyAllOrNothing {
			for _, rest := range changes[i+1:] {
				summary.record(Outcome{
					FilePath: rest.FilePath,
					Kind:     KindSkipped,
					Error:    fmt.Sprintf("not applied: %s failed", outcome.FilePath),
				})
			}
			summary.RolledBack = a.rollback(created)
			break
		}
	}
	return summary, nil
}

func (s *ApplySummary) record(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
}

func (a *Applier) applyOne(change ChangeDescriptor) (Outcome, *BackupEntry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	outcome := Outcome{FilePath: change.FilePath}

	clean, abs, err := a.guard.Resolve(change.FilePath)
	if err != nil {
		outcome.Kind = KindUnsafePath
		outcome.Error = err.Error()
		fmt.Fprintf(a.out, "%s Rejected %s: %v\n", red("✗"), change.FilePath, err)
		return outcome, nil
	}
	outcome.FilePath = clean

	var created *BackupEntry
	entry, err := a.store.Create(clean)
	if err != nil {
		// Backups are a safety net; the write still goes ahead.
		slog.Warn("Backup failed, applying change without it",
			"kind", KindBackupFailed,
			"file", clean,
			"error", err)
		outcome.Warning = err.Error()
	} else {
		outcome.BackupID = entry.ID
		created = &entry
	}

	if err := writeContent(abs, change.Content); err != nil {
		werr := newError(KindWriteFailed, clean, err)
		outcome.Kind = KindWriteFailed
		outcome.Error = werr.Error()
		fmt.Fprintf(a.out, "%s Failed to apply %s: %v\n", red("✗"), clean, err)
		return outcome, created
	}

	outcome.Success = true
	fmt.Fprintf(a.out, "%s Applied: %s\n", green("✓"), clean)
	return outcome, created
}

// rollback reverts the entries created by an aborted call, newest first,
// and reports whether every restore succeeded.
func (a *Applier) rollback(created []BackupEntry) bool {
	if len(created) == 0 {
		return true
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(a.out, "%s Rolling back %d change(s)...\n", yellow("→"), len(created))

	sortNewestFirst(created)
	result := a.reverter.revertEntries(created)
	return result.Failed == 0
}

// writeContent writes content verbatim, creating parent directories.
// Existing files keep their permissions.
func writeContent(abs, content string) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return err
	}
	return nil
}
