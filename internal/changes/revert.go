package changes

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
)

type scopeKind int

const (
	scopeAll scopeKind = iota
	scopeLastN
	scopeForFile
)

// Scope selects which backup entries a revert restores.
type Scope struct {
	kind scopeKind
	n    int
	path string
}

// All selects every backup entry.
func All() Scope { return Scope{kind: scopeAll} }

// LastN selects the n most recent entries by timestamp.
func LastN(n int) Scope { return Scope{kind: scopeLastN, n: n} }

// ForFile selects every entry protecting path.
func ForFile(path string) Scope { return Scope{kind: scopeForFile, path: path} }

func (s Scope) String() string {
	switch s.kind {
	case scopeLastN:
		return fmt.Sprintf("last %d", s.n)
	case scopeForFile:
		return fmt.Sprintf("file %s", s.path)
	default:
		return "all"
	}
}

// Reverter restores files from BackupStore entries.
type Reverter struct {
	guard *PathGuard
	store *BackupStore
	out   io.Writer
}

// NewReverter creates a reverter. A nil out discards progress messages.
func NewReverter(guard *PathGuard, store *BackupStore, out io.Writer) *Reverter {
	if out == nil {
		out = io.Discard
	}
	return &Reverter{guard: guard, store: store, out: out}
}

// Revert restores the entries selected by scope, newest first. Restored
// entries are removed from the store; failed ones stay for a later retry.
// A scope matching nothing is a no-op, not an error.
func (r *Reverter) Revert(scope Scope) (RevertResult, error) {
	if !r.store.isInitialized() {
		return RevertResult{}, ErrNotInitialized
	}

	candidates := r.candidates(scope)
	if len(candidates) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "%s Nothing to revert.\n", yellow("→"))
		return RevertResult{}, nil
	}
	return r.revertEntries(candidates), nil
}

func (r *Reverter) candidates(scope Scope) []BackupEntry {
	var entries []BackupEntry
	switch scope.kind {
	case scopeLastN:
		entries = r.store.Recent(scope.n)
	case scopeForFile:
		entries = r.store.AllForFile(scope.path)
	default:
		entries = r.store.All()
	}
	// Newest first, so several snapshots of one file end at the oldest state.
	sortNewestFirst(entries)
	return entries
}

func (r *Reverter) revertEntries(entries []BackupEntry) RevertResult {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	var result RevertResult
	for _, e := range entries {
		if err := r.restore(e); err != nil {
			result.Failed++
			result.Outcomes = append(result.Outcomes, Outcome{
				FilePath: e.FilePath,
				Kind:     KindRevertFailed,
				Error:    err.Error(),
				BackupID: e.ID,
			})
			fmt.Fprintf(r.out, "%s Failed to revert %s: %v\n", red("✗"), e.FilePath, err)
			continue
		}

		r.store.Remove(e.ID)
		result.Reverted++
		result.Outcomes = append(result.Outcomes, Outcome{
			FilePath: e.FilePath,
			Success:  true,
			BackupID: e.ID,
		})
		if e.Absent {
			fmt.Fprintf(r.out, "%s Removed: %s\n", green("✓"), e.FilePath)
		} else {
			fmt.Fprintf(r.out, "%s Reverted: %s\n", green("✓"), e.FilePath)
		}
	}
	return result
}

// restore puts one entry's snapshot back on disk. Paths are re-validated
// since records may have been edited on disk.
func (r *Reverter) restore(e BackupEntry) error {
	_, abs, err := r.guard.Resolve(e.FilePath)
	if err != nil {
		return newError(KindRevertFailed, e.FilePath, err)
	}

	if e.Absent {
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return newError(KindRevertFailed, e.FilePath, err)
		}
		return nil
	}

	mode := e.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return newError(KindRevertFailed, e.FilePath, err)
	}
	if err := os.WriteFile(abs, []byte(e.OriginalContent), mode); err != nil {
		return newError(KindRevertFailed, e.FilePath, err)
	}
	if e.Mode != 0 {
		if err := os.Chmod(abs, e.Mode); err != nil {
			return newError(KindRevertFailed, e.FilePath, err)
		}
	}
	return nil
}
