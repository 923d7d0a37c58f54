package changes

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// Config configures a Service.
type Config struct {
	// Root is the project root; all change paths are relative to it.
	Root string
	// BackupDir defaults to DefaultBackupDir under Root.
	BackupDir     string
	Retention     RetentionPolicy
	FailurePolicy FailurePolicy
	// Output receives per-file progress lines (nil discards them).
	Output io.Writer
	Clock  func() time.Time
}

// Service is the entry point the CLI and REPL use. It owns one backup store
// and serialises apply and revert calls against it.
type Service struct {
	mu       sync.Mutex
	guard    *PathGuard
	store    *BackupStore
	applier  *Applier
	reverter *Reverter
}

// NewService wires a store, applier and reverter for cfg.Root.
// Initialize must be called before applying or reverting.
func NewService(cfg Config) (*Service, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if cfg.FailurePolicy != "" && !cfg.FailurePolicy.IsValid() {
		return nil, fmt.Errorf("invalid failure policy %q", cfg.FailurePolicy)
	}
	if cfg.Retention == (RetentionPolicy{}) {
		cfg.Retention = DefaultRetentionPolicy()
	}
	if err := cfg.Retention.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retention policy: %w", err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = DefaultBackupDir
	}
	if filepath.Clean(backupDir) == "." || (filepath.IsAbs(backupDir) && filepath.Clean(backupDir) == root) {
		return nil, fmt.Errorf("backup directory cannot be the project root")
	}

	// The backup directory is never a valid change target.
	var reserved []string
	if filepath.IsAbs(backupDir) {
		if rel, err := filepath.Rel(root, backupDir); err == nil && within(root, backupDir) {
			reserved = append(reserved, rel)
		}
	} else {
		reserved = append(reserved, backupDir)
	}

	guard, err := NewPathGuard(root, reserved...)
	if err != nil {
		return nil, err
	}

	store := NewBackupStore(guard, StoreConfig{
		Dir:       backupDir,
		Retention: cfg.Retention,
		Clock:     cfg.Clock,
	})
	reverter := NewReverter(guard, store, cfg.Output)
	applier := NewApplier(guard, store, reverter, cfg.FailurePolicy, cfg.Output)

	return &Service{
		guard:    guard,
		store:    store,
		applier:  applier,
		reverter: reverter,
	}, nil
}

// Initialize prepares the backup directory and loads earlier backups.
func (s *Service) Initialize() error {
	return s.store.Initialize()
}

// Root returns the absolute project root.
func (s *Service) Root() string {
	return s.guard.Root()
}

// Store exposes the underlying backup store.
func (s *Service) Store() *BackupStore {
	return s.store
}

// ApplyChanges applies a parsed plan. Malformed producer output cannot
// reach this point by construction.
func (s *Service) ApplyChanges(plan Parsed) (ApplySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.Apply(plan.Plan.Changes)
}

// RevertChanges restores the backups selected by scope.
func (s *Service) RevertChanges(scope Scope) (RevertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reverter.Revert(scope)
}

// BackupCount returns the number of live backup entries.
func (s *Service) BackupCount() int {
	return s.store.Count()
}

// Backups returns up to n backups, newest first.
func (s *Service) Backups(n int) []BackupEntry {
	return s.store.Recent(n)
}

// DisplayChanges writes a read-only preview of plan to w.
func (s *Service) DisplayChanges(w io.Writer, plan GeneratedChanges) {
	DisplayChanges(w, plan, DefaultPreviewLines)
}
