package changes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBackupDir is the backup directory, relative to the project root.
const DefaultBackupDir = ".iter8_backups"

const recordExt = ".json"

// backupNamespace seeds the name-based UUIDs used as backup ids.
var backupNamespace = uuid.MustParse("6f1c3b9e-8a0d-4f55-9d5c-2a7e0b1d4c63")

// StoreConfig configures a BackupStore.
type StoreConfig struct {
	// Dir is the backup directory; relative paths are resolved against the
	// project root. Default: .iter8_backups
	Dir       string
	Retention RetentionPolicy
	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
}

// BackupStore holds pre-change file snapshots in memory, mirrored to one
// JSON record per entry in the backup directory.
type BackupStore struct {
	mu          sync.Mutex
	guard       *PathGuard
	dir         string
	retention   RetentionPolicy
	clock       func() time.Time
	entries     map[string]*BackupEntry
	order       []string // insertion order
	lastStamp   time.Time
	initialized bool
	skipped     int
}

// NewBackupStore creates a store for the guard's project root.
// Initialize must be called before use.
func NewBackupStore(guard *PathGuard, cfg StoreConfig) *BackupStore {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultBackupDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(guard.Root(), dir)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &BackupStore{
		guard:     guard,
		dir:       dir,
		retention: cfg.Retention,
		clock:     clock,
		entries:   make(map[string]*BackupEntry),
	}
}

// Dir returns the absolute backup directory.
func (s *BackupStore) Dir() string {
	return s.dir
}

// Initialize creates the backup directory if needed and loads records
// persisted by earlier processes. Corrupt records are skipped with a
// warning. Calling Initialize again is a no-op.
func (s *BackupStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", s.dir, err)
	}

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory %s: %w", s.dir, err)
	}

	var loaded []*BackupEntry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), recordExt) {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		entry, err := readRecord(path)
		if err != nil {
			s.skipped++
			slog.Warn("Skipping corrupt backup record",
				"kind", KindStoreCorrupt,
				"path", path,
				"error", err)
			continue
		}
		loaded = append(loaded, entry)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Timestamp.Before(loaded[j].Timestamp)
	})
	for _, e := range loaded {
		if _, dup := s.entries[e.ID]; dup {
			s.skipped++
			slog.Warn("Skipping duplicate backup record", "kind", KindStoreCorrupt, "id", e.ID)
			continue
		}
		s.insertLocked(e)
	}

	s.initialized = true
	slog.Debug("Backup store initialized", "dir", s.dir, "entries", len(s.entries), "skipped", s.skipped)
	return nil
}

// Skipped returns how many persisted records Initialize could not load.
func (s *BackupStore) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Create snapshots filePath and records it. If the file does not exist the
// entry is marked Absent. Retention runs before the new entry is inserted,
// so the new entry is never evicted by its own call.
//
// A failure to persist the record is logged and the in-memory entry is
// kept. A failure to read the original file returns a KindBackupFailed error
// and no entry is created.
func (s *BackupStore) Create(filePath string) (BackupEntry, error) {
	if !s.isInitialized() {
		return BackupEntry{}, ErrNotInitialized
	}

	clean, abs, err := s.guard.Resolve(filePath)
	if err != nil {
		return BackupEntry{}, err
	}

	entry := BackupEntry{FilePath: clean}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		entry.Absent = true
	case err != nil:
		return BackupEntry{}, newError(KindBackupFailed, clean, err)
	case info.IsDir():
		return BackupEntry{}, newError(KindBackupFailed, clean, errors.New("target is a directory"))
	default:
		content, err := os.ReadFile(abs)
		if err != nil {
			return BackupEntry{}, newError(KindBackupFailed, clean, err)
		}
		entry.OriginalContent = string(content)
		entry.Mode = info.Mode().Perm()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.retention.enforceLocked(s)

	entry.Timestamp = s.nextStampLocked()
	entry.ID = uuid.NewSHA1(backupNamespace,
		[]byte(clean+"\x00"+entry.Timestamp.Format(time.RFC3339Nano))).String()

	stored := entry
	s.insertLocked(&stored)

	if err := s.persistLocked(&stored); err != nil {
		slog.Warn("Failed to persist backup record; keeping in-memory copy",
			"kind", KindBackupFailed,
			"file", clean,
			"id", stored.ID,
			"error", err)
	}
	return entry, nil
}

// Count returns the number of live entries.
func (s *BackupStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns the entry with the given id.
func (s *BackupStore) Get(id string) (BackupEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return BackupEntry{}, false
	}
	return *e, true
}

// All returns every entry, oldest first by timestamp.
func (s *BackupStore) All() []BackupEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.allLocked()
	sortOldestFirst(all)
	return all
}

// Recent returns up to n entries, newest first by timestamp.
func (s *BackupStore) Recent(n int) []BackupEntry {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.allLocked()
	sortNewestFirst(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// AllForFile returns the entries protecting filePath, in no particular order.
func (s *BackupStore) AllForFile(filePath string) []BackupEntry {
	key := normalizeKey(filePath)
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []BackupEntry
	for _, id := range s.order {
		if e := s.entries[id]; e.FilePath == key {
			matches = append(matches, *e)
		}
	}
	return matches
}

// Remove deletes the entry from memory and, best-effort, from disk.
// It reports whether the entry existed.
func (s *BackupStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *BackupStore) isInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// nextStampLocked returns a UTC timestamp strictly after every earlier one,
// so recency ordering is total even when the clock stalls or steps back.
func (s *BackupStore) nextStampLocked() time.Time {
	now := s.clock().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	return now
}

func (s *BackupStore) insertLocked(e *BackupEntry) {
	s.entries[e.ID] = e
	s.order = append(s.order, e.ID)
	if e.Timestamp.After(s.lastStamp) {
		s.lastStamp = e.Timestamp
	}
}

func (s *BackupStore) removeLocked(id string) bool {
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if err := os.Remove(s.recordPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to delete backup record", "id", id, "error", err)
	}
	return true
}

func (s *BackupStore) allLocked() []BackupEntry {
	all := make([]BackupEntry, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, *s.entries[id])
	}
	return all
}

func (s *BackupStore) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

func (s *BackupStore) persistLocked(e *BackupEntry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup record: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return writeFileAtomic(s.recordPath(e.ID), data, 0644)
}

func readRecord(path string) (*BackupEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e BackupEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	switch {
	case e.ID == "":
		return nil, errors.New("record has no id")
	case e.FilePath == "":
		return nil, errors.New("record has no file path")
	case e.Timestamp.IsZero():
		return nil, errors.New("record has no timestamp")
	case e.Absent && e.OriginalContent != "":
		return nil, errors.New("absent record carries content")
	}
	return &e, nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func normalizeKey(p string) string {
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}

func sortNewestFirst(entries []BackupEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func sortOldestFirst(entries []BackupEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
