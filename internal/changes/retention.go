package changes

import (
	"fmt"
	"log/slog"
	"sort"
)

const (
	// DefaultCeiling is the number of backup entries that triggers eviction.
	DefaultCeiling = 100
	// DefaultEvictPercent is the share of entries evicted once the ceiling is hit.
	DefaultEvictPercent = 20
)

// RetentionPolicy caps the size of a BackupStore.
type RetentionPolicy struct {
	// Ceiling is the entry count at which eviction runs; <= 0 disables it.
	Ceiling int
	// EvictPercent is the share of entries (oldest first) removed per run.
	EvictPercent int
}

// DefaultRetentionPolicy returns the 100-entry / 20% policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{Ceiling: DefaultCeiling, EvictPercent: DefaultEvictPercent}
}

// Validate checks if the policy has valid values
func (p RetentionPolicy) Validate() error {
	if p.Ceiling < 0 {
		return fmt.Errorf("ceiling cannot be negative (got %d)", p.Ceiling)
	}
	if p.EvictPercent < 1 || p.EvictPercent > 100 {
		return fmt.Errorf("evict percent must be between 1 and 100 (got %d)", p.EvictPercent)
	}
	return nil
}

// EvictionCount returns how many entries to evict from a store holding count
// entries: floor(count * EvictPercent / 100), at least 1 once the ceiling is
// reached, and 0 below it.
func (p RetentionPolicy) EvictionCount(count int) int {
	if p.Ceiling <= 0 || count < p.Ceiling {
		return 0
	}
	n := count * p.EvictPercent / 100
	if n < 1 {
		n = 1
	}
	if n > count {
		n = count
	}
	return n
}

// Victims returns the ids of the entries to evict, oldest first by timestamp.
func (p RetentionPolicy) Victims(entries []BackupEntry) []string {
	n := p.EvictionCount(len(entries))
	if n == 0 {
		return nil
	}

	sorted := make([]BackupEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	ids := make([]string, 0, n)
	for _, e := range sorted[:n] {
		ids = append(ids, e.ID)
	}
	return ids
}

// Enforce evicts entries from store if it has reached the ceiling and
// returns how many were removed. Removal covers both memory and disk.
func (p RetentionPolicy) Enforce(store *BackupStore) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return p.enforceLocked(store)
}

func (p RetentionPolicy) enforceLocked(store *BackupStore) int {
	victims := p.Victims(store.allLocked())
	for _, id := range victims {
		store.removeLocked(id)
	}
	if len(victims) > 0 {
		slog.Debug("Evicted old backups",
			"evicted", len(victims),
			"remaining", len(store.entries),
			"ceiling", p.Ceiling)
	}
	return len(victims)
}
