// Package feedback reads user feedback items from the remote feedback
// database and keeps a local SQLite cache of them.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Item is one piece of user feedback. Columns outside the core set are kept
// in Extra so schema additions on the remote side don't break reads.
type Item struct {
	ID        string         `json:"id"`
	Project   string         `json:"project"`
	Text      string         `json:"feedback"`
	CreatedAt time.Time      `json:"createdAt"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Source lists feedback grouped by project.
type Source interface {
	Projects(ctx context.Context) ([]string, error)
	ListByProject(ctx context.Context, project string) ([]Item, error)
}

// ErrNoSelection is returned when a feedback number is out of range.
var ErrNoSelection = errors.New("no feedback item with that number")

// Select returns the items for the given 1-based numbers, in order.
func Select(items []Item, numbers ...int) ([]Item, error) {
	selected := make([]Item, 0, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > len(items) {
			return nil, fmt.Errorf("%w: %d (have %d)", ErrNoSelection, n, len(items))
		}
		selected = append(selected, items[n-1])
	}
	return selected, nil
}

// ParseNumbers parses 1-based item numbers given as separate arguments or
// comma-separated lists, e.g. ["1", "3,4"].
func ParseNumbers(args []string) ([]int, error) {
	var numbers []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid feedback number %q", part)
			}
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return nil, fmt.Errorf("at least one feedback number is required")
	}
	return numbers, nil
}

// SortNewestFirst orders items by creation time, newest first, with ID as
// a tiebreaker.
func SortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// Summary returns the first line of the item text, cut to maxLen runes.
func (it Item) Summary(maxLen int) string {
	line := strings.TrimSpace(it.Text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	r := []rune(line)
	if maxLen > 3 && len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return line
}

// Attribute is one extra column of an item, rendered as text.
type Attribute struct {
	Key   string
	Value string
}

// Attributes returns the Extra columns sorted by key. Nil values are
// dropped.
func (it Item) Attributes() []Attribute {
	keys := make([]string, 0, len(it.Extra))
	for k, v := range it.Extra {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	attrs := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, Attribute{Key: k, Value: formatValue(it.Extra[k])})
	}
	return attrs
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case map[string]any, []any:
		if data, err := json.Marshal(x); err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}

// Sync copies every item of project from one source into the local cache
// and returns how many were written.
func Sync(ctx context.Context, from Source, to *SQLiteStore, project string) (int, error) {
	items, err := from.ListByProject(ctx, project)
	if err != nil {
		return 0, fmt.Errorf("failed to list feedback for %s: %w", project, err)
	}
	if err := to.Upsert(ctx, items...); err != nil {
		return 0, fmt.Errorf("failed to cache feedback: %w", err)
	}
	return len(items), nil
}
