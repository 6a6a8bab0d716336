package syncqueue

import (
	"fmt"
	"strings"
)

// Filter selects which items of an already-fetched queue are visible.
type Filter string

const (
	FilterAll     Filter = "ALL"
	FilterPending Filter = Filter(StatusPending)
	FilterSynced  Filter = Filter(StatusSynced)
	FilterFailed  Filter = Filter(StatusFailed)
)

func ParseFilter(s string) (Filter, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, string(FilterAll)) {
		return FilterAll, nil
	}
	st, err := ParseStatus(trimmed)
	if err != nil {
		return "", fmt.Errorf("unknown filter %q: want ALL, PENDING, SYNCED or FAILED", s)
	}
	return Filter(st), nil
}

func (f Filter) Matches(it Item) bool {
	return f == FilterAll || Status(f) == it.SyncStatus
}

// VisibleItems returns items unchanged for FilterAll, otherwise a new slice
// holding exactly the items whose status equals f, in their original order.
func VisibleItems(items []Item, f Filter) []Item {
	if f == FilterAll || f == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}
