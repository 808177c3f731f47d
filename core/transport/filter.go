package transport

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
)

// searchMinSim is the similarity ratio above which a field value matches a search term.
var searchMinSim = .7

// Filter selects items of a snapshot. Empty fields do not filter.
type Filter struct {
	// Search matches a case-insensitive substring of, or a value similar to, any string field.
	Search string
	Status string
	// Field restricts Search to one field.
	Field string
}

func (f Filter) IsZero() bool {
	return f.Search == "" && f.Status == "" && f.Field == ""
}

// Match applies the AND of the filter criteria on it.
func (f Filter) Match(it collection.Item) bool {
	if f.Status != "" && !strings.EqualFold(it.String(StatusField), f.Status) {
		return false
	}
	term := core.CleanString(f.Search, true)
	if term == "" {
		return true
	}
	if f.Field != "" {
		return matchValue(term, it[f.Field])
	}
	for _, v := range it {
		if matchValue(term, v) {
			return true
		}
	}
	return false
}

// Apply returns the items matching the filter, keeping their order.
func (f Filter) Apply(items []collection.Item) []collection.Item {
	if f.IsZero() {
		return items
	}
	matched := make([]collection.Item, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			matched = append(matched, it)
		}
	}
	return matched
}

func matchValue(term string, v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.ToLower(s)
	if strings.Contains(s, term) {
		return true
	}
	if len(term) < 3 {
		return false
	}
	return similarity(term, s) >= searchMinSim
}

func similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}

// StatusCount is the number of items having Status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CountByStatus tallies items per status, listing the statuses of resource first, in their
// declared order, then any unknown status alphabetically.
func CountByStatus(resource string, items []collection.Item) []StatusCount {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.String(StatusField)]++
	}

	out := make([]StatusCount, 0, len(counts))
	for _, s := range Statuses(resource) {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
		delete(counts, s)
	}
	extra := make([]string, 0, len(counts))
	for s := range counts {
		extra = append(extra, s)
	}
	sort.Strings(extra)
	for _, s := range extra {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
	}
	return out
}
