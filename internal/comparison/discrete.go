package comparison

import (
	"sort"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// DiffMetaTags returns the meta keys whose values differ between base
// and fresh. A key present on only one side appears with the absent
// side as "". Returns nil when nothing changed.
func DiffMetaTags(base, fresh map[string]string) map[string]domain.ValueChange {
	diff := make(map[string]domain.ValueChange)
	for key, oldVal := range base {
		if newVal, ok := fresh[key]; !ok || newVal != oldVal {
			diff[key] = domain.ValueChange{Old: oldVal, New: fresh[key]}
		}
	}
	for key, newVal := range fresh {
		if _, ok := base[key]; !ok {
			diff[key] = domain.ValueChange{Old: "", New: newVal}
		}
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}

// DiffStringSets treats base and fresh as sets and reports additions
// and removals, sorted for stable output. Order changes and duplicates
// within one side are not changes.
func DiffStringSets(base, fresh []string) domain.SetDiff {
	baseSet := toSet(base)
	freshSet := toSet(fresh)

	var diff domain.SetDiff
	for s := range freshSet {
		if !baseSet[s] {
			diff.Added = append(diff.Added, s)
		}
	}
	for s := range baseSet {
		if !freshSet[s] {
			diff.Removed = append(diff.Removed, s)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

// CanonicalChange returns nil when the canonical URL is unchanged,
// including the case where neither side declares one.
func CanonicalChange(base, fresh string) *domain.ValueChange {
	if base == fresh {
		return nil
	}
	return &domain.ValueChange{Old: base, New: fresh}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
