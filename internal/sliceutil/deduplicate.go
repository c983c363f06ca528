// Package sliceutil provides generic slice manipulation utilities.
package sliceutil

// Deduplicate returns items without repeats, keeping the first occurrence
// of every key in input order. keyFunc extracts the comparison key.
//
// Example:
//
//	cohorts := []timetable.Cohort{{Code: "DE1"}, {Code: "EN2"}, {Code: "DE1"}}
//	unique := sliceutil.Deduplicate(cohorts, func(c timetable.Cohort) string { return c.Code })
//	// Result: [{Code: "DE1"}, {Code: "EN2"}]
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

// Unique is Deduplicate for comparable values keyed by themselves.
func Unique[T comparable](items []T) []T {
	return Deduplicate(items, func(v T) T { return v })
}
