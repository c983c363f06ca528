package schedule

import (
	"cmp"
	"slices"
	"time"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// DefaultRollingWindow is the number of weeks PickRollingWeeks returns when
// no size is given.
const DefaultRollingWindow = 2

// TodayInAlmaty returns now's calendar date on campus as YYYY-MM-DD.
func TodayInAlmaty(now time.Time) string {
	return now.In(timetable.Almaty).Format(time.DateOnly)
}

// CalendarTitle is the display name of a group's calendar feed.
func CalendarTitle(groupCode string) string {
	return "DKU " + groupCode
}

// ResolveGroup maps a user supplied group parameter to a group's raw code.
// An empty parameter selects the first group. The parameter may be the raw,
// Russian or German code or the slug of the Russian code. Returns "" when
// nothing matches.
func ResolveGroup(groups []timetable.GroupOption, param string) string {
	if param == "" {
		if len(groups) == 0 {
			return ""
		}
		return groups[0].CodeRaw
	}
	for _, g := range groups {
		if g.CodeRaw == param || g.CodeRu == param || g.CodeDe == param || Slugify(g.CodeRu) == param {
			return g.CodeRaw
		}
	}
	return ""
}

// GroupSlug returns the URL slug of the group with the given raw code.
func GroupSlug(groups []timetable.GroupOption, codeRaw string) string {
	for _, g := range groups {
		if g.CodeRaw == codeRaw {
			return Slugify(g.CodeRu)
		}
	}
	return Slugify(codeRaw)
}

// ResolveWeekByDate picks the current teaching week: the last week that
// starts on or before today in Almaty. On Sundays the coming week is chosen.
// Falls back to the first week, or "" when there are none.
func ResolveWeekByDate(weeks []timetable.WeekOption, now time.Time) string {
	if len(weeks) == 0 {
		return ""
	}

	local := now.In(timetable.Almaty)
	if local.Weekday() == time.Sunday {
		local = local.AddDate(0, 0, 1)
	}
	target := local.Format(time.DateOnly)

	best := weeks[0].Value
	for _, w := range weeks {
		if w.StartDateISO <= target {
			best = w.Value
		}
	}
	return best
}

// ResolveWeek returns param when it names a known week and otherwise the
// week chosen by ResolveWeekByDate.
func ResolveWeek(weeks []timetable.WeekOption, param string, now time.Time) string {
	if param != "" {
		for _, w := range weeks {
			if w.Value == param {
				return w.Value
			}
		}
	}
	return ResolveWeekByDate(weeks, now)
}

// PickRollingWeeks returns up to windowSize consecutive weeks for a
// calendar feed. Weeks are ordered by start date. When the anchor week
// starts after today the window begins at the anchor; otherwise it begins
// at the last week that has already started. windowSize 0 means
// DefaultRollingWindow.
func PickRollingWeeks(weeks []timetable.WeekOption, anchor string, now time.Time, windowSize int) []timetable.WeekOption {
	if len(weeks) == 0 {
		return []timetable.WeekOption{}
	}
	if windowSize == 0 {
		windowSize = DefaultRollingWindow
	}
	size := max(1, windowSize)

	sorted := slices.Clone(weeks)
	slices.SortStableFunc(sorted, func(a, b timetable.WeekOption) int {
		return cmp.Compare(a.StartDateISO, b.StartDateISO)
	})

	today := TodayInAlmaty(now)
	anchorIdx := slices.IndexFunc(sorted, func(w timetable.WeekOption) bool { return w.Value == anchor })

	idx := 0
	if anchorIdx >= 0 && sorted[anchorIdx].StartDateISO > today {
		idx = anchorIdx
	} else {
		for i, w := range sorted {
			if w.StartDateISO <= today {
				idx = i
			}
		}
	}

	return sorted[idx:min(idx+size, len(sorted))]
}
