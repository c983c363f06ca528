package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

var testGroups = []timetable.GroupOption{
	{ID: 1, CodeRaw: "1-CS", CodeRu: "1-CS", CodeDe: "1-CS"},
	{ID: 2, CodeRaw: "1А-ИБ/A-IB", CodeRu: "1А-ИБ", CodeDe: "1A-IB"},
}

var testWeeks = []timetable.WeekOption{
	{Value: "03", StartDateISO: "2026-09-15"},
	{Value: "01", StartDateISO: "2026-09-01"},
	{Value: "02", StartDateISO: "2026-09-08"},
	{Value: "04", StartDateISO: "2026-09-22"},
}

// almaty builds an instant from an Almaty wall clock.
func almaty(date string, hour int) time.Time {
	d, err := time.ParseInLocation(time.DateOnly, date, timetable.Almaty)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func TestResolveGroup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		param    string
		expected string
	}{
		{"empty picks first", "", "1-CS"},
		{"raw code", "1А-ИБ/A-IB", "1А-ИБ/A-IB"},
		{"russian code", "1А-ИБ", "1А-ИБ/A-IB"},
		{"german code", "1A-IB", "1А-ИБ/A-IB"},
		{"slug", "1a-ib", "1А-ИБ/A-IB"},
		{"unknown", "9-XX", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ResolveGroup(testGroups, tt.param))
		})
	}

	assert.Equal(t, "", ResolveGroup(nil, ""))
}

func TestGroupSlug(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1a-ib", GroupSlug(testGroups, "1А-ИБ/A-IB"))
	assert.Equal(t, "x-y", GroupSlug(testGroups, "X Y"))
}

func TestResolveWeekByDate(t *testing.T) {
	t.Parallel()
	// Weeks start on Mondays; 2026-09-13 and 2026-09-20 are Sundays.
	weeks := []timetable.WeekOption{
		{Value: "01", StartDateISO: "2026-09-07"},
		{Value: "02", StartDateISO: "2026-09-14"},
		{Value: "03", StartDateISO: "2026-09-21"},
	}
	tests := []struct {
		name     string
		now      time.Time
		expected string
	}{
		{"before first week", almaty("2026-08-20", 12), "01"},
		{"inside week two", almaty("2026-09-16", 12), "02"},
		{"start day", almaty("2026-09-21", 9), "03"},
		{"saturday stays", almaty("2026-09-19", 12), "02"},
		{"sunday advances", almaty("2026-09-13", 12), "02"},
		// Saturday 20:30 UTC is already Sunday 01:30 in Almaty.
		{"timezone", time.Date(2026, 9, 19, 20, 30, 0, 0, time.UTC), "03"},
		{"after last", almaty("2026-12-01", 12), "03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ResolveWeekByDate(weeks, tt.now))
		})
	}

	assert.Equal(t, "", ResolveWeekByDate(nil, time.Now()))
}

func TestResolveWeek(t *testing.T) {
	t.Parallel()
	weeks := []timetable.WeekOption{
		{Value: "01", StartDateISO: "2026-09-01"},
		{Value: "02", StartDateISO: "2026-09-08"},
	}
	now := almaty("2026-09-09", 12)

	assert.Equal(t, "01", ResolveWeek(weeks, "01", now))
	assert.Equal(t, "02", ResolveWeek(weeks, "", now))
	assert.Equal(t, "02", ResolveWeek(weeks, "99", now))
}

func values(weeks []timetable.WeekOption) []string {
	out := make([]string, len(weeks))
	for i, w := range weeks {
		out[i] = w.Value
	}
	return out
}

func TestPickRollingWeeks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		anchor   string
		now      time.Time
		size     int
		expected []string
	}{
		{"default window from current week", "", almaty("2026-09-10", 12), 0, []string{"02", "03"}},
		{"future anchor wins", "04", almaty("2026-09-10", 12), 2, []string{"04"}},
		{"past anchor ignored", "01", almaty("2026-09-10", 12), 2, []string{"02", "03"}},
		{"before all weeks", "", almaty("2026-08-01", 12), 3, []string{"01", "02", "03"}},
		{"negative size means one", "", almaty("2026-09-16", 12), -5, []string{"03"}},
		{"clipped at end", "", almaty("2026-10-30", 12), 4, []string{"04"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, values(PickRollingWeeks(testWeeks, tt.anchor, tt.now, tt.size)))
		})
	}

	assert.Empty(t, PickRollingWeeks(nil, "", time.Now(), 2))
	// Input order is not modified.
	assert.Equal(t, "03", testWeeks[0].Value)
}

func TestCalendarTitle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "DKU 1-CS", CalendarTitle("1-CS"))
}
