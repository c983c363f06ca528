package ics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

func testEvent() timetable.LessonEvent {
	cohort := "D1"
	return timetable.LessonEvent{
		DateISO:         "2026-09-07",
		StartTime:       "08:00",
		EndTime:         "09:20",
		SubjectShortRaw: "D01",
		SubjectShortRu:  "Нем.",
		SubjectFullRu:   "Немецкий язык",
		SubjectFullDe:   "Deutsch",
		Room:            "A101",
		GroupCode:       "1-CS",
		CohortCode:      &cohort,
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()
	noRoom := testEvent()
	noRoom.StartTime, noRoom.EndTime = "10:00", "10:50"
	noRoom.Room = ""
	broken := testEvent()
	broken.StartTime = "??"

	out, err := Build("DKU 1-CS", []timetable.LessonEvent{testEvent(), noRoom, broken}, timetable.LangRU)
	require.NoError(t, err)

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "PRODID:-//DKU Timetable//EN")
	assert.Contains(t, out, "X-WR-CALNAME:DKU 1-CS")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"), "unparseable times are skipped")

	// 08:00 in Almaty (UTC+5) is 03:00 UTC.
	assert.Contains(t, out, "DTSTART:20260907T030000Z")
	assert.Contains(t, out, "DTEND:20260907T042000Z")
	assert.Contains(t, out, "SUMMARY:Немецкий язык")
	assert.Equal(t, 1, strings.Count(out, "LOCATION:"))
	assert.Contains(t, out, "LOCATION:A101")
	first := testEvent()
	assert.Contains(t, out, "UID:"+EventUID(&first))
}

func TestBuild_Empty(t *testing.T) {
	t.Parallel()
	out, err := Build("DKU X", nil, timetable.LangDE)
	require.NoError(t, err)
	assert.Contains(t, out, "END:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}

func TestEventUID(t *testing.T) {
	t.Parallel()
	a := testEvent()
	b := testEvent()
	b.Room = "B202"
	assert.Equal(t, EventUID(&a), EventUID(&b), "room does not affect the UID")
	assert.True(t, strings.HasSuffix(EventUID(&a), "@dku-timetable"))

	c := testEvent()
	c.CohortCode = nil
	assert.NotEqual(t, EventUID(&a), EventUID(&c))

	expected := timetable.FNV1aHex("2026-09-07|08:00|09:20|1-CS|D01|D1") + "@dku-timetable"
	assert.Equal(t, expected, EventUID(&a))
}

func TestSummary(t *testing.T) {
	t.Parallel()
	e := testEvent()
	assert.Equal(t, "Немецкий язык", Summary(&e, timetable.LangRU))
	assert.Equal(t, "Deutsch", Summary(&e, timetable.LangDE))

	e.SubjectFullDe = ""
	assert.Equal(t, "Немецкий язык", Summary(&e, timetable.LangDE), "german falls back to russian")

	e.SubjectFullRu = ""
	assert.Equal(t, "Нем.", Summary(&e, timetable.LangRU))

	bare := timetable.LessonEvent{SubjectShortRaw: "XYZ"}
	assert.Equal(t, "XYZ", Summary(&bare, timetable.LangDE))
}
