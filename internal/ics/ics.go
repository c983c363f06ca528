// Package ics renders lesson events as an iCalendar feed.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// ProductID identifies the generator in the PRODID property.
const ProductID = "-//DKU Timetable//EN"

const uidDomain = "@dku-timetable"

// EventUID returns a UID that stays the same when only the room of a
// lesson changes, so subscribed calendars update the event in place.
func EventUID(e *timetable.LessonEvent) string {
	base := strings.Join([]string{
		e.DateISO,
		e.StartTime,
		e.EndTime,
		e.GroupCode,
		e.SubjectShortRaw,
		e.Cohort(),
	}, "|")
	return timetable.FNV1aHex(base) + uidDomain
}

// Summary picks the event title for lang, falling back through the other
// language and finally the raw short code.
func Summary(e *timetable.LessonEvent, lang timetable.Language) string {
	candidates := []string{e.SubjectFullRu, e.SubjectShortRu, e.SubjectFullDe, e.SubjectShortDe}
	if lang == timetable.LangDE {
		candidates = []string{e.SubjectFullDe, e.SubjectShortDe, e.SubjectFullRu, e.SubjectShortRu}
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return e.SubjectShortRaw
}

// Build renders events as a PUBLISH calendar named title. Times are Almaty
// wall clock and serialized in UTC. Events whose date or time does not
// parse are skipped.
func Build(title string, events []timetable.LessonEvent, lang timetable.Language) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(title)
	cal.SetXWRTimezone(timetable.Almaty.String())

	stamp := time.Now()
	for i := range events {
		e := &events[i]
		start, err := wallClock(e.DateISO, e.StartTime)
		if err != nil {
			continue
		}
		end, err := wallClock(e.DateISO, e.EndTime)
		if err != nil {
			continue
		}

		event := cal.AddEvent(EventUID(e))
		event.SetDtStampTime(stamp)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(Summary(e, lang))
		if e.Room != "" {
			event.SetLocation(e.Room)
		}
	}

	var sb strings.Builder
	if err := cal.SerializeTo(&sb); err != nil {
		return "", fmt.Errorf("serialize calendar: %w", err)
	}
	return sb.String(), nil
}

func wallClock(dateISO, hhmm string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", dateISO+" "+hhmm, timetable.Almaty)
}
