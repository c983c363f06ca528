package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DaysPerWeek is the number of teaching days (Monday to Saturday).
const DaysPerWeek = 6

// Almaty is the campus time zone. Kazakhstan has used a single UTC+5 zone
// without DST since March 2024, so a fixed zone avoids depending on tzdata.
var Almaty = time.FixedZone("Asia/Almaty", 5*60*60)

var (
	dayMarkerPattern  = regexp.MustCompile(`^\s*[А-Яа-яA-Za-z]+\s+(\d{1,2})\.(\d{1,2})\.?\s*$`)
	footerYearPattern = regexp.MustCompile(`(?i)ЛС/SS\s+\d{1,2}\.\d{1,2}\.(\d{4})`)
	weekLabelDate     = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	clockPattern      = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
)

// ParseWeekLabelDate extracts the first d.m.yyyy date in label as YYYY-MM-DD.
func ParseWeekLabelDate(label string) (string, bool) {
	m := weekLabelDate.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	d, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%s-%02d-%02d", m[3], mo, d), true
}

// parseDayDates returns the ISO date of each weekday column. Bold day
// headers such as "Пн 01.09." are used when all six are present, with the
// year taken from the "ЛС/SS" footer or the week start. Otherwise dates are
// counted forward from the week start. An unparseable week start with no
// usable headers yields no dates.
func parseDayDates(doc *goquery.Document, weekStartISO string) []string {
	weekStart, err := time.Parse(time.DateOnly, weekStartISO)
	hasStart := err == nil

	var markers [][2]int
	doc.Find("b").Each(func(_ int, s *goquery.Selection) {
		m := dayMarkerPattern.FindStringSubmatch(CollapseSpaces(s.Text()))
		if m == nil {
			return
		}
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		markers = append(markers, [2]int{d, mo})
	})

	if len(markers) >= DaysPerWeek {
		year := 0
		if hasStart {
			year = weekStart.Year()
		}
		if m := footerYearPattern.FindStringSubmatch(CollapseSpaces(doc.Text())); m != nil {
			year, _ = strconv.Atoi(m[1])
		}
		if year > 0 {
			dates := make([]string, DaysPerWeek)
			for i, dm := range markers[:DaysPerWeek] {
				dates[i] = fmt.Sprintf("%04d-%02d-%02d", year, dm[1], dm[0])
			}
			return dates
		}
	}

	if !hasStart {
		return nil
	}
	dates := make([]string, DaysPerWeek)
	for i := range dates {
		dates[i] = weekStart.AddDate(0, 0, i).Format(time.DateOnly)
	}
	return dates
}

// TimeRange is one teaching period, "HH:MM" to "HH:MM".
type TimeRange struct {
	Start string
	End   string
}

// ParseTimeRange reads "8:00 - 9:40" style period labels. The first and
// last clock values found become the range; hours are zero-padded.
func ParseTimeRange(text string) (TimeRange, bool) {
	times := clockPattern.FindAllString(text, -1)
	if len(times) < 2 {
		return TimeRange{}, false
	}
	return TimeRange{Start: padClock(times[0]), End: padClock(times[len(times)-1])}, true
}

func padClock(t string) string {
	if len(t) == 4 {
		return "0" + t
	}
	return t
}
