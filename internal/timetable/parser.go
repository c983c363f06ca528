package timetable

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ErrStructure is wrapped by every ParseError.
var ErrStructure = errors.New("unexpected timetable markup")

// ParseError reports a missing structural anchor in upstream markup.
type ParseError struct {
	Anchor string
}

func (e *ParseError) Error() string {
	return e.Anchor
}

func (e *ParseError) Unwrap() error {
	return ErrStructure
}

// Structural anchors.
const (
	AnchorWeekSelect = "week select not found in navbar"
	AnchorClasses    = "classes array not found in navbar"
	AnchorCenter     = "timetable center container not found"
	AnchorMainTable  = "main timetable table not found"
	AnchorRows       = "no rows in timetable table"
)

const underscorePlaceholder = "________________"

var (
	centerTag          = regexp.MustCompile(`(?i)<center\b`)
	dateMarkerCell     = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}(?:\s*-\s*\d{1,2}\.\d{1,2}\.\d{4})?$`)
	placeholderSubject = regexp.MustCompile(`^\?+$`)
)

// Options configures a Parser. Zero values select the DKU defaults.
type Options struct {
	Rules         *Rules
	LegendHeading string
}

// Parser turns upstream markup into structured data. It is safe for
// concurrent use.
type Parser struct {
	classifier    *Classifier
	legendHeading string
}

// NewParser creates a Parser.
func NewParser(opts Options) *Parser {
	rules := DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	heading := opts.LegendHeading
	if heading == "" {
		heading = LegendHeading
	}
	return &Parser{
		classifier:    NewClassifier(rules),
		legendHeading: heading,
	}
}

// Classifier exposes the cohort classifier used by the parser.
func (p *Parser) Classifier() *Classifier {
	return p.classifier
}

// HasEvents reports whether a timetable page carries a subject legend.
// Pages without one have no lessons.
func (p *Parser) HasEvents(rawHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return false
	}
	return len(ParseLegendEntries(doc, p.legendHeading)) > 0
}

// ParseTimetable parses one group-week page into events and cohorts.
func (p *Parser) ParseTimetable(rawHTML string, group GroupOption, week WeekOption) (*PageResult, error) {
	if !centerTag.MatchString(rawHTML) {
		return nil, &ParseError{Anchor: AnchorCenter}
	}

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse timetable markup: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	table := findMainTable(root)
	if table == nil {
		return nil, &ParseError{Anchor: AnchorMainTable}
	}
	rows := mainTableRows(table)
	if len(rows) == 0 {
		return nil, &ParseError{Anchor: AnchorRows}
	}

	dayDates := parseDayDates(doc, week.StartDateISO)
	legend := NewLegendResolver(ParseLegendEntries(doc, p.legendHeading))
	grid := walkGrid(rows, len(dayDates))

	events := make([]LessonEvent, 0, len(grid.slots))
	seen := make(map[string]struct{})
	for _, slot := range grid.slots {
		tmpl, ok := p.resolveSlot(slot, legend, group)
		if !ok {
			continue
		}
		tmpl.DateISO = dayDates[slot.dayIndex]

		for _, period := range grid.periodsFor(slot) {
			seed := strings.Join([]string{
				group.CodeRaw, tmpl.DateISO, period.Start, period.End,
				slot.subjectRaw, slot.roomRaw, tmpl.Cohort(),
			}, "|")
			if _, dup := seen[seed]; dup {
				continue
			}
			seen[seed] = struct{}{}

			ev := tmpl
			ev.ID = StableEventID(seed)
			ev.StartTime = period.Start
			ev.EndTime = period.End
			events = append(events, ev)
		}
	}

	// Collators are not safe for concurrent use.
	subjects := collate.New(language.Russian)
	slices.SortStableFunc(events, func(a, b LessonEvent) int {
		return cmp.Or(
			strings.Compare(a.DateISO, b.DateISO),
			strings.Compare(a.StartTime, b.StartTime),
			subjects.CompareString(a.SubjectShortRaw, b.SubjectShortRaw),
		)
	})

	return &PageResult{
		Events:  events,
		Cohorts: collectCohorts(events, group.CodeRaw),
	}, nil
}

// resolveSlot fills the labels, track and scope shared by every period of a
// slot. It returns false for "?" placeholders the legend cannot explain.
func (p *Parser) resolveSlot(slot lessonSlot, legend *LegendResolver, group GroupOption) (LessonEvent, bool) {
	legendFull := legend.Resolve(slot.subjectRaw)
	if placeholderSubject.MatchString(strings.TrimSpace(slot.subjectRaw)) && legendFull == "" {
		return LessonEvent{}, false
	}
	hasLegend := strings.TrimSpace(legendFull) != ""

	noGermanSource := slot.subjectRaw
	if hasLegend {
		noGermanSource = legendFull
	}
	noGerman := IsMissingGermanName(noGermanSource)

	short := SplitBilingualLabel(slot.subjectRaw, noGerman)
	full := short
	full.LessonType = ""
	subjectFullRaw := SanitizeLabel(short.Ru)
	lessonType := ""
	if hasLegend {
		full = SplitBilingualLabel(legendFull, noGerman)
		subjectFullRaw = legendFull
		if !noGerman {
			lessonType = full.LessonType
		}
	}

	track := p.classifier.DetectTrack(subjectFullRaw)
	var cohortCode *string
	if match, ok := p.classifier.ExtractCohortCode(slot.subjectRaw); ok {
		if track == TrackNone {
			track = match.Track
		}
		if !p.classifier.IsGeneric(match.Code) {
			code := match.Code
			cohortCode = &code
		}
	}
	scope := ScopeCoreFixed
	if cohortCode != nil {
		scope = ScopeCohortShared
	}

	return LessonEvent{
		DayIndex:        slot.dayIndex,
		SubjectShortRaw: slot.subjectRaw,
		SubjectShortRu:  SanitizeLabel(short.Ru),
		SubjectShortDe:  SanitizeLabel(short.De),
		SubjectFullRaw:  subjectFullRaw,
		SubjectFullRu:   SanitizeLabel(full.Ru),
		SubjectFullDe:   SanitizeLabel(full.De),
		LessonType:      SanitizeLabel(lessonType),
		Room:            slot.roomRaw,
		GroupCode:       group.CodeRaw,
		OriginGroupCode: group.CodeRaw,
		Track:           track,
		CohortCode:      cohortCode,
		Scope:           scope,
	}, true
}

// collectCohorts aggregates cohort-scoped events by cohort code in order of
// first appearance.
func collectCohorts(events []LessonEvent, groupCodeRaw string) []Cohort {
	cohorts := make([]Cohort, 0)
	index := make(map[string]int)
	for _, ev := range events {
		if ev.CohortCode == nil || ev.Track == TrackNone {
			continue
		}
		code := *ev.CohortCode
		if i, ok := index[code]; ok {
			if !slices.Contains(cohorts[i].SourceGroups, groupCodeRaw) {
				cohorts[i].SourceGroups = append(cohorts[i].SourceGroups, groupCodeRaw)
			}
			continue
		}
		label := ev.SubjectFullRu
		if label == "" {
			label = ev.SubjectShortRu
		}
		index[code] = len(cohorts)
		cohorts = append(cohorts, Cohort{
			Code:         code,
			Track:        ev.Track,
			Label:        label,
			SourceGroups: []string{groupCodeRaw},
		})
	}
	return cohorts
}

func isDateMarkerCell(value string) bool {
	return dateMarkerCell.MatchString(value)
}

// isRenderableSubject rejects empty cells, underscore placeholders and
// holiday cells that only carry a date.
func isRenderableSubject(value string) bool {
	return value != "" && !strings.Contains(value, underscorePlaceholder) && !isDateMarkerCell(value)
}
