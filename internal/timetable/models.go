// Package timetable converts the DKU timetable markup (navbar frame and
// per-group week pages) into structured week, group, lesson and cohort data.
//
// The upstream pages encode the schedule through table geometry: merged
// cells via rowspan/colspan, one nested sub-table per lesson cell, column 0
// for period times and 12 virtual columns per weekday. Parsing is pure and
// allocation-local, so a single Parser can be shared by concurrent callers.
package timetable

// Track is the language or activity category a cohort belongs to.
type Track string

// Tracks recognized by the classifier.
const (
	TrackDE   Track = "de"
	TrackEN   Track = "en"
	TrackKZ   Track = "kz"
	TrackPE   Track = "pe"
	TrackNone Track = "none"
)

// Scope tells whether an event applies to the whole group or only to one cohort.
type Scope string

// Event scopes.
const (
	ScopeCoreFixed    Scope = "core_fixed"
	ScopeCohortShared Scope = "cohort_shared"
)

// Language selects the label language used by calendar exports.
type Language string

// Supported UI languages.
const (
	LangRU Language = "ru"
	LangDE Language = "de"
)

// WeekOption is one selectable week from the navbar.
type WeekOption struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	StartDateISO string `json:"startDateIso"`
}

// GroupOption is one class group from the navbar. ID is the 1-based
// position in the upstream list and addresses the group's page.
type GroupOption struct {
	ID      int    `json:"id"`
	CodeRaw string `json:"codeRaw"`
	CodeRu  string `json:"codeRu"`
	CodeDe  string `json:"codeDe"`
}

// MetaPayload holds everything parsed from the navbar frame.
type MetaPayload struct {
	Weeks  []WeekOption  `json:"weeks"`
	Groups []GroupOption `json:"groups"`
}

// FindWeek returns the week with the given value.
func (m *MetaPayload) FindWeek(value string) (WeekOption, bool) {
	for _, w := range m.Weeks {
		if w.Value == value {
			return w, true
		}
	}
	return WeekOption{}, false
}

// FindGroup returns the group whose raw or Russian code equals code.
func (m *MetaPayload) FindGroup(code string) (GroupOption, bool) {
	for _, g := range m.Groups {
		if g.CodeRaw == code || g.CodeRu == code {
			return g, true
		}
	}
	return GroupOption{}, false
}

// Cohort is a sub-group referenced by cohort-scoped events of a page.
type Cohort struct {
	Code         string   `json:"code"`
	Track        Track    `json:"track"`
	Label        string   `json:"label"`
	SourceGroups []string `json:"sourceGroups"`
}

// LessonEvent is one lesson occurrence in one period of one day.
type LessonEvent struct {
	ID              string  `json:"id"`
	DateISO         string  `json:"dateIso"`
	DayIndex        int     `json:"dayIndex"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	SubjectShortRaw string  `json:"subjectShortRaw"`
	SubjectShortRu  string  `json:"subjectShortRu"`
	SubjectShortDe  string  `json:"subjectShortDe"`
	SubjectFullRaw  string  `json:"subjectFullRaw"`
	SubjectFullRu   string  `json:"subjectFullRu"`
	SubjectFullDe   string  `json:"subjectFullDe"`
	LessonType      string  `json:"lessonType"`
	Room            string  `json:"room"`
	GroupCode       string  `json:"groupCode"`
	OriginGroupCode string  `json:"originGroupCode"`
	Track           Track   `json:"track"`
	CohortCode      *string `json:"cohortCode"`
	Scope           Scope   `json:"scope"`
}

// Cohort returns the cohort code or "" when the event is not cohort scoped.
func (e *LessonEvent) Cohort() string {
	if e.CohortCode == nil {
		return ""
	}
	return *e.CohortCode
}

// PageResult is the output of parsing one timetable page.
type PageResult struct {
	Events  []LessonEvent `json:"events"`
	Cohorts []Cohort      `json:"cohorts"`
}

// GroupWeekSchedule is a parsed page bound to the group and week it was fetched for.
type GroupWeekSchedule struct {
	Group   GroupOption   `json:"group"`
	Week    WeekOption    `json:"week"`
	Events  []LessonEvent `json:"events"`
	Cohorts []Cohort      `json:"cohorts"`
}
