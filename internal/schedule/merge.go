package schedule

import (
	"cmp"
	"regexp"
	"slices"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// assessmentPattern matches exam-like lesson names by word stem. Events
// that match are kept regardless of the cohort selection.
var assessmentPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:экзам|пересдач|зач[её]т|диф\.?\s*зач|коллоквиум|midterm|final|аттест|сесс)`)

// IsAssessment reports whether e is an exam, resit, credit test or similar.
func IsAssessment(e *timetable.LessonEvent) bool {
	return assessmentPattern.MatchString(e.SubjectShortRaw + " " + e.SubjectFullRaw + " " + e.SubjectShortRu + " " + e.SubjectFullRu)
}

// MergeSchedule filters a group's page down to the core lessons plus the
// selected cohorts. Cohorts are always returned in full, ordered by track
// then code. An empty selection keeps every event.
func MergeSchedule(core *timetable.GroupWeekSchedule, selectedCohorts []string) *timetable.GroupWeekSchedule {
	cohorts := slices.Clone(core.Cohorts)
	slices.SortFunc(cohorts, func(a, b timetable.Cohort) int {
		return cmp.Or(cmp.Compare(a.Track, b.Track), cmp.Compare(a.Code, b.Code))
	})
	if cohorts == nil {
		cohorts = []timetable.Cohort{}
	}

	merged := &timetable.GroupWeekSchedule{
		Group:   core.Group,
		Week:    core.Week,
		Events:  core.Events,
		Cohorts: cohorts,
	}
	if merged.Events == nil {
		merged.Events = []timetable.LessonEvent{}
	}
	if len(selectedCohorts) == 0 {
		return merged
	}

	selected := make(map[string]struct{}, len(selectedCohorts))
	for _, code := range selectedCohorts {
		selected[timetable.CleanText(code)] = struct{}{}
	}

	events := make([]timetable.LessonEvent, 0, len(core.Events))
	for i := range core.Events {
		e := &core.Events[i]
		_, chosen := selected[e.Cohort()]
		if e.Scope == timetable.ScopeCoreFixed || IsAssessment(e) || (e.Cohort() != "" && chosen) {
			events = append(events, *e)
		}
	}
	merged.Events = events
	return merged
}
