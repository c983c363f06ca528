package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/garyellow/dku-timetable-go/internal/sliceutil"
)

// TrackRule assigns a track to any subject whose full name matches Pattern.
type TrackRule struct {
	Track   Track
	Pattern *regexp.Regexp
}

// CodeRule turns a short subject code into a canonical cohort code.
// A "$1" in Code is replaced by the first capture group parsed as an integer,
// so "D01" and "D1" both become "D1".
type CodeRule struct {
	Track   Track
	Pattern *regexp.Regexp
	Code    string
}

// Rules is the cohort classification table. Rules are evaluated in order,
// the first match wins.
type Rules struct {
	Tracks  []TrackRule
	Codes   []CodeRule
	Generic []string
}

// DefaultRules returns the rule set matching the DKU language and PE cohorts.
func DefaultRules() Rules {
	return Rules{
		Tracks: []TrackRule{
			{Track: TrackKZ, Pattern: regexp.MustCompile(`(?i)Бизнес қазақ тілі`)},
			{Track: TrackKZ, Pattern: regexp.MustCompile(`(?i)Казахский язык`)},
			{Track: TrackDE, Pattern: regexp.MustCompile(`(?i)Немецкий язык`)},
			{Track: TrackEN, Pattern: regexp.MustCompile(`(?i)Английский язык`)},
			{Track: TrackEN, Pattern: regexp.MustCompile(`(?i)Business and Soft Skills`)},
			{Track: TrackPE, Pattern: regexp.MustCompile(`(?i)Физическая культура.*девушк`)},
			{Track: TrackPE, Pattern: regexp.MustCompile(`(?i)Физическая культура.*юнош`)},
		},
		Codes: []CodeRule{
			{Track: TrackDE, Pattern: regexp.MustCompile(`(?i)^D0?(\d{1,2})$`), Code: "D$1"},
			{Track: TrackEN, Pattern: regexp.MustCompile(`(?i)^E0?(\d{1,2})$`), Code: "E$1"},
			{Track: TrackKZ, Pattern: regexp.MustCompile(`(?i)^Каз\.?(\d+)/Б`), Code: "Каз.$1/Б"},
			{Track: TrackKZ, Pattern: regexp.MustCompile(`(?i)^Каз\.?(\d+)`), Code: "Каз.$1"},
			{Track: TrackEN, Pattern: regexp.MustCompile(`(?i)^BSг\.?(\d+)`), Code: "BS$1"},
			{Track: TrackPE, Pattern: regexp.MustCompile(`(?i)^ФК\(д\)`), Code: "ФК(д)"},
			{Track: TrackPE, Pattern: regexp.MustCompile(`(?i)^ФК\(ю\)`), Code: "ФК(ю)"},
		},
		Generic: []string{"DE", "EN", "KAZ", "KAZ-B"},
	}
}

// CohortMatch is the result of matching a subject code against the code rules.
type CohortMatch struct {
	Code  string
	Track Track
}

// Classifier applies a Rules table. It holds no mutable state.
type Classifier struct {
	rules   Rules
	generic map[string]struct{}
}

// NewClassifier builds a Classifier for the given rules.
func NewClassifier(rules Rules) *Classifier {
	generic := make(map[string]struct{}, len(rules.Generic))
	for _, code := range rules.Generic {
		generic[code] = struct{}{}
	}
	return &Classifier{rules: rules, generic: generic}
}

// DetectTrack returns the track of the first name rule matching subjectFullRaw.
func (c *Classifier) DetectTrack(subjectFullRaw string) Track {
	for _, rule := range c.rules.Tracks {
		if rule.Pattern.MatchString(subjectFullRaw) {
			return rule.Track
		}
	}
	return TrackNone
}

// ExtractCohortCode matches a short subject code (leading dots ignored) against
// the code rules.
func (c *Classifier) ExtractCohortCode(subjectCodeRaw string) (CohortMatch, bool) {
	normalized := strings.TrimLeft(subjectCodeRaw, ".")
	for _, rule := range c.rules.Codes {
		m := rule.Pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		code := rule.Code
		if len(m) > 1 && m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			code = strings.Replace(code, "$1", strconv.Itoa(n), 1)
		}
		return CohortMatch{Code: code, Track: rule.Track}, true
	}
	return CohortMatch{}, false
}

// IsGeneric reports whether code names a whole language stream rather than
// a concrete cohort.
func (c *Classifier) IsGeneric(code string) bool {
	_, ok := c.generic[code]
	return ok
}

// ParseCohortsCSV splits a comma-separated cohort selection, cleaning each
// entry and dropping blanks and repeats.
func ParseCohortsCSV(raw string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if v := CleanText(item); v != "" {
			out = append(out, v)
		}
	}
	return sliceutil.Unique(out)
}

// NormalizeCohortList cleans a decoded JSON cohort list. Anything other than
// an array yields an empty list; null items are skipped and other scalars
// are stringified.
func NormalizeCohortList(raw any) []string {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if v := CleanText(fmt.Sprint(item)); v != "" {
			out = append(out, v)
		}
	}
	return sliceutil.Unique(out)
}
