package timetable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	weekValuePattern = regexp.MustCompile(`^\d+$`)
	classesArray     = regexp.MustCompile(`(?is)var\s+classes\s*=\s*\[(.*?)\];`)
	jsStringLiteral  = regexp.MustCompile(`"((?:\\.|[^"\\])*)"`)
	leadingDigit     = regexp.MustCompile(`^\d`)
	leadingYear      = regexp.MustCompile(`^(\d+)`)
	subgroupPrefix   = regexp.MustCompile(`^[A-Za-z]-`)
)

// ParseNavbar reads the week options and the class list from the navbar
// frame. Options whose label carries no date are skipped.
func (p *Parser) ParseNavbar(rawHTML string) (*MetaPayload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse navbar markup: %w", err)
	}

	sel := doc.Find(`select[name="week"]`).First()
	if sel.Length() == 0 {
		return nil, &ParseError{Anchor: AnchorWeekSelect}
	}

	weeks := make([]WeekOption, 0)
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value := strings.TrimSpace(opt.AttrOr("value", ""))
		if !weekValuePattern.MatchString(value) {
			return
		}
		label := CollapseSpaces(opt.Text())
		startDate, ok := ParseWeekLabelDate(label)
		if !ok {
			return
		}
		weeks = append(weeks, WeekOption{
			Value:        padWeekValue(value),
			Label:        label,
			StartDateISO: startDate,
		})
	})

	m := classesArray.FindStringSubmatch(rawHTML)
	if m == nil {
		return nil, &ParseError{Anchor: AnchorClasses}
	}

	literals := parseJSStringArray(m[1])
	groups := make([]GroupOption, 0, len(literals))
	for i, codeRaw := range literals {
		groups = append(groups, NewGroupOption(i+1, codeRaw))
	}

	return &MetaPayload{Weeks: weeks, Groups: groups}, nil
}

// NewGroupOption derives the Russian and German codes of a navbar class
// entry. id is its 1-based position in the list.
func NewGroupOption(id int, codeRaw string) GroupOption {
	codeRu := SanitizeLabel(StripParenSuffix(RussianOnlyLabel(codeRaw)))
	codeDe := SanitizeLabel(StripParenSuffix(GermanOnlyLabel(codeRaw)))
	return GroupOption{
		ID:      id,
		CodeRaw: CleanText(codeRaw),
		CodeRu:  codeRu,
		CodeDe:  preserveYearPrefix(codeRu, codeDe),
	}
}

func padWeekValue(value string) string {
	if len(value) < 2 {
		return "0" + value
	}
	return value
}

func parseJSStringArray(body string) []string {
	matches := jsStringLiteral.FindAllStringSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.ReplaceAll(m[1], `\"`, `"`)
		s = strings.ReplaceAll(s, `\\`, `\`)
		out = append(out, s)
	}
	return out
}

// preserveYearPrefix copies the study-year prefix of the Russian group code
// onto the German one: "2-ТЛ" + "-TL" gives "2-TL", "1A-ИБ" + "A-IB" gives
// "1A-IB".
func preserveYearPrefix(codeRu, codeDe string) string {
	de := leadingDashes.ReplaceAllString(codeDe, "")
	if de == "" || leadingDigit.MatchString(de) {
		return de
	}

	m := leadingYear.FindStringSubmatch(codeRu)
	if m == nil {
		return de
	}
	if subgroupPrefix.MatchString(de) {
		return m[1] + de
	}
	return m[1] + "-" + de
}
