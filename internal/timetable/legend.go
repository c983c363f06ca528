package timetable

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LegendHeading is the bold caption above the subject legend table.
const LegendHeading = "Дисциплины"

// LegendEntry maps a short subject code to its full bilingual name.
type LegendEntry struct {
	Code  string
	Value string
}

// ParseLegendEntries reads the two-column legend table that follows the
// bold heading. Cells are paired left to right; header and blank pairs
// are skipped.
func ParseLegendEntries(doc *goquery.Document, heading string) []LegendEntry {
	table := findLegendTable(doc, heading)
	if table == nil {
		return nil
	}

	cells := table.Find("td").Map(func(_ int, s *goquery.Selection) string {
		return CollapseSpaces(s.Text())
	})

	entries := make([]LegendEntry, 0, len(cells)/2)
	for i := 0; i+1 < len(cells); i += 2 {
		code, value := cells[i], cells[i+1]
		if code == "" || value == "" {
			continue
		}
		if code == "Имя" || value == "Полное назв/имя" {
			continue
		}
		entries = append(entries, LegendEntry{Code: code, Value: value})
	}
	return entries
}

// findLegendTable returns the first table after the heading in document order.
func findLegendTable(doc *goquery.Document, heading string) *goquery.Selection {
	var (
		seenHeading bool
		table       *goquery.Selection
	)
	doc.Find("b, table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !seenHeading {
			if goquery.NodeName(s) == "b" && strings.EqualFold(CollapseSpaces(s.Text()), heading) {
				seenHeading = true
			}
			return true
		}
		if goquery.NodeName(s) == "table" {
			table = s
			return false
		}
		return true
	})
	return table
}

// LegendResolver resolves short subject codes to full names.
type LegendResolver struct {
	byFull map[string]string
	byLeft map[string]string
}

// NewLegendResolver indexes entries by their full code and by the part left
// of the slash. Later entries win on key collisions.
func NewLegendResolver(entries []LegendEntry) *LegendResolver {
	l := &LegendResolver{
		byFull: make(map[string]string, len(entries)),
		byLeft: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		l.byFull[NormalizeCodeKey(e.Code)] = e.Value
		l.byLeft[LeftSideCode(e.Code)] = e.Value
	}
	return l
}

// Resolve returns the full name for code, or "" when the legend has none.
func (l *LegendResolver) Resolve(code string) string {
	if v, ok := l.byFull[NormalizeCodeKey(code)]; ok {
		return v
	}
	if v, ok := l.byLeft[LeftSideCode(code)]; ok {
		return v
	}
	return ""
}

// Len returns the number of distinct full codes.
func (l *LegendResolver) Len() int {
	return len(l.byFull)
}
