package timetable

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ColumnsPerDay is the number of virtual grid columns one weekday spans.
const ColumnsPerDay = 12

// Span limits applied by HTML table processing; larger values are clamped.
const (
	maxColSpan = 1000
	maxRowSpan = 65534
)

type gridCell struct {
	colSpan      int
	rowSpan      int
	fallbackText string
	nestedLines  []string
}

// lines returns the nested sub-table lines, or the collapsed cell text as a
// single line when the cell has no sub-table.
func (c gridCell) lines() []string {
	if len(c.nestedLines) > 0 {
		return c.nestedLines
	}
	if fallback := CollapseSpaces(c.fallbackText); fallback != "" {
		return []string{fallback}
	}
	return nil
}

// lessonSlot is a renderable cell placed on the grid. Events are created
// from it once every row's period time is known.
type lessonSlot struct {
	dayIndex   int
	subjectRaw string
	roomRaw    string
	rowIndex   int
	rowSpan    int
}

// gridResult is the outcome of walking the main table.
type gridResult struct {
	rowCount int
	rowTimes []*TimeRange
	slots    []lessonSlot
}

// periodsFor returns the distinct period ranges covered by a slot.
func (g *gridResult) periodsFor(s lessonSlot) []TimeRange {
	end := min(g.rowCount, s.rowIndex+s.rowSpan)
	periods := make([]TimeRange, 0, max(end-s.rowIndex, 0))
	seen := make(map[TimeRange]struct{}, max(end-s.rowIndex, 0))
	for r := s.rowIndex; r < end; r++ {
		tr := g.rowTimes[r]
		if tr == nil {
			continue
		}
		if _, dup := seen[*tr]; dup {
			continue
		}
		seen[*tr] = struct{}{}
		periods = append(periods, *tr)
	}
	return periods
}

// walkGrid places every cell of rows on an occupancy grid. Column 0 carries
// period times, all other columns map to weekday (col-1)/12.
func walkGrid(rows [][]gridCell, dayCount int) *gridResult {
	colCount := 0
	if len(rows) > 0 {
		for _, cell := range rows[0] {
			colCount += cell.colSpan
		}
	}
	occupancy := make([]int, max(colCount, 1))

	result := &gridResult{
		rowCount: len(rows),
		rowTimes: make([]*TimeRange, len(rows)),
	}

	for rowIndex, cells := range rows {
		col := 0
		for _, cell := range cells {
			for col < len(occupancy) && occupancy[col] > 0 {
				col++
			}

			if col == 0 {
				if tr, ok := ParseTimeRange(CollapseSpaces(cell.fallbackText)); ok {
					for r := rowIndex; r < min(len(rows), rowIndex+cell.rowSpan); r++ {
						period := tr
						result.rowTimes[r] = &period
					}
				}
			} else {
				lines := cell.lines()
				var subjectRaw, roomRaw string
				if len(lines) > 0 {
					subjectRaw = lines[0]
				}
				if len(lines) > 2 {
					roomRaw = lines[2]
				}
				if isRenderableSubject(subjectRaw) {
					dayIndex := (col - 1) / ColumnsPerDay
					if dayIndex >= 0 && dayIndex < dayCount {
						result.slots = append(result.slots, lessonSlot{
							dayIndex:   dayIndex,
							subjectRaw: subjectRaw,
							roomRaw:    roomRaw,
							rowIndex:   rowIndex,
							rowSpan:    cell.rowSpan,
						})
					}
				}
			}

			for c := col; c < min(len(occupancy), col+cell.colSpan); c++ {
				occupancy[c] = max(occupancy[c], cell.rowSpan)
			}
			col += cell.colSpan
		}

		for c := range occupancy {
			if occupancy[c] > 0 {
				occupancy[c]--
			}
		}
	}

	return result
}

// findMainTable returns the first table that is a direct child of a
// <center>, searching depth-first.
func findMainTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Center {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Table {
				return c
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findMainTable(c); found != nil {
			return found
		}
	}
	return nil
}

// mainTableRows collects the cells of every tr directly under the table or
// under one of its tbody children.
func mainTableRows(table *html.Node) [][]gridCell {
	var rows [][]gridCell
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			rows = append(rows, rowCells(c))
		case atom.Tbody:
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if r.Type == html.ElementNode && r.DataAtom == atom.Tr {
					rows = append(rows, rowCells(r))
				}
			}
		}
	}
	return rows
}

func rowCells(tr *html.Node) []gridCell {
	var cells []gridCell
	for td := tr.FirstChild; td != nil; td = td.NextSibling {
		if td.Type != html.ElementNode || td.DataAtom != atom.Td {
			continue
		}
		cells = append(cells, gridCell{
			colSpan:      clampSpan(attr(td, "colspan"), maxColSpan),
			rowSpan:      clampSpan(attr(td, "rowspan"), maxRowSpan),
			fallbackText: nodeText(td, false),
			nestedLines:  nestedLines(td),
		})
	}
	return cells
}

// nestedLines reads the first td of each first-level row of the first
// sub-table in the cell. Text inside deeper tables is ignored.
func nestedLines(cell *html.Node) []string {
	sub := firstDescendantTable(cell)
	if sub == nil {
		return nil
	}

	var lines []string
	for _, row := range firstLevelRows(sub) {
		var firstTd *html.Node
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Td {
				firstTd = c
				break
			}
		}
		if firstTd == nil {
			continue
		}
		if v := CollapseSpaces(nodeText(firstTd, true)); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func firstDescendantTable(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom == atom.Table {
			return c
		}
		if nested := firstDescendantTable(c); nested != nil {
			return nested
		}
	}
	return nil
}

// firstLevelRows returns the rows whose nearest enclosing table is table.
func firstLevelRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.DataAtom == atom.Tr {
				rows = append(rows, c)
			}
			if c.DataAtom == atom.Table {
				continue
			}
			walk(c)
		}
	}
	walk(table)
	return rows
}

// nodeText concatenates descendant text. With skipTables set, text inside
// nested tables is left out.
func nodeText(n *html.Node, skipTables bool) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				if skipTables && c.DataAtom == atom.Table {
					continue
				}
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// clampSpan parses a span attribute. Missing, invalid or non-positive values
// count as 1; values above limit, including ones that overflow int, are
// clamped to limit.
func clampSpan(value string, limit int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return limit
	}
	if err != nil || n <= 0 {
		return 1
	}
	return min(n, limit)
}
