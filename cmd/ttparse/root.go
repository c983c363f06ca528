package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/html/charset"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// maxPageBytes matches the scraper's cap on a single upstream page.
const maxPageBytes = 8 << 20

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ttparse",
		Short: "Parse saved DKU timetable pages",
		Long: `ttparse runs the timetable parser on pages saved from the upstream site
and prints the result, for checking fixtures and markup changes offline.`,
		SilenceUsage: true,
	}
	root.AddCommand(newNavbarCmd(), newTimetableCmd(), newICSCmd())
	return root
}

// readPage loads a saved page and decodes it to UTF-8. The charset is
// sniffed from the document, so windows-1251 pages work as saved.
func readPage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	reader, err := charset.NewReader(io.LimitReader(f, maxPageBytes), "text/html")
	if err != nil {
		return "", fmt.Errorf("detect charset of %s: %w", path, err)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}

func newParser() *timetable.Parser {
	return timetable.NewParser(timetable.Options{})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
