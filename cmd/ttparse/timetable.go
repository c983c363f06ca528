package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyellow/dku-timetable-go/internal/ics"
	"github.com/garyellow/dku-timetable-go/internal/schedule"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// pageFlags identify the group and week a saved page was fetched for.
type pageFlags struct {
	group   string
	groupID int
	week    string
	start   string
	cohorts string
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.group, "group", "", "raw group code as listed in the navbar (required)")
	cmd.Flags().IntVar(&f.groupID, "id", 1, "1-based position of the group in the navbar")
	cmd.Flags().StringVar(&f.week, "week", "", "week value from the navbar")
	cmd.Flags().StringVar(&f.start, "start", "", "Monday of the week, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.cohorts, "cohorts", "", "comma-separated cohort codes to keep")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("start")
}

// parse reads the page and returns it merged down to the selected cohorts.
func (f *pageFlags) parse(path string) (*timetable.GroupWeekSchedule, error) {
	if _, err := time.Parse(time.DateOnly, f.start); err != nil {
		return nil, fmt.Errorf("--start must be YYYY-MM-DD, got %q", f.start)
	}
	raw, err := readPage(path)
	if err != nil {
		return nil, err
	}

	group := timetable.NewGroupOption(f.groupID, f.group)
	week := timetable.WeekOption{Value: f.week, Label: f.start, StartDateISO: f.start}

	page, err := newParser().ParseTimetable(raw, group, week)
	if err != nil {
		return nil, err
	}
	return schedule.MergeSchedule(&timetable.GroupWeekSchedule{
		Group:   group,
		Week:    week,
		Events:  page.Events,
		Cohorts: page.Cohorts,
	}, timetable.ParseCohortsCSV(f.cohorts)), nil
}

func newTimetableCmd() *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "timetable FILE",
		Short: "Print the lessons and cohorts of a saved group page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := flags.parse(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), merged)
		},
	}
	flags.register(cmd)
	return cmd
}

func newICSCmd() *cobra.Command {
	var (
		flags pageFlags
		lang  string
	)
	cmd := &cobra.Command{
		Use:   "ics FILE",
		Short: "Render a saved group page as an iCalendar feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language := timetable.Language(lang)
			if language != timetable.LangRU && language != timetable.LangDE {
				return fmt.Errorf("--lang must be ru or de, got %q", lang)
			}
			merged, err := flags.parse(args[0])
			if err != nil {
				return err
			}
			body, err := ics.Build(schedule.CalendarTitle(flags.group), merged.Events, language)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), body)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&lang, "lang", string(timetable.LangRU), "label language: ru or de")
	return cmd
}
