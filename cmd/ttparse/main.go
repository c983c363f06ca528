// Package main is ttparse, an offline inspector for saved timetable pages.
// It runs the same parser as the server and prints JSON or ICS to stdout.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
