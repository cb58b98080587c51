package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode selects the progress display of the instrument command.
type uiMode uint8

const (
	uiModeAuto uiMode = iota
	uiModeOn
	uiModeOff
)

var uiModeNames = map[string]uiMode{"": uiModeAuto, "auto": uiModeAuto, "on": uiModeOn, "off": uiModeOff}

func (m uiMode) String() string {
	switch m {
	case uiModeOn:
		return "on"
	case uiModeOff:
		return "off"
	default:
		return "auto"
	}
}

func readUIMode(value string) (uiMode, error) {
	if m, ok := uiModeNames[strings.ToLower(strings.TrimSpace(value))]; ok {
		return m, nil
	}
	return uiModeAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// uiPlan decides whether the progress UI replaces the unit summaries.
// In auto mode it only pays off for several units on an interactive
// terminal; quiet runs and JSON diagnostics never get it.
type uiPlan struct {
	mode   uiMode
	units  int
	quiet  bool
	format string
}

func (p uiPlan) enabled() bool {
	if p.quiet || p.format == "json" {
		return false
	}
	switch p.mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return p.units > 1 && isTerminal(os.Stdout)
	}
}
