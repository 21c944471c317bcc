package ui

import (
	"fmt"

	"github.com/groblegark/funnel/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorOK     = 114 // green
	colorWarn   = 214 // orange
	colorBad    = 203 // red
	colorMuted  = 245 // medium gray
)

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// RenderAutomation colors an automation state: active green, completed blue,
// halted red.
func RenderAutomation(state model.AutomationState) string {
	s := string(state)
	if s == "" {
		s = "-"
	}
	if noColor {
		return s
	}
	var code int
	switch state {
	case model.AutomationActive:
		code = colorOK
	case model.AutomationCompleted:
		code = colorAccent
	case model.AutomationHalted:
		code = colorBad
	default:
		code = colorMuted
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderStatus colors a funnel status; Needs BDR stands out since it is the
// queue a human has to work.
func RenderStatus(status model.Status) string {
	s := string(status)
	if noColor {
		return s
	}
	code := colorMuted
	switch status {
	case model.StatusNeedsBDR:
		code = colorWarn
	case model.StatusSignedAgreement:
		code = colorOK
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
