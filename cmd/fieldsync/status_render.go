package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKinds = map[statusKind]struct {
	label string
	color text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

const statusLabelWidth = 20

var titleCaser = cases.Title(language.Und)

// statusReport prints "Label: [KIND] detail" lines grouped under section
// headers, colored when writing to a terminal.
type statusReport struct {
	out      io.Writer
	colorize bool
	sections int
}

func newStatusReport(out io.Writer) *statusReport {
	return &statusReport{out: out, colorize: shouldColorize(out)}
}

func (r *statusReport) section(title string) {
	if r.sections > 0 {
		fmt.Fprintln(r.out)
	}
	r.sections++
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(header))
	fmt.Fprintln(r.out, r.paint(text.Colors{text.FgBlue}, header))
	fmt.Fprintln(r.out, r.paint(text.Colors{text.FgBlue}, rule))
}

func (r *statusReport) line(label string, kind statusKind, detail string) {
	meta := statusKinds[kind]
	status := "[" + meta.label + "]"
	if detail != "" {
		status += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	fmt.Fprintln(r.out, r.paint(meta.color, line))
}

func (r *statusReport) paint(colors text.Colors, s string) string {
	if !r.colorize {
		return s
	}
	return colors.Sprint(s)
}

// syncStatusKind maps the aggregate sync status to a display severity.
func syncStatusKind(status string) statusKind {
	switch status {
	case "synced", "online":
		return statusOK
	case "offline":
		return statusWarn
	case "failed":
		return statusError
	default:
		return statusInfo
	}
}

// displayStatus renders a status word for humans, e.g. "synced" -> "Synced".
func displayStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(status)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
