package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Out is where every helper writes. Tests swap it.
var Out io.Writer = color.Output

var (
	successMark = color.New(color.FgGreen, color.Bold).Sprint("✓")
	errorMark   = color.New(color.FgRed, color.Bold).Sprint("✗")
	warnMark    = color.New(color.FgYellow, color.Bold).Sprint("!")
	infoMark    = color.New(color.FgCyan).Sprint("ℹ")
	keyColor    = color.New(color.Faint)
)

func ShowHeader(title string) {
	bar := strings.Repeat("─", len([]rune(title))+2)
	fmt.Fprintf(Out, " %s\n %s\n %s\n", bar, color.New(color.Bold).Sprint(title), bar)
}

func ShowLoading(format string, args ...any) {
	fmt.Fprintf(Out, " %s...\n", fmt.Sprintf(format, args...))
}

func ShowSuccess(format string, args ...any) {
	fmt.Fprintf(Out, " %s %s\n", successMark, fmt.Sprintf(format, args...))
}

func ShowError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(Out, " %s %s: %v\n", errorMark, msg, err)
	} else {
		fmt.Fprintf(Out, " %s %s\n", errorMark, msg)
	}
}

func ShowWarning(format string, args ...any) {
	fmt.Fprintf(Out, " %s %s\n", warnMark, fmt.Sprintf(format, args...))
}

func ShowInfo(format string, args ...any) {
	fmt.Fprintf(Out, " %s %s\n", infoMark, fmt.Sprintf(format, args...))
}

// ShowField prints an aligned "key  value" line.
func ShowField(key string, value any) {
	fmt.Fprintf(Out, "   %s %v\n", keyColor.Sprintf("%-20s", key), value)
}
