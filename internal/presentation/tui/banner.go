package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the convo ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   ___ ___  _ ____   _____ ", "#818cf8"},
		{"  / __/ _ \\| '_ \\ \\ / / _ \\", "#a78bfa"},
		{" | (_| (_) | | | \\ V / (_) |", "#e879f9"},
		{"  \\___\\___/|_| |_|\\_/ \\___/", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Dim renders a secondary line (hints, node ids).
func Dim(s string) string {
	return termenv.String(s).Faint().String()
}
