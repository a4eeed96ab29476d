package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{" _       _   _   _          ", "#818cf8"},
	{"| | __ _| |_| |_(_) ___ ___ ", "#a78bfa"},
	{"| |/ _` | __| __| |/ __/ _ \\", "#c084fc"},
	{"| | (_| | |_| |_| | (_|  __/", "#e879f9"},
	{"|_|\\__,_|\\__|\\__|_|\\___\\___|", "#f472b6"},
}

// PrintBanner writes the lattice banner to w, coloured for w's terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StatusLine formats a one-line run outcome, green on success and red
// otherwise.
func StatusLine(w io.Writer, success bool, msg string) string {
	out := termenv.NewOutput(w)
	color, mark := "#22c55e", "✔"
	if !success {
		color, mark = "#ef4444", "✘"
	}
	return out.String(mark + " " + msg).Foreground(out.Color(color)).Bold().String()
}
