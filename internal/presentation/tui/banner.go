package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{` _                     _          _       `, "#38bdf8"},
	{`| |__   ___ _ __   ___| |__  _ __(_) __ _ `, "#22d3ee"},
	{`| '_ \ / _ \ '_ \ / __| '_ \| '__| |/ _' |`, "#2dd4bf"},
	{`| |_) |  __/ | | | (__| | | | |  | | (_| |`, "#34d399"},
	{`|_.__/ \___|_| |_|\___|_| |_|_|  |_|\__, |`, "#4ade80"},
	{`                                    |___/ `, "#a3e635"},
}

// PrintBanner writes the colored startup banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
