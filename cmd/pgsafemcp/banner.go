package main

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// isTTY returns true if the given file descriptor is a terminal.
func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// bannerLines spell "pgsafe".
var bannerLines = []string{
	`                           __       `,
	`  _ __   __ _ ___  __ _  / _| ___  `,
	` | '_ \ / _' / __|/ _' || |_ / _ \ `,
	` | |_) | (_| \__ \ (_| ||  _|  __/ `,
	` | .__/ \__, |___/\__,_||_|  \___| `,
	` |_|    |___/                      `,
}

// printBanner prints the pgsafe ASCII art banner. When useColor is true,
// lines shade from green to yellow.
func printBanner(w io.Writer, useColor bool) {
	if !useColor {
		for _, line := range bannerLines {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
		return
	}

	colors := []string{
		"\033[1;32m", // bold green
		"\033[1;32m",
		"\033[1;92m", // bold bright green
		"\033[1;92m",
		"\033[1;33m", // bold yellow
		"\033[1;93m", // bold bright yellow
	}
	for i, line := range bannerLines {
		fmt.Fprintf(w, "%s%s\033[0m\n", colors[i%len(colors)], line)
	}
	fmt.Fprintln(w)
}
