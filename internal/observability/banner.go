package observability

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorNeonCyan = "\033[96m"
)

var bannerLines = []string{
	``,
	`   _____ ___    __  _____  _____  ____ __ __`,
	`  / ___//   |  / / / /   |/   \ \/ / |/ // /`,
	`  \__ \/ /| | / /_/ / /| / /| |\  /|   // /`,
	` ___/ / ___ |/ __  / ___ / ___ |/ //   |/_/`,
	`/____/_/  |_/_/ /_/_/  |/_/  |_/_//_/|_(_)`,
	``,
	`      >> THE SELF-CORRECTING TASK ENGINE <<`,
	``,
}

// PrintBanner renders the startup logo, centered to the terminal width.
func PrintBanner() {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	for _, line := range bannerLines {
		pad := (width - len(line)) / 2
		if pad < 0 {
			pad = 0
		}
		fmt.Println(strings.Repeat(" ", pad) + colorNeonCyan + line + colorReset)
	}
}
