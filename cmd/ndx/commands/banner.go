package commands

import (
	"fmt"

	"github.com/ndx-io/NDX/logger"
	"github.com/ndx-io/NDX/sym"
	"github.com/ndx-io/NDX/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, ref, dir string) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	white := "\033[37m"
	bgBlack := "\033[40m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═════════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                                     ║\n")
	fmt.Printf("   ║              %s%s%s███    ██ ██████  ██   ██%s              ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║              %s%s%s████   ██ ██   ██  ██ ██ %s              ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║              %s%s%s██ ██  ██ ██   ██   ███  %s              ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║              %s%s%s██  ██ ██ ██   ██  ██ ██ %s              ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║              %s%s%s██   ████ ██████  ██   ██%s              ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║                                                     ║\n")
	fmt.Printf("   ║   %s %s Session  %s %s Timesync  %s %s Feed  %s %s Cloud        ║\n",
		sym.Session, reset+cyan+bold, sym.Time, reset+cyan+bold, sym.Feed, reset+cyan+bold, sym.Cloud, reset+cyan+bold)
	fmt.Printf("   ║                                                     ║\n")
	fmt.Printf("   ╚═════════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ NDX Info ──────────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	fmt.Printf("%s│%s Session:   %s\n", green, reset, ref)
	fmt.Printf("%s│%s Directory: %s\n", green, reset, dir)
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s%s Graph updates stream live to connected browsers%s\n", yellow, bold, sym.Feed, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
