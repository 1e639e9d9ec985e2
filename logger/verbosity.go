package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// These levels control WHAT categories of output are shown, not just log
// severity. See ShouldOutput for the category system.
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + progress, startup, discovery summaries
	VerbosityDebug = 2 // -vv: + rule evaluation, timing, config details
	VerbosityTrace = 3 // -vvv: + SQL, HTTP calls, watcher events
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
// Mapping:
//
//	0 (none)  -> WarnLevel  (errors and warnings only)
//	1 (-v)    -> InfoLevel  (+ informational messages)
//	2+ (-vv)  -> DebugLevel (+ debug messages)
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch verbosity {
	case VerbosityUser:
		return zapcore.WarnLevel
	case VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - always shown
	OutputResults OutputCategory = iota // Command output, conversion results
	OutputErrors                        // Errors with hints and resolution steps

	// Level 1 (-v) - informational
	OutputProgress // Progress indicators (e.g. "Scanning 50/100 epochs")
	OutputStartup  // Startup banners, session summary

	// Level 2 (-vv) - detailed
	OutputTiming // Operation timing (e.g. "discovery took 42ms")
	OutputConfig // Config values loaded/applied

	// Level 3 (-vvv) - debug
	OutputSQLQueries // Individual SQL queries executed
	OutputHTTPCalls  // Cloud API requests made
	OutputWatcher    // Filesystem watcher events
)

var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputProgress:   VerbosityInfo,
	OutputStartup:    VerbosityInfo,
	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,
	OutputSQLQueries: VerbosityTrace,
	OutputHTTPCalls:  VerbosityTrace,
	OutputWatcher:    VerbosityTrace,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityTrace
	}
	return verbosity >= minLevel
}

// LevelName returns a human-readable name for a verbosity level
func LevelName(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "User"
	case VerbosityInfo:
		return "Info (-v)"
	case VerbosityDebug:
		return "Debug (-vv)"
	default:
		return "Trace (-vvv)"
	}
}
