package unittest

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "emit debug-level test logs")

// LogVerbose enables debug output for tests programmatically, equivalent to
// passing -vv on the command line.
func LogVerbose() {
	*verbose = true
}

// Logger returns the logger used throughout the test suite. Output is
// discarded unless verbose logging is enabled.
func Logger() zerolog.Logger {
	writer := io.Discard
	if *verbose {
		writer = os.Stderr
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	return zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
