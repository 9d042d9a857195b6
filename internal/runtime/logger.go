package runtime

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process-wide structured logger. Unknown levels fall
// back to info.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
