// log.go - структурированный логгер процесса
package internal

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger создаёт JSON-логгер в stdout. Неизвестный уровень трактуется как info.
func NewLogger(level string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
