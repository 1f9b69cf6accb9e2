package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds the process logger. Logs go to stderr so that stdout carries
// only command output.
func New(format, level string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, format, level)
}

func NewWithWriter(out io.Writer, format, level string) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var writer io.Writer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	case FormatJSON:
		writer = out
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q (use %s or %s)", format, FormatConsole, FormatJSON)
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "cloudtran").
		Logger()

	return logger, nil
}
