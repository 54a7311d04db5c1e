package logger

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default returns the console logger at info level used until the
// configuration is loaded.
func Default() zerolog.Logger {
	return console(os.Stdout).Level(zerolog.InfoLevel)
}

// New constructs a zerolog logger based on level and format configuration.
// Callers pass the result down; there is no package-level logger.
func New(level, format string) (zerolog.Logger, error) {
	return newTo(os.Stdout, level, format)
}

func newTo(out io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var writer zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		writer = zerolog.New(out).With().Timestamp().Logger()
	case "console":
		writer = console(out)
	default:
		return zerolog.Logger{}, errors.New("unsupported log format")
	}
	return writer.Level(lvl), nil
}

func console(out io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(consoleWriter).With().Timestamp().Logger()
}
