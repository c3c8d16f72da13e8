// Package logger provides a configurable logger shared by every component
// of the reluplex decision procedure.
//
// The root logger defaults to github.com/rs/zerolog with a console writer,
// mirroring how gnark wires the same library for its own components.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	log = zerolog.New(output).With().Timestamp().Logger()

	if strings.HasSuffix(os.Args[0], ".test") {
		log = zerolog.Nop()
	}
}

// SetOutput changes the output of the global logger.
func SetOutput(w io.Writer) {
	log = log.Output(w)
}

// Set overrides the global logger entirely.
func Set(l zerolog.Logger) {
	log = l
}

// Disable silences all logging.
func Disable() {
	log = zerolog.Nop()
}

// Logger returns the shared logger.
func Logger() zerolog.Logger {
	return log
}
