// Package logging builds the zerolog logger shared by the command line and
// the library packages. Library code never constructs loggers; it reads
// the one carried in the context with zerolog.Ctx.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w at the given level. format is
// "console" (human readable) or "json". An empty level means "info".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch strings.ToLower(format) {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// ProgressWriter forwards transport progress lines to the logger at debug.
// go-git writes sideband progress with carriage returns; each completed
// line becomes one event.
type ProgressWriter struct {
	log *zerolog.Logger
	buf []byte
}

// NewProgressWriter returns a writer logging through the logger in ctx.
func NewProgressWriter(ctx context.Context, op string) *ProgressWriter {
	l := zerolog.Ctx(ctx).With().Str("op", op).Logger()
	return &ProgressWriter{log: &l}
}

func (p *ProgressWriter) Write(b []byte) (int, error) {
	p.buf = append(p.buf, b...)
	for {
		i := indexLineEnd(p.buf)
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(p.buf[:i])); line != "" {
			p.log.Debug().Msg(line)
		}
		p.buf = p.buf[i+1:]
	}
	return len(b), nil
}

func indexLineEnd(b []byte) int {
	for i, c := range b {
		if c == '\n' || c == '\r' {
			return i
		}
	}
	return -1
}
