package logging

import (
	"io"
	"strings"

	"github.com/grafana/regexp"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiGray    = "\x1b[90m"
)

var (
	tokenPattern = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b|-?\b\d+(?:\.\d+)?\b`)
	ipPattern    = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?$`)
)

// colorLineWriter colors slog text lines by level and highlights quoted
// strings, IP addresses and numbers. Lines without a level pass through.
type colorLineWriter struct {
	dst io.Writer
}

// Write renders one log line.
// Params: p one slog text record.
// Returns: len(p) on success to satisfy slog's short-write check.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	line := string(p)
	base := levelColor(line)
	if base == "" {
		if _, err := io.WriteString(w.dst, line); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	body, newline := strings.CutSuffix(line, "\n")
	colored := tokenPattern.ReplaceAllStringFunc(body, func(token string) string {
		return tokenColor(token) + token + ansiReset + base
	})

	var builder strings.Builder
	builder.Grow(len(colored) + 16)
	builder.WriteString(base)
	builder.WriteString(colored)
	builder.WriteString(ansiReset)
	if newline {
		builder.WriteByte('\n')
	}

	if _, err := io.WriteString(w.dst, builder.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// levelColor returns the base color for the line's level attribute.
func levelColor(line string) string {
	idx := strings.Index(line, "level=")
	if idx < 0 {
		return ""
	}
	level := line[idx+len("level="):]
	if end := strings.IndexAny(level, " \n"); end >= 0 {
		level = level[:end]
	}

	switch {
	case strings.HasPrefix(level, "DEBUG"):
		return ansiGray
	case strings.HasPrefix(level, "INFO"):
		return ansiBlue
	case strings.HasPrefix(level, "WARN"):
		return ansiMagenta
	case strings.HasPrefix(level, "ERROR"):
		return ansiRed
	default:
		return ""
	}
}

func tokenColor(token string) string {
	switch {
	case strings.HasPrefix(token, `"`):
		return ansiGreen
	case ipPattern.MatchString(token):
		return ansiCyan
	default:
		return ansiYellow
	}
}
