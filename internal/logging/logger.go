// Package logging defines the structured, context-aware logger used across
// the client. Two backends are provided: log/slog (JSON or text) and zerolog
// (human-friendly console output).
package logging

import (
	"context"
	"io"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "sync pass finished", "applied", n, "pending", left)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported output formats.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// New builds a Logger writing to w. FormatConsole selects zerolog's console
// writer; FormatText the slog text handler; anything else JSON.
func New(w io.Writer, format, level string) Logger {
	if strings.EqualFold(format, FormatConsole) {
		return NewZerologConsole(w, level)
	}
	return NewSlogWriter(w, format, level)
}

// Err is a shorthand for attaching an error under the "error" key.
func Err(err error) []any {
	if err == nil {
		return []any{"error", nil}
	}
	return []any{"error", err.Error()}
}

type nop struct{}

// Nop returns a logger that discards everything.
func Nop() Logger { return nop{} }

func (nop) Debug(context.Context, string, ...any) {}
func (nop) Info(context.Context, string, ...any)  {}
func (nop) Warn(context.Context, string, ...any)  {}
func (nop) Error(context.Context, string, ...any) {}
func (n nop) With(...any) Logger                  { return n }
