package xslog

import (
	"io"
	"log/slog"
)

// Discard is a logger that drops everything. Useful in tests and as a
// default before configuration is read.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
