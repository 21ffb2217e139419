package log

import (
	"io"
	"log/slog"
)

func slogFor(w io.Writer) *slog.Logger {
	return slog.New(NewSlogHandler(w, LevelDebug))
}
