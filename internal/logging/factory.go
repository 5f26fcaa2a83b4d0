package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
)

// New builds a Logger for the given backend ("slog" or "zap") and format
// ("json" or "text"). Output goes to w for the slog backend; zap writes to
// stderr via its production or development preset.
func New(backend, format string, w io.Writer) (Logger, error) {
	switch backend {
	case "", "slog":
		var h slog.Handler
		switch format {
		case "", "json":
			h = slog.NewJSONHandler(w, nil)
		case "text":
			h = slog.NewTextHandler(w, nil)
		default:
			return nil, fmt.Errorf("unknown log format %q", format)
		}
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		var (
			l   *zap.Logger
			err error
		)
		switch format {
		case "", "json":
			l, err = zap.NewProduction()
		case "text":
			l, err = zap.NewDevelopment()
		default:
			return nil, fmt.Errorf("unknown log format %q", format)
		}
		if err != nil {
			return nil, fmt.Errorf("zap init: %w", err)
		}
		return NewZapLogger(l), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
