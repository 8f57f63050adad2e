package logging

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
)

// Formats accepted by New.
const (
	FormatJSON = "json"
	FormatZap  = "zap"
)

// New builds the process logger for the configured format.
func New(format string) (Logger, error) {
	switch format {
	case "", FormatJSON:
		return NewJSONSlogLogger(os.Stdout, slog.LevelInfo), nil
	case FormatZap:
		z, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("zap init: %w", err)
		}
		return NewZapLogger(z), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
