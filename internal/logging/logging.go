// Package logging builds the diagnostic logger used for per-record
// rejections and run summaries. Output always goes to stderr so stdout
// stays reserved for balances.
package logging

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cleared-dev/txengine/internal/config"
)

// New builds a logger writing to w according to cfg. Every entry carries
// a run_id unique to this invocation.
func New(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case config.FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	case config.FormatConsole, "":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))
	return zap.New(core).With(zap.String("run_id", uuid.NewString())), nil
}
