package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process-wide logger that the rest of the code reaches
// through zap.L(). Debug keeps the colored development output, every other
// level logs JSON.
func InitLogger(logLevel string) error {
	lgr, err := Build(logLevel)
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(lgr)

	return nil
}

func Build(logLevel string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(logLevel))
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", logLevel, err)
	}

	var cfg zap.Config
	if level == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	lgr, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("构建日志器失败: %w", err)
	}

	return lgr.With(zap.String("service", "wildcard-party")), nil
}

func Sync() {
	_ = zap.L().Sync()
}
