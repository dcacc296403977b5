package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type varselIDKey struct{}

// NewLogger builds the JSON logger used by every component. Components get it
// passed in; there is no global logger.
func NewLogger(level string, appName string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "@timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if appName = strings.TrimSpace(appName); appName != "" {
		logger = logger.With(zap.String("app", appName))
	}
	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

// WithVarselID stores the correlation id of the varsel being processed.
func WithVarselID(ctx context.Context, varselID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, varselIDKey{}, varselID)
}

func VarselIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	varselID, ok := ctx.Value(varselIDKey{}).(string)
	if !ok || varselID == "" {
		return "", false
	}

	return varselID, true
}

// WithContextLogger adds the varsel id from ctx, if any, to logger.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	varselID, ok := VarselIDFromContext(ctx)
	if !ok {
		return logger
	}

	return logger.With(zap.String("varselId", varselID))
}
