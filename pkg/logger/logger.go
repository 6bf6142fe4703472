// pkg/logger/logger.go
package logger

import (
	"context"

	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

type fieldsKey struct{}

// WithFields returns ctx carrying extra key/value pairs for FromContext.
func WithFields(ctx context.Context, kv ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]any)
	merged := make([]any, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FromContext returns base annotated with the fields stored in ctx.
func FromContext(ctx context.Context, base Sugared) Sugared {
	if kv, _ := ctx.Value(fieldsKey{}).([]any); len(kv) > 0 {
		return base.With(kv...)
	}
	return base
}
