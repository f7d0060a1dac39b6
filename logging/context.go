package logging

import (
	"context"

	"github.com/google/uuid"
)

type runKeyType struct{}

// WithRunKey tags ctx with a key that is added as a "run" field to every context aware log call.
// Debug messages on a tagged context are written whatever the logger level. An empty key
// generates a short random one.
func WithRunKey(ctx context.Context, key string) context.Context {
	if key == "" {
		key = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, runKeyType{}, key)
}

// RunKey returns the key attached by WithRunKey, or "" for an untagged context.
func RunKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(runKeyType{}).(string)
	return key
}
