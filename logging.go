package journalgelf

import (
	"context"
	"fmt"
	"log/slog"
)

// ContextKey labels a context value that ContextLogger copies onto log lines.
type ContextKey string

const (
	ContextKeyPipelineName ContextKey = "pipeline"

	// ContextKeyPluginType is the stage and its kind (eg. "input[journalctl]")
	ContextKeyPluginType ContextKey = "pluginType"

	ContextKeyPluginName ContextKey = "pluginName"

	// ContextKeyTarget is the Graylog address a record goes to
	ContextKeyTarget ContextKey = "target"
)

var loggedKeys = [...]ContextKey{
	ContextKeyPipelineName,
	ContextKeyPluginType,
	ContextKeyPluginName,
	ContextKeyTarget,
}

// ContextLogger is the default logger annotated with whatever pipeline,
// plugin and target ctx carries. Stringers are logged as their text.
func ContextLogger(ctx context.Context) *slog.Logger {
	var attrs []any
	for _, key := range loggedKeys {
		switch v := ctx.Value(key).(type) {
		case nil:
		case fmt.Stringer:
			attrs = append(attrs, slog.String(string(key), v.String()))
		default:
			attrs = append(attrs, slog.Any(string(key), v))
		}
	}
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
