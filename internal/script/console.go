package script

import (
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

// consoleModule routes console.* and alert() to the structured log.
type consoleModule struct{}

func (consoleModule) name() string { return "console" }

func (m *consoleModule) start(h *Host) error {
	console := h.vm.NewObject()
	h.method(console, "log", logFunc(h, slog.LevelInfo))
	h.method(console, "info", logFunc(h, slog.LevelInfo))
	h.method(console, "debug", logFunc(h, slog.LevelDebug))
	h.method(console, "warn", logFunc(h, slog.LevelWarn))
	h.method(console, "error", logFunc(h, slog.LevelError))
	if err := h.vm.Set("console", console); err != nil {
		return err
	}

	return h.vm.Set("alert", func(call goja.FunctionCall) goja.Value {
		h.alert(joinArgs(call.Arguments))
		return goja.Undefined()
	})
}

func (m *consoleModule) stop() {}

func logFunc(h *Host, level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		h.logger.Log(nil, level, joinArgs(call.Arguments), "source", "script")
		return goja.Undefined()
	}
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
