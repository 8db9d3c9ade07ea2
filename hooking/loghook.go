package hooking

import (
	"log"
)

// LogHook writes every firing to a logger. It is meant for debugging runs,
// not for production statistics.
type LogHook struct {
	*log.Logger
}

// NewLogHook creates a LogHook that writes to the given logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func logs the hook position and item.
func (h *LogHook) Func(ctx HookCtx) {
	h.Printf("%s: %+v", ctx.Pos.Name, ctx.Item)
}
