package pulse

import (
	"log"
)

// PulseLogger is a hook that prints every delivered pulse.
type PulseLogger struct {
	*log.Logger

	withPress bool
}

// NewPulseLogger returns a PulseLogger that writes into logger.
func NewPulseLogger(logger *log.Logger) *PulseLogger {
	return &PulseLogger{Logger: logger}
}

// WithPressIndex prefixes every line with the press and wave of the pulse.
func (h *PulseLogger) WithPressIndex() *PulseLogger {
	h.withPress = true
	return h
}

// Func writes the pulse information into the logger.
func (h *PulseLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforePulse {
		return
	}

	d, ok := ctx.Item.(Delivery)
	if !ok {
		return
	}

	if h.withPress {
		h.Printf("%d.%d %s", d.Press, d.Wave, d.Pulse)
		return
	}

	h.Print(d.Pulse)
}
