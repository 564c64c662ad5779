package pulse

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookPosPressStart triggers before the button pulse is queued. Item is the
// press index.
var HookPosPressStart = &HookPos{Name: "PressStart"}

// HookPosBeforePulse triggers when a pulse is dequeued, after it is counted
// and before its destination reacts. Item is a Delivery.
var HookPosBeforePulse = &HookPos{Name: "BeforePulse"}

// HookPosAfterPulse triggers after the destination of a pulse has reacted.
// It does not trigger for the pulse that interrupts a press.
var HookPosAfterPulse = &HookPos{Name: "AfterPulse"}

// HookPosPressEnd triggers when a press finishes, including presses aborted by
// an error. Item is the press index and Detail is the Result.
var HookPosPressEnd = &HookPos{Name: "PressEnd"}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	InvokeHook(ctx HookCtx)
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	return &HookableBase{hookList: make([]Hook, 0)}
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// AcceptHook registers a hook. Hooks must be registered before the first
// press.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, e := range h.hookList {
		if e == hook {
			panic("duplicated hook")
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook triggers the registered Hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
