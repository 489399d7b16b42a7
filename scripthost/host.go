// Package scripthost wraps an embedded script interpreter (goja, a pure-Go
// ECMAScript engine): fresh-state creation per step, a print/host
// native-function bridge, global variable get/set, and interrupt-based
// timeout/cancellation.
//
// One Host instance is created per step execution — the sandbox is never
// reused across steps, so globals leaked by one step's script cannot bleed
// into the next.
package scripthost

import (
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/taskolib/taskolib/comm"
	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/seqctx"
	"github.com/taskolib/taskolib/taskerr"
	"github.com/taskolib/taskolib/variable"
)

// pollInterval is how often the watchdog goroutine re-checks wall-clock
// elapsed time and the CommChannel's termination flag while a step's script
// is running, standing in for goja's lack of a built-in instruction-count
// interrupt hook.
const pollInterval = 2 * time.Millisecond

const (
	interruptTimeout   = "taskolib: step timeout exceeded"
	interruptCancelled = "taskolib: termination requested"
)

// Host runs one Step's script per RunStep call against a fresh goja
// runtime, emitting captured print output onto channel.
type Host struct {
	channel *comm.Channel
}

// New constructs a Host whose print bridge pushes Output messages onto
// channel. channel may be nil, in which case print output is discarded
// (used for standalone Step.Execute against a Context with no Executor).
func New(channel *comm.Channel) *Host {
	return &Host{channel: channel}
}

// RunParams describes one step execution.
type RunParams struct {
	StepIndex  int
	Script     []byte
	VarNames   []variable.Name
	Timeout    time.Duration
	HeaderMode bool
	Ctx        *seqctx.Context
}

// Outcome is what a successful RunStep produces beyond the Context
// mutations it performs in place.
type Outcome struct {
	// HeaderTruth is the header script's boolean result, valid only when
	// RunParams.HeaderMode was set. It follows ECMAScript truthiness: false,
	// 0, "", null, undefined and NaN are false; everything else is true.
	HeaderTruth bool
}

// hostAdapter satisfies seqctx.HostState, letting a Context's SetupHook
// install native functions into the fresh runtime before StepSetupScript
// and the step's own script run.
type hostAdapter struct {
	rt *goja.Runtime
}

func (a hostAdapter) SetGlobal(name string, value any) error {
	return a.rt.Set(name, value)
}

// RunStep executes one step's script to completion, or until it errors,
// times out, or is cancelled.
func (h *Host) RunStep(p RunParams) (Outcome, error) {
	rt := goja.New()

	if err := rt.Set("print", h.printFunc(p.StepIndex)); err != nil {
		return Outcome{}, taskerr.ForStep(taskerr.Script, p.StepIndex, "install print: "+err.Error()).WithCause(err)
	}

	if p.Ctx != nil {
		if p.Ctx.StepSetupHook != nil {
			if err := p.Ctx.StepSetupHook(hostAdapter{rt}); err != nil {
				return Outcome{}, taskerr.ForStep(taskerr.Script, p.StepIndex, "step-setup hook: "+err.Error()).WithCause(err)
			}
		}
		if len(p.Ctx.StepSetupScript) > 0 {
			if _, err := rt.RunString(string(p.Ctx.StepSetupScript)); err != nil {
				return Outcome{}, h.translate(p.StepIndex, err)
			}
		}
		for _, name := range p.VarNames {
			var native interface{} = goja.Undefined()
			if v, ok := p.Ctx.Variables[name]; ok {
				native = toNative(v)
			}
			if err := rt.Set(name.String(), native); err != nil {
				return Outcome{}, taskerr.ForStep(taskerr.Script, p.StepIndex, "bind "+name.String()+": "+err.Error()).WithCause(err)
			}
		}
	}

	done := make(chan struct{})
	start := time.Now()
	go h.watch(rt, p.Timeout, start, done)

	// Wrapping in an IIFE lets a step use `return` (for header truthiness
	// or early exit) the way the original embedded-language scripts do,
	// since JS forbids a bare top-level return.
	wrapped := "(function(){\n" + string(p.Script) + "\n})();"
	val, err := rt.RunString(wrapped)
	close(done)
	if err != nil {
		return Outcome{}, h.translate(p.StepIndex, err)
	}

	if p.Ctx != nil {
		for _, name := range p.VarNames {
			gv := rt.GlobalObject().Get(name.String())
			if nv, ok := fromGoja(gv); ok {
				p.Ctx.Variables[name] = nv
			}
		}
	}

	var out Outcome
	if p.HeaderMode {
		out.HeaderTruth = val != nil && val.ToBoolean()
	}
	return out, nil
}

func (h *Host) watch(rt *goja.Runtime, timeout time.Duration, start time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if h.channel != nil && h.channel.TerminationRequested() {
				rt.Interrupt(interruptCancelled)
				return
			}
			if timeout > 0 && time.Since(start) >= timeout {
				rt.Interrupt(interruptTimeout)
				return
			}
		}
	}
}

func (h *Host) printFunc(stepIndex int) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		text := strings.Join(parts, "\t") + "\n"
		if h.channel != nil {
			h.channel.Push(message.NewForStep(message.Output, text, time.Now().UTC(), stepIndex))
		}
		return goja.Undefined()
	}
}

// translate turns a goja error into a typed taskerr.Error, distinguishing
// timeout/cancelled (recorded by the watchdog's interrupt) from a plain
// script error.
func (h *Host) translate(stepIndex int, err error) error {
	kind := taskerr.Script
	if interrupted, ok := err.(*goja.InterruptedError); ok {
		switch interrupted.Value() {
		case interruptTimeout:
			kind = taskerr.Timeout
		case interruptCancelled:
			kind = taskerr.Cancelled
		}
	}
	return taskerr.ForStep(kind, stepIndex, err.Error()).WithCause(err)
}

func toNative(v variable.Value) interface{} {
	switch v.Kind() {
	case variable.KindInt:
		i, _ := v.Int()
		return i
	case variable.KindFloat:
		f, _ := v.Float()
		return f
	case variable.KindString:
		s, _ := v.Str()
		return s
	case variable.KindBool:
		b, _ := v.Bool()
		return b
	default:
		return nil
	}
}

func fromGoja(v goja.Value) (variable.Value, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return variable.Value{}, false
	}
	switch x := v.Export().(type) {
	case int64:
		return variable.NewInt(x), true
	case int:
		return variable.NewInt(int64(x)), true
	case float64:
		return variable.NewFloat(x), true
	case bool:
		return variable.NewBool(x), true
	case string:
		return variable.NewString(x), true
	default:
		return variable.Value{}, false
	}
}
