// Package seqctx implements Context, the execution environment a Sequence
// or standalone Step runs against: the shared variable dictionary, the
// step-setup script/hook, and the message callback.
//
// It is named seqctx, not context, to avoid colliding with the standard
// library's context package — the two are unrelated: seqctx.Context is
// taskolib's variable/callback environment, not a cancellation signal.
package seqctx

import (
	"fmt"
	"os"

	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/variable"
)

// HostState is the minimal capability a ScriptHost exposes to a
// SetupHook: the ability to install a native function or value as a global
// in the freshly created script state, before the step's own script runs.
// Defining the interface here (rather than importing the scripthost
// package) keeps seqctx free of any dependency on the scripting engine.
type HostState interface {
	SetGlobal(name string, value any) error
}

// SetupHook is invoked on a fresh script state before every step, so a host
// application can register native functions the step-setup script or the
// steps themselves rely on.
type SetupHook func(HostState) error

// Callback receives every Message an Executor drains, in order.
type Callback func(message.Message)

// DefaultCallback prints the text of Output messages to standard output and
// ignores every other kind.
func DefaultCallback(m message.Message) {
	if m.Kind() == message.Output {
		fmt.Fprint(os.Stdout, m.Text())
	}
}

// Context is a passive struct: the variable dictionary a Sequence or Step
// reads from and writes to, the step-setup script, the step-setup hook, and
// the message callback.
type Context struct {
	// Variables is the shared dictionary. A Sequence or Step run against
	// this Context reads imported names from it before each step and
	// writes exported names back into it after.
	Variables variable.Map

	// StepSetupScript runs on a fresh script state before every step. A
	// running Sequence overwrites this with its own setup script.
	StepSetupScript []byte

	// StepSetupHook runs (native-side) on a fresh script state before
	// StepSetupScript, for registering host functions.
	StepSetupHook SetupHook

	// MessageCallback is invoked once per drained Message. A nil callback
	// disables reporting entirely — messages are still drained, just
	// discarded after. DefaultCallback is used by New.
	MessageCallback Callback
}

// New constructs a Context with an empty variable map and the default
// console callback.
func New() *Context {
	return &Context{
		Variables:       make(variable.Map),
		MessageCallback: DefaultCallback,
	}
}

// Clone returns a deep copy of c: an independent variable map and the same
// script/hook/callback references (a Sequence run copies the Context once
// per run, not per step).
func (c *Context) Clone() *Context {
	return &Context{
		Variables:       c.Variables.Clone(),
		StepSetupScript: append([]byte(nil), c.StepSetupScript...),
		StepSetupHook:   c.StepSetupHook,
		MessageCallback: c.MessageCallback,
	}
}

// Deliver invokes the callback, if any, with m.
func (c *Context) Deliver(m message.Message) {
	if c.MessageCallback != nil {
		c.MessageCallback(m)
	}
}
