// Package step implements Step, the inert unit of a Sequence: either a
// structural marker (if/elseif/else/while/try/catch/end) or an action
// carrying a script fragment.
package step

import (
	"time"

	"github.com/taskolib/taskolib/variable"
)

// Type is the step-type tag.
type Type int

const (
	Action Type = iota
	If
	ElseIf
	Else
	While
	Try
	Catch
	End
)

func (t Type) String() string {
	switch t {
	case Action:
		return "action"
	case If:
		return "if"
	case ElseIf:
		return "elseif"
	case Else:
		return "else"
	case While:
		return "while"
	case Try:
		return "try"
	case Catch:
		return "catch"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// IsOpener reports whether t begins a structured block (if/while/try).
func (t Type) IsOpener() bool {
	return t == If || t == While || t == Try
}

// HasHeaderScript reports whether t's script is evaluated as a boolean
// condition rather than executed as a plain action.
func (t Type) HasHeaderScript() bool {
	return t == If || t == ElseIf || t == While
}

// NoTimeout is the zero Duration, meaning "no timeout" per spec (a Step
// timeout of exactly zero means unlimited, not instantaneous).
const NoTimeout time.Duration = 0

// nameSet is an insertion-ordered set of variable Names, so that
// persistence round-trips preserve the order imported/exported names were
// added in (see SPEC_FULL.md Additions, "import/export variable ordering").
type nameSet struct {
	order []variable.Name
	index map[variable.Name]int
}

func newNameSet(names ...variable.Name) nameSet {
	s := nameSet{index: make(map[variable.Name]int, len(names))}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *nameSet) add(n variable.Name) {
	if _, ok := s.index[n]; ok {
		return
	}
	s.index[n] = len(s.order)
	s.order = append(s.order, n)
}

func (s nameSet) contains(n variable.Name) bool {
	_, ok := s.index[n]
	return ok
}

func (s nameSet) slice() []variable.Name {
	out := make([]variable.Name, len(s.order))
	copy(out, s.order)
	return out
}

// Step is a value object: a type tag, script text, display label, the set
// of variable names it imports/exports, timestamps, a timeout, and a
// transient running flag mutated only by an Executor.
type Step struct {
	typ      Type
	script   []byte
	label    string
	vars     nameSet

	lastModified time.Time
	lastExecuted time.Time
	hasExecuted  bool

	timeout time.Duration

	running bool
}

// New constructs a Step of the given type with an empty script. Its
// last-modification time is set to now.
func New(typ Type) *Step {
	return &Step{
		typ:          typ,
		vars:         newNameSet(),
		lastModified: time.Now().UTC(),
	}
}

// Type returns the step-type tag.
func (s *Step) Type() Type { return s.typ }

// SetType changes the step-type tag directly (no modification timestamp
// bump — only the script text is considered "content" for that purpose).
func (s *Step) SetType(typ Type) { s.typ = typ }

// Script returns the step's script text.
func (s *Step) Script() []byte { return s.script }

// SetScript replaces the script text and bumps the last-modification
// timestamp to now.
func (s *Step) SetScript(script []byte) {
	s.script = script
	s.lastModified = time.Now().UTC()
}

// LoadScript replaces the script text without touching the modification
// timestamp, for use by the persistence loader reconstructing a Step whose
// original timestamp must be preserved.
func (s *Step) LoadScript(script []byte) {
	s.script = script
}

// Label returns the display label.
func (s *Step) Label() string { return s.label }

// SetLabel sets the display label.
func (s *Step) SetLabel(label string) { s.label = label }

// VariableNames returns the ordered set of variable names this step imports
// and exports.
func (s *Step) VariableNames() []variable.Name { return s.vars.slice() }

// SetVariableNames replaces the step's imported/exported variable set.
func (s *Step) SetVariableNames(names []variable.Name) {
	s.vars = newNameSet(names...)
}

// UsesVariable reports whether name is in this step's variable set.
func (s *Step) UsesVariable(name variable.Name) bool {
	return s.vars.contains(name)
}

// LastModified returns when the script was last set via SetScript.
func (s *Step) LastModified() time.Time { return s.lastModified }

// SetLastModified directly sets the modification timestamp, for use by the
// persistence loader.
func (s *Step) SetLastModified(t time.Time) { s.lastModified = t }

// LastExecuted returns when this step last ran, and whether it has ever run.
func (s *Step) LastExecuted() (time.Time, bool) { return s.lastExecuted, s.hasExecuted }

// SetLastExecuted records an execution timestamp. Called by an Executor,
// by synchronous execution, and by the persistence loader.
func (s *Step) SetLastExecuted(t time.Time) {
	s.lastExecuted = t
	s.hasExecuted = true
}

// Timeout returns the step's timeout; NoTimeout means unlimited.
func (s *Step) Timeout() time.Duration { return s.timeout }

// SetTimeout sets the step's timeout. A negative value is clamped to
// NoTimeout.
func (s *Step) SetTimeout(d time.Duration) {
	if d < 0 {
		d = NoTimeout
	}
	s.timeout = d
}

// Running reports whether an Executor currently has this step mid-execution.
// This flag is never persisted.
func (s *Step) Running() bool { return s.running }

// SetRunning is called by an Executor as it drains Messages, and by
// synchronous execution (Step.Execute, Sequence.Execute) around a run.
func (s *Step) SetRunning(v bool) { s.running = v }

// Clone returns a deep copy of s, for the Executor's worker/controller
// split (the worker never touches the controller's Step values).
func (s *Step) Clone() *Step {
	clone := *s
	script := make([]byte, len(s.script))
	copy(script, s.script)
	clone.script = script
	clone.vars = newNameSet(s.vars.slice()...)
	return &clone
}
