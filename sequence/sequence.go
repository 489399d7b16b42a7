// Package sequence implements Sequence: an ordered list of Steps, its
// structural well-formedness analysis, and the structured execution that
// walks validated blocks in order.
package sequence

import (
	"sync"
	"time"

	"github.com/taskolib/taskolib/step"
	"github.com/taskolib/taskolib/taskerr"
)

// Sequence is an ordered list of Steps plus a display label, a step-setup
// script, a maximum total duration, and cached structural state derived
// from the step list.
type Sequence struct {
	mu sync.RWMutex

	label       string
	steps       []*step.Step
	setupScript []byte
	maxDuration time.Duration

	running bool

	structureComputed bool
	valid             bool
	reason            string
	invalidIndex      int
	matches           map[int]int
	chains            map[int][]int
	catchOf           map[int]int
}

// New constructs an empty Sequence with the given display label.
func New(label string) *Sequence {
	return &Sequence{label: label}
}

// Label returns the display label.
func (sq *Sequence) Label() string {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return sq.label
}

// SetLabel sets the display label.
func (sq *Sequence) SetLabel(label string) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.label = label
}

// SetupScript returns the step-setup script run before every step.
func (sq *Sequence) SetupScript() []byte {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return sq.setupScript
}

// SetSetupScript sets the step-setup script.
func (sq *Sequence) SetSetupScript(script []byte) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.setupScript = script
}

// MaxDuration returns the maximum duration for the whole structured
// execution; zero means unlimited.
func (sq *Sequence) MaxDuration() time.Duration {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return sq.maxDuration
}

// SetMaxDuration sets the sequence-wide timeout.
func (sq *Sequence) SetMaxDuration(d time.Duration) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	if d < 0 {
		d = 0
	}
	sq.maxDuration = d
}

// Len returns the number of steps.
func (sq *Sequence) Len() int {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return len(sq.steps)
}

// StepAt returns the step at idx.
func (sq *Sequence) StepAt(idx int) *step.Step {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return sq.steps[idx]
}

// Steps returns a copy of the step slice; the Steps themselves are shared
// pointers, so a reader can range over the result without blocking a
// concurrent mutation of the Sequence.
func (sq *Sequence) Steps() []*step.Step {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	out := make([]*step.Step, len(sq.steps))
	copy(out, sq.steps)
	return out
}

// SetSteps replaces the entire step list and discards cached structural
// state.
func (sq *Sequence) SetSteps(steps []*step.Step) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.steps = append([]*step.Step(nil), steps...)
	sq.invalidate()
}

// AddStep appends s to the end of the sequence.
func (sq *Sequence) AddStep(s *step.Step) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.steps = append(sq.steps, s)
	sq.invalidate()
}

// InsertStep inserts s at idx, shifting later steps back.
func (sq *Sequence) InsertStep(idx int, s *step.Step) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.steps = append(sq.steps, nil)
	copy(sq.steps[idx+1:], sq.steps[idx:])
	sq.steps[idx] = s
	sq.invalidate()
}

// RemoveStep removes the step at idx.
func (sq *Sequence) RemoveStep(idx int) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.steps = append(sq.steps[:idx], sq.steps[idx+1:]...)
	sq.invalidate()
}

// invalidate discards cached structural state. Callers must hold sq.mu.
func (sq *Sequence) invalidate() {
	sq.structureComputed = false
	sq.valid = false
	sq.reason = ""
	sq.matches = nil
	sq.chains = nil
	sq.catchOf = nil
}

// Running reports whether an Executor (or a direct Execute call) currently
// has this Sequence mid-run.
func (sq *Sequence) Running() bool {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return sq.running
}

// SetRunning is mutated only by an Executor (or Execute itself for
// synchronous library use).
func (sq *Sequence) SetRunning(v bool) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.running = v
}

// Validate recomputes (if necessary) and returns the structural
// well-formedness of the step list. It returns nil if valid, or a
// *taskerr.Error of kind Structural naming the first offending step
// otherwise.
func (sq *Sequence) Validate() error {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return sq.validateLocked()
}

func (sq *Sequence) validateLocked() error {
	if !sq.structureComputed {
		matches, chains, catchOf, invalidIdx, reason, ok := computeStructure(sq.steps)
		sq.structureComputed = true
		sq.valid = ok
		sq.reason = reason
		sq.invalidIndex = invalidIdx
		sq.matches = matches
		sq.chains = chains
		sq.catchOf = catchOf
	}
	if sq.valid {
		return nil
	}
	return taskerr.ForStep(taskerr.Structural, sq.invalidIndex, sq.reason)
}

// IsValid reports whether the step list is structurally well-formed,
// computing the structure first if no cached result exists.
func (sq *Sequence) IsValid() bool {
	if err := sq.Validate(); err != nil {
		return false
	}
	return true
}

// Reason returns the diagnostic reason for the most recent validation
// failure, or "" if the sequence is valid.
func (sq *Sequence) Reason() string {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return sq.reason
}

// Clone returns a deep copy of sq: independent Step values, same label and
// setup script contents, same timeout. Used by an Executor to hand the
// worker a copy the controller never touches.
func (sq *Sequence) Clone() *Sequence {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	clone := &Sequence{
		label:       sq.label,
		setupScript: append([]byte(nil), sq.setupScript...),
		maxDuration: sq.maxDuration,
	}
	clone.steps = make([]*step.Step, len(sq.steps))
	for i, s := range sq.steps {
		clone.steps[i] = s.Clone()
	}
	return clone
}
