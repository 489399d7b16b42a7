// Package message defines the event records an Executor's worker goroutine
// emits onto a CommChannel for the controller to drain and report.
package message

import "time"

// Kind enumerates the Message alternatives an Executor's worker may emit.
type Kind int

const (
	// SequenceStarted marks the beginning of a Sequence's structured execution.
	SequenceStarted Kind = iota
	// SequenceStopped marks normal completion of a Sequence.
	SequenceStopped
	// SequenceStoppedWithError marks a Sequence that terminated via a script,
	// timeout, or cancelled error.
	SequenceStoppedWithError
	// StepStarted marks the start of a single Step's execution.
	StepStarted
	// StepStopped marks normal completion of a Step.
	StepStopped
	// StepStoppedWithError marks a Step that raised a script, timeout, or
	// cancelled error.
	StepStoppedWithError
	// Output carries captured script `print` text; it causes no state change
	// in a Sequence and is passed straight to the Context's callback.
	Output
)

func (k Kind) String() string {
	switch k {
	case SequenceStarted:
		return "sequence_started"
	case SequenceStopped:
		return "sequence_stopped"
	case SequenceStoppedWithError:
		return "sequence_stopped_with_error"
	case StepStarted:
		return "step_started"
	case StepStopped:
		return "step_stopped"
	case StepStoppedWithError:
		return "step_stopped_with_error"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Message is an immutable event sent from an Executor's worker goroutine to
// its controller.
type Message struct {
	kind      Kind
	text      string
	timestamp time.Time
	stepIndex int
	hasStep   bool
}

// New constructs a Message with no associated step index.
func New(kind Kind, text string, timestamp time.Time) Message {
	return Message{kind: kind, text: text, timestamp: timestamp}
}

// NewForStep constructs a Message attributed to the step at index idx.
func NewForStep(kind Kind, text string, timestamp time.Time, idx int) Message {
	return Message{kind: kind, text: text, timestamp: timestamp, stepIndex: idx, hasStep: true}
}

// Kind returns the message kind.
func (m Message) Kind() Kind { return m.kind }

// Text returns the message's free-form text (e.g. captured print output, or
// an error description).
func (m Message) Text() string { return m.text }

// Timestamp returns when the message was produced.
func (m Message) Timestamp() time.Time { return m.timestamp }

// StepIndex returns the associated step index and whether one is present.
func (m Message) StepIndex() (int, bool) { return m.stepIndex, m.hasStep }
