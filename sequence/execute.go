package sequence

import (
	"time"

	"github.com/taskolib/taskolib/comm"
	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/scripthost"
	"github.com/taskolib/taskolib/seqctx"
	"github.com/taskolib/taskolib/step"
	"github.com/taskolib/taskolib/taskerr"
)

// Execute runs sq's structured program against ctx to completion. channel
// may be nil for a bare synchronous run with no message reporting; an
// Executor always supplies a non-nil channel.
//
// Execute validates sq first; a structural error is returned synchronously
// without emitting any Messages.
func (sq *Sequence) Execute(channel *comm.Channel, ctx *seqctx.Context) error {
	if err := sq.Validate(); err != nil {
		return err
	}

	sq.SetRunning(true)
	defer sq.SetRunning(false)

	if ctx != nil {
		ctx.StepSetupScript = append([]byte(nil), sq.SetupScript()...)
	}

	start := time.Now().UTC()
	if channel != nil {
		channel.Push(message.New(message.SequenceStarted, "", start))
	}

	w := &walker{
		sq:       sq,
		channel:  channel,
		ctx:      ctx,
		host:     scripthost.New(channel),
		seqStart: time.Now(),
	}
	err := w.runRange(0, sq.Len())

	stop := time.Now().UTC()
	if err != nil {
		if channel != nil {
			channel.Push(message.New(message.SequenceStoppedWithError, err.Error(), stop))
		}
		return err
	}
	if channel != nil {
		channel.Push(message.New(message.SequenceStopped, "", stop))
	}
	return nil
}

// walker drives one structured execution pass over a validated Sequence.
type walker struct {
	sq       *Sequence
	channel  *comm.Channel
	ctx      *seqctx.Context
	host     *scripthost.Host
	seqStart time.Time
}

func (w *walker) cancelled(atIndex int) error {
	if w.channel == nil || !w.channel.TerminationRequested() {
		return nil
	}
	return taskerr.ForStep(taskerr.Cancelled, atIndex, "termination requested")
}

// runRange executes the blocks found in step index range [lo, hi) in order.
func (w *walker) runRange(lo, hi int) error {
	i := lo
	for i < hi {
		if err := w.cancelled(i); err != nil {
			return err
		}
		st := w.sq.StepAt(i)
		switch st.Type() {
		case step.Action:
			if err := w.runStepAction(i); err != nil {
				return err
			}
			i++

		case step.If:
			end := w.sq.matches[i]
			if err := w.runIf(i, end); err != nil {
				return err
			}
			i = end + 1

		case step.While:
			end := w.sq.matches[i]
			if err := w.runWhile(i, end); err != nil {
				return err
			}
			i = end + 1

		case step.Try:
			end := w.sq.matches[i]
			catchIdx := w.sq.catchOf[i]
			if err := w.runTry(i, catchIdx, end); err != nil {
				return err
			}
			i = end + 1

		default:
			// elseif/else/catch/end are only ever visited through the
			// opener handlers above; reaching one directly here would
			// mean Validate let through a malformed sequence.
			i++
		}
	}
	return nil
}

// runIf evaluates the if/elseif/else chain headed at openerIdx, executing
// the first truthy branch's body (or else's body unconditionally) and
// nothing else.
func (w *walker) runIf(openerIdx, end int) error {
	chain := w.sq.chains[openerIdx]
	markers := make([]int, 0, len(chain)+2)
	markers = append(markers, openerIdx)
	markers = append(markers, chain...)
	markers = append(markers, end)

	for b := 0; b < len(markers)-1; b++ {
		headerIdx := markers[b]
		bodyStart := markers[b] + 1
		bodyEnd := markers[b+1]

		if w.sq.StepAt(headerIdx).Type() == step.Else {
			return w.runRange(bodyStart, bodyEnd)
		}

		truth, err := w.runHeader(headerIdx)
		if err != nil {
			return err
		}
		if truth {
			return w.runRange(bodyStart, bodyEnd)
		}
	}
	return nil
}

func (w *walker) runWhile(openerIdx, end int) error {
	for {
		if err := w.cancelled(openerIdx); err != nil {
			return err
		}
		truth, err := w.runHeader(openerIdx)
		if err != nil {
			return err
		}
		if !truth {
			return nil
		}
		if err := w.runRange(openerIdx+1, end); err != nil {
			return err
		}
	}
}

func (w *walker) runTry(openerIdx, catchIdx, end int) error {
	err := w.runRange(openerIdx+1, catchIdx)
	if err == nil {
		return nil
	}
	if taskerr.IsKind(err, taskerr.Cancelled) {
		return err // try/catch never intercepts cancellation
	}
	if taskerr.IsKind(err, taskerr.Script) || taskerr.IsKind(err, taskerr.Timeout) {
		return w.runRange(catchIdx+1, end)
	}
	return err
}

// runHeader executes the header script of an if/elseif/while step and
// returns its boolean result.
func (w *walker) runHeader(idx int) (bool, error) {
	return w.runStep(idx, true)
}

// runStepAction executes a plain action step.
func (w *walker) runStepAction(idx int) error {
	_, err := w.runStep(idx, false)
	return err
}

func (w *walker) runStep(idx int, headerMode bool) (bool, error) {
	st := w.sq.StepAt(idx)

	startedAt := time.Now().UTC()
	st.SetRunning(true)
	st.SetLastExecuted(startedAt)
	if w.channel != nil {
		w.channel.Push(message.NewForStep(message.StepStarted, "", startedAt, idx))
	}

	outcome, err := w.host.RunStep(scripthost.RunParams{
		StepIndex:  idx,
		Script:     st.Script(),
		VarNames:   st.VariableNames(),
		Timeout:    w.effectiveTimeout(st.Timeout()),
		HeaderMode: headerMode,
		Ctx:        w.ctx,
	})

	st.SetRunning(false)
	stoppedAt := time.Now().UTC()
	if err != nil {
		if w.channel != nil {
			w.channel.Push(message.NewForStep(message.StepStoppedWithError, err.Error(), stoppedAt, idx))
		}
		return false, err
	}
	if w.channel != nil {
		w.channel.Push(message.NewForStep(message.StepStopped, "", stoppedAt, idx))
	}
	return outcome.HeaderTruth, nil
}

// effectiveTimeout narrows a step's own timeout to whatever remains of the
// sequence-level budget, so that a total-duration timeout is attributed to
// whichever step was running when the bound was crossed.
func (w *walker) effectiveTimeout(stepTimeout time.Duration) time.Duration {
	max := w.sq.MaxDuration()
	if max <= 0 {
		return stepTimeout
	}
	remaining := max - time.Since(w.seqStart)
	if remaining <= 0 {
		remaining = time.Nanosecond
	}
	if stepTimeout <= 0 || remaining < stepTimeout {
		return remaining
	}
	return stepTimeout
}
