// Package executor implements Executor: an asynchronous controller/worker
// split. An Executor runs a Sequence (or a single
// Step) on one background goroutine, transports progress Messages through a
// comm.Channel, and applies them to the controller's local Sequence copy
// when the controller calls Update.
//
// There is deliberately no package-level registry or singleton here — every
// Executor is a plain constructed value.
package executor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskolib/taskolib/comm"
	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/scripthost"
	"github.com/taskolib/taskolib/seqctx"
	"github.com/taskolib/taskolib/sequence"
	"github.com/taskolib/taskolib/taskerr"
	"github.com/taskolib/taskolib/variable"
)

// State is the Executor's coarse lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithQueueCapacity sets the CommChannel's bounded queue capacity; the
// default is comm.DefaultCapacity.
func WithQueueCapacity(n int) Option {
	return func(e *Executor) { e.queueCapacity = n }
}

// WithLogger installs a debug logger invoked with one line per Message
// applied during Update, and on worker start/stop. Absent a logger, an
// Executor logs nothing.
func WithLogger(logf func(format string, args ...interface{})) Option {
	return func(e *Executor) { e.logf = logf }
}

// Executor runs at most one Sequence or Step at a time on a worker
// goroutine, reconciling controller-side state from Messages drained on
// demand.
type Executor struct {
	mu            sync.Mutex
	state         State
	queueCapacity int
	logf          func(format string, args ...interface{})

	channel *comm.Channel
	ctx     *seqctx.Context // controller's retained copy, for its callback
	worker  *errgroup.Group
	result  chan workerResult // one-shot future for get_context_variables

	finalVars  variable.Map
	finalErr   error
	haveResult bool
}

type workerResult struct {
	vars variable.Map
	err  error
}

// New constructs an idle Executor.
func New(opts ...Option) *Executor {
	e := &Executor{state: Idle}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the Executor's current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) log(format string, args ...interface{}) {
	if e.logf != nil {
		e.logf(format, args...)
	}
}

// RunAsynchronously starts seq's structured execution on a new worker
// goroutine against a clone of ctx, marking seq's running flag and
// transitioning Idle→Running. It fails with a taskerr of kind Busy if the
// Executor is not Idle.
func (e *Executor) RunAsynchronously(seq *sequence.Sequence, ctx *seqctx.Context) error {
	workerSeq := seq.Clone()
	return e.start(func(channel *comm.Channel, workerCtx *seqctx.Context) (variable.Map, error) {
		err := workerSeq.Execute(channel, workerCtx)
		return workerCtx.Variables, err
	}, seq, ctx)
}

// RunSingleStepAsynchronously runs the script of the step at idx within seq
// on a new worker goroutine against a clone of ctx, without running the
// surrounding Sequence's other steps or structural validation. idx is
// checked against seq.Len() synchronously, before any goroutine starts, so
// an out-of-range index fails immediately rather than surfacing later as a
// Message. The worker runs against a clone of seq (seq.Clone()), never the
// controller's own Step values, and emits step-indexed StepStarted/
// StepStopped(WithError) Messages — not Sequence-level ones — so a
// controller's Update/applyMessage reconciles the run onto the owning
// Sequence's per-step running flag and last-execution timestamp exactly as
// it would for that step inside a full run.
func (e *Executor) RunSingleStepAsynchronously(seq *sequence.Sequence, ctx *seqctx.Context, idx int) error {
	if idx < 0 || idx >= seq.Len() {
		return taskerr.ForStep(taskerr.Structural, idx, "step index out of range")
	}

	workerSeq := seq.Clone()
	return e.start(func(channel *comm.Channel, workerCtx *seqctx.Context) (variable.Map, error) {
		s := workerSeq.StepAt(idx)
		s.SetRunning(true)
		defer s.SetRunning(false)

		startedAt := time.Now().UTC()
		s.SetLastExecuted(startedAt)
		channel.Push(message.NewForStep(message.StepStarted, "", startedAt, idx))

		host := scripthost.New(channel)
		_, err := host.RunStep(scripthost.RunParams{
			StepIndex:  idx,
			Script:     s.Script(),
			VarNames:   s.VariableNames(),
			Timeout:    s.Timeout(),
			HeaderMode: s.Type().HasHeaderScript(),
			Ctx:        workerCtx,
		})

		stoppedAt := time.Now().UTC()
		if err != nil {
			channel.Push(message.NewForStep(message.StepStoppedWithError, err.Error(), stoppedAt, idx))
			return workerCtx.Variables, err
		}
		channel.Push(message.NewForStep(message.StepStopped, "", stoppedAt, idx))
		return workerCtx.Variables, nil
	}, nil, ctx)
}

func (e *Executor) start(run func(*comm.Channel, *seqctx.Context) (variable.Map, error), seq *sequence.Sequence, ctx *seqctx.Context) error {
	e.mu.Lock()
	if e.state != Idle {
		e.mu.Unlock()
		return taskerr.New(taskerr.Busy, "executor is not idle")
	}

	channel := comm.New(e.queueCapacity)
	workerCtx := ctx.Clone()
	e.channel = channel
	e.ctx = ctx.Clone()
	e.result = make(chan workerResult, 1)
	e.haveResult = false
	e.state = Running

	if seq != nil {
		seq.SetRunning(true)
	}
	e.mu.Unlock()

	g, _ := errgroup.WithContext(context.Background())
	e.worker = g
	g.Go(func() error {
		e.log("executor: worker starting")
		vars, err := run(channel, workerCtx)
		e.result <- workerResult{vars: vars, err: err}
		e.log("executor: worker finished err=%v", err)
		return nil // errors are reported via Messages/result, not the errgroup
	})

	return nil
}

// Update drains every currently queued Message, applies each to seq (see
// applyMessage's per-kind state reconciliation), and invokes ctx's callback
// for each. It returns true while the worker may still produce more
// Messages (still running, or the queue is non-empty); once the worker has
// joined and the queue is fully drained it transitions Running/Draining
// back to Idle and returns false.
func (e *Executor) Update(seq *sequence.Sequence) bool {
	e.mu.Lock()
	channel := e.channel
	ctx := e.ctx
	worker := e.worker
	e.mu.Unlock()

	if channel == nil {
		return false
	}

	for _, m := range channel.DrainAll() {
		applyMessage(seq, m)
		e.log("executor: message %s", m.Kind())
		if ctx != nil && ctx.MessageCallback != nil {
			ctx.MessageCallback(m)
		}
	}

	joined := e.pollWorker(worker)
	stillQueued := channel.Size() > 0

	e.mu.Lock()
	defer e.mu.Unlock()
	if joined && !stillQueued {
		e.state = Idle
		return false
	}
	if joined {
		e.state = Draining
	}
	return true
}

// pollWorker reports whether the worker goroutine has finished, without
// blocking, by checking whether its one-shot result has already arrived.
func (e *Executor) pollWorker(worker *errgroup.Group) bool {
	e.mu.Lock()
	haveResult := e.haveResult
	e.mu.Unlock()
	if haveResult {
		return true
	}
	select {
	case res := <-e.result:
		e.mu.Lock()
		e.finalVars = res.vars
		e.finalErr = res.err
		e.haveResult = true
		e.mu.Unlock()
		return true
	default:
		return false
	}
}

// Cancel sets the termination flag and blocks until the worker has joined;
// any Messages still queued are discarded.
func (e *Executor) Cancel() {
	e.mu.Lock()
	channel := e.channel
	e.mu.Unlock()
	if channel == nil {
		return
	}
	channel.RequestTermination()
	joined := make(chan struct{})
	go func() {
		e.joinWorker()
		close(joined)
	}()
	for waiting := true; waiting; {
		channel.DrainAll() // discarded; this also frees a worker blocked in Push
		select {
		case <-joined:
			waiting = false
		case <-time.After(time.Millisecond):
		}
	}
	channel.DrainAll()

	e.mu.Lock()
	e.state = Idle
	e.mu.Unlock()
}

// CancelInto sets the termination flag, joins the worker, then drains
// remaining Messages into seq via the same reconciliation Update performs.
func (e *Executor) CancelInto(seq *sequence.Sequence) {
	e.mu.Lock()
	channel := e.channel
	e.mu.Unlock()
	if channel == nil {
		return
	}
	channel.RequestTermination()
	e.joinWorker()
	for e.Update(seq) {
	}
}

func (e *Executor) joinWorker() {
	e.mu.Lock()
	worker := e.worker
	e.mu.Unlock()
	if worker == nil {
		return
	}
	_ = worker.Wait() // the worker goroutine itself never returns a non-nil error
	e.mu.Lock()
	if !e.haveResult {
		select {
		case res := <-e.result:
			e.finalVars = res.vars
			e.finalErr = res.err
			e.haveResult = true
		default:
		}
	}
	e.mu.Unlock()
}

// GetContextVariables returns the worker's final variable map and any
// terminal error, once Update has reported "not busy" (false). It does not
// block: if the worker's one-shot result has not arrived yet, it returns a
// taskerr of kind Busy.
func (e *Executor) GetContextVariables() (variable.Map, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.haveResult {
		select {
		case res := <-e.result:
			e.finalVars = res.vars
			e.finalErr = res.err
			e.haveResult = true
		default:
			return nil, taskerr.New(taskerr.Busy, "worker has not finished")
		}
	}
	return e.finalVars, e.finalErr
}

// applyMessage reconciles one Message onto seq: sequence_started/stopped*
// toggle the Sequence-level running flag, step_started/stopped* toggle the
// addressed Step's running flag and last-execution timestamp. Output
// carries no state change.
func applyMessage(seq *sequence.Sequence, m message.Message) {
	if seq == nil {
		return
	}
	switch m.Kind() {
	case message.SequenceStarted:
		seq.SetRunning(true)
	case message.SequenceStopped, message.SequenceStoppedWithError:
		seq.SetRunning(false)
	case message.StepStarted:
		if idx, ok := m.StepIndex(); ok && idx < seq.Len() {
			s := seq.StepAt(idx)
			s.SetRunning(true)
			s.SetLastExecuted(m.Timestamp())
		}
	case message.StepStopped, message.StepStoppedWithError:
		if idx, ok := m.StepIndex(); ok && idx < seq.Len() {
			seq.StepAt(idx).SetRunning(false)
		}
	case message.Output:
		// No Sequence-level state change; the callback above is the
		// entire point of an Output message.
	}
}
