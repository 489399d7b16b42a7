package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/seqctx"
	"github.com/taskolib/taskolib/sequence"
	"github.com/taskolib/taskolib/step"
	"github.com/taskolib/taskolib/taskerr"
	"github.com/taskolib/taskolib/variable"
)

func waitNotBusy(t *testing.T, e *Executor, seq *sequence.Sequence, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for e.Update(seq) {
		if time.Now().After(deadline) {
			t.Fatal("executor did not become idle within deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunAsynchronouslyCompletesAndReportsVariables(t *testing.T) {
	sq := sequence.New("sum")
	a, _ := variable.NewName("a")
	b, _ := variable.NewName("b")
	sum, _ := variable.NewName("sum")

	s := step.New(step.Action)
	s.SetScript([]byte("sum = a + b;"))
	s.SetVariableNames([]variable.Name{a, b, sum})
	sq.AddStep(s)

	ctx := seqctx.New()
	ctx.Variables[a] = variable.NewInt(1)
	ctx.Variables[b] = variable.NewInt(2)

	e := New()
	require.NoError(t, e.RunAsynchronously(sq, ctx))

	waitNotBusy(t, e, sq, time.Second)
	assert.Equal(t, Idle, e.State())
	assert.False(t, sq.Running())

	vars, err := e.GetContextVariables()
	require.NoError(t, err)
	got, ok := vars[sum].Int()
	require.True(t, ok)
	assert.Equal(t, int64(3), got)
}

func TestRunAsynchronouslyFailsWhenBusy(t *testing.T) {
	sq := sequence.New("busy")
	s := step.New(step.Action)
	s.SetScript([]byte("while(true){}"))
	sq.AddStep(s)

	e := New()
	require.NoError(t, e.RunAsynchronously(sq, seqctx.New()))

	err := e.RunAsynchronously(sq, seqctx.New())
	require.Error(t, err)
	assert.True(t, taskerr.IsKind(err, taskerr.Busy))

	e.Cancel()
}

func TestLifecycleAllowsReuseAfterIdle(t *testing.T) {
	sq := sequence.New("reuse")
	sq.AddStep(step.New(step.Action))

	e := New()
	require.NoError(t, e.RunAsynchronously(sq, seqctx.New()))
	waitNotBusy(t, e, sq, time.Second)

	require.NoError(t, e.RunAsynchronously(sq, seqctx.New()))
	waitNotBusy(t, e, sq, time.Second)
}

func TestCancelJoinsWorkerAndStopsMessages(t *testing.T) {
	sq := sequence.New("cancel")
	s := step.New(step.Action)
	s.SetScript([]byte("while(true){}"))
	sq.AddStep(s)

	e := New()
	require.NoError(t, e.RunAsynchronously(sq, seqctx.New()))

	time.Sleep(10 * time.Millisecond)
	e.Cancel()

	assert.Equal(t, Idle, e.State())

	time.Sleep(10 * time.Millisecond)
	assert.False(t, e.Update(sq))
}

func TestCancelIntoReportsCancelledSequenceStop(t *testing.T) {
	sq := sequence.New("cancel-into")
	s := step.New(step.Action)
	s.SetScript([]byte("while(true){}"))
	sq.AddStep(s)

	var received []message.Kind
	ctx := seqctx.New()
	ctx.MessageCallback = func(m message.Message) {
		received = append(received, m.Kind())
	}

	e := New()
	require.NoError(t, e.RunAsynchronously(sq, ctx))

	time.Sleep(10 * time.Millisecond)
	e.CancelInto(sq)

	require.NotEmpty(t, received)
	assert.Equal(t, message.SequenceStarted, received[0])
	assert.Equal(t, message.SequenceStoppedWithError, received[len(received)-1])
	assert.False(t, sq.Running())
}

func TestRunSingleStepAsynchronously(t *testing.T) {
	x, _ := variable.NewName("x")

	sq := sequence.New("single-step")
	sq.AddStep(step.New(step.Action)) // idx 0: untouched bystander
	s := step.New(step.Action)
	s.SetScript([]byte("x = x + 1;"))
	s.SetVariableNames([]variable.Name{x})
	sq.AddStep(s) // idx 1: the step under test

	ctx := seqctx.New()
	ctx.Variables[x] = variable.NewInt(41)

	e := New()
	require.NoError(t, e.RunSingleStepAsynchronously(sq, ctx, 1))
	waitNotBusy(t, e, sq, time.Second)

	vars, err := e.GetContextVariables()
	require.NoError(t, err)
	got, ok := vars[x].Int()
	require.True(t, ok)
	assert.Equal(t, int64(42), got)

	assert.False(t, sq.StepAt(1).Running())
	_, hasRun := sq.StepAt(1).LastExecuted()
	assert.True(t, hasRun)
	_, bystanderRun := sq.StepAt(0).LastExecuted()
	assert.False(t, bystanderRun)
}

func TestRunSingleStepAsynchronouslyRejectsOutOfRangeIndex(t *testing.T) {
	sq := sequence.New("out-of-range")
	sq.AddStep(step.New(step.Action))

	e := New()
	err := e.RunSingleStepAsynchronously(sq, seqctx.New(), 5)
	require.Error(t, err)
	assert.True(t, taskerr.IsKind(err, taskerr.Structural))
	assert.Equal(t, Idle, e.State())
}
