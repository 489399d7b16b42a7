package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskolib/taskolib/sequence"
	"github.com/taskolib/taskolib/step"
	"github.com/taskolib/taskolib/variable"
)

func TestEscapeUnescapeLabelRoundTrip(t *testing.T) {
	for _, label := range []string{
		"plain",
		"with spaces",
		`slashes/and\backslashes`,
		`quote"mark'here`,
		"pipe|star*question?colon:lt<gt>dollar$amp&",
		"control\x01\x1fchars",
	} {
		escaped := EscapeLabel(label)
		got, err := UnescapeLabel(escaped)
		require.NoError(t, err)
		assert.Equal(t, label, got)
	}
}

func TestEscapeLabelProducesSafeCharacters(t *testing.T) {
	escaped := EscapeLabel("a/b c")
	assert.NotContains(t, escaped, "/")
	assert.NotContains(t, escaped, " ")
}

func TestStepRoundTrip(t *testing.T) {
	a, _ := variable.NewName("a")
	b, _ := variable.NewName("b")

	s := step.New(step.Action)
	s.SetLabel("add two numbers")
	s.SetVariableNames([]variable.Name{a, b})
	s.SetScript([]byte("sum = a + b;\nprint(sum);"))
	s.SetTimeout(250 * time.Millisecond)
	s.SetLastExecuted(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, WriteStep(&buf, s))

	got, err := ReadStep(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, s.Type(), got.Type())
	assert.Equal(t, s.Label(), got.Label())
	assert.Equal(t, s.VariableNames(), got.VariableNames())
	assert.Equal(t, string(s.Script()), string(got.Script()))
	assert.Equal(t, s.Timeout(), got.Timeout())
	assert.Equal(t, formatTimestamp(s.LastModified()), formatTimestamp(got.LastModified()))

	wantExec, _ := s.LastExecuted()
	gotExec, ok := got.LastExecuted()
	require.True(t, ok)
	assert.Equal(t, formatTimestamp(wantExec), formatTimestamp(gotExec))
}

func TestStepRoundTripNoTimeoutNoExecution(t *testing.T) {
	s := step.New(step.If)
	s.SetScript([]byte("return true;"))

	var buf bytes.Buffer
	require.NoError(t, WriteStep(&buf, s))

	got, err := ReadStep(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, step.NoTimeout, got.Timeout())
	_, ok := got.LastExecuted()
	assert.False(t, ok)
}

func TestSequenceRoundTrip(t *testing.T) {
	sq := sequence.New("demo/sequence")

	ifStep := step.New(step.If)
	ifStep.SetScript([]byte("return true;"))
	body := step.New(step.Action)
	body.SetScript([]byte("x = 1;"))
	sq.SetSteps([]*step.Step{ifStep, body, step.New(step.End)})

	dir := t.TempDir()
	require.NoError(t, WriteSequence(dir, sq))

	escapedDir := filepath.Join(dir, EscapeLabel(sq.Label()))
	entries, err := os.ReadDir(escapedDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "step_000_if.lua", entries[0].Name())
	assert.Equal(t, "step_001_action.lua", entries[1].Name())
	assert.Equal(t, "step_002_end.lua", entries[2].Name())

	got, err := ReadSequence(escapedDir)
	require.NoError(t, err)
	assert.Equal(t, sq.Label(), got.Label())
	assert.Equal(t, sq.Len(), got.Len())
	for i := 0; i < sq.Len(); i++ {
		assert.Equal(t, sq.StepAt(i).Type(), got.StepAt(i).Type())
		assert.Equal(t, string(sq.StepAt(i).Script()), string(got.StepAt(i).Script()))
	}
	require.NoError(t, got.Validate())
}

func TestReadSequenceFixture(t *testing.T) {
	sq, err := ReadSequence("../testdata/greeting_sequence")
	require.NoError(t, err)
	require.NoError(t, sq.Validate())

	assert.Equal(t, 2, sq.Len())
	assert.Equal(t, "set greeting", sq.StepAt(0).Label())

	name, _ := variable.NewName("name")
	greeting, _ := variable.NewName("greeting")
	assert.Equal(t, []variable.Name{name, greeting}, sq.StepAt(0).VariableNames())
	assert.Equal(t, step.NoTimeout, sq.StepAt(0).Timeout())

	assert.Equal(t, []variable.Name{greeting}, sq.StepAt(1).VariableNames())
	assert.Equal(t, time.Second, sq.StepAt(1).Timeout())
}
