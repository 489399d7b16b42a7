package step_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskolib/taskolib/step"
	"github.com/taskolib/taskolib/variable"
)

func TestSetScriptBumpsModificationTime(t *testing.T) {
	s := step.New(step.Action)
	before := s.LastModified()
	time.Sleep(time.Millisecond)
	s.SetScript([]byte("x = 1"))
	assert.True(t, s.LastModified().After(before))
}

func TestLoadScriptDoesNotBumpModificationTime(t *testing.T) {
	s := step.New(step.Action)
	before := s.LastModified()
	time.Sleep(time.Millisecond)
	s.LoadScript([]byte("x = 1"))
	assert.Equal(t, before, s.LastModified())
}

func TestTimeoutZeroMeansNoTimeout(t *testing.T) {
	s := step.New(step.Action)
	assert.Equal(t, step.NoTimeout, s.Timeout())
	s.SetTimeout(0)
	assert.Equal(t, step.NoTimeout, s.Timeout())
}

func TestVariableNamesOrderPreserved(t *testing.T) {
	a, _ := variable.NewName("a")
	b, _ := variable.NewName("b")
	c, _ := variable.NewName("c")
	s := step.New(step.Action)
	s.SetVariableNames([]variable.Name{c, a, b})
	require.Equal(t, []variable.Name{c, a, b}, s.VariableNames())
	assert.True(t, s.UsesVariable(a))
}

func TestCloneIsIndependent(t *testing.T) {
	s := step.New(step.Action)
	s.SetScript([]byte("original"))
	clone := s.Clone()
	clone.SetScript([]byte("changed"))
	assert.Equal(t, "original", string(s.Script()))
	assert.Equal(t, "changed", string(clone.Script()))
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, step.If.IsOpener())
	assert.True(t, step.While.IsOpener())
	assert.True(t, step.Try.IsOpener())
	assert.False(t, step.Action.IsOpener())
	assert.True(t, step.ElseIf.HasHeaderScript())
	assert.False(t, step.Catch.HasHeaderScript())
}
