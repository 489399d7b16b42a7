package message_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskolib/taskolib/message"
)

func TestMessageWithoutStep(t *testing.T) {
	now := time.Now()
	m := message.New(message.SequenceStarted, "", now)
	assert.Equal(t, message.SequenceStarted, m.Kind())
	_, ok := m.StepIndex()
	assert.False(t, ok)
	assert.Equal(t, now, m.Timestamp())
}

func TestMessageForStep(t *testing.T) {
	m := message.NewForStep(message.Output, "i=0\n", time.Now(), 3)
	idx, ok := m.StepIndex()
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, "i=0\n", m.Text())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "sequence_stopped_with_error", message.SequenceStoppedWithError.String())
	assert.Equal(t, "output", message.Output.String())
}
