package comm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskolib/taskolib/comm"
	"github.com/taskolib/taskolib/message"
)

func TestPushDrainOrder(t *testing.T) {
	c := comm.New(4)
	c.Push(message.New(message.Output, "a", time.Now()))
	c.Push(message.New(message.Output, "b", time.Now()))
	c.Push(message.New(message.Output, "c", time.Now()))

	drained := c.DrainAll()
	assert.Len(t, drained, 3)
	assert.Equal(t, "a", drained[0].Text())
	assert.Equal(t, "b", drained[1].Text())
	assert.Equal(t, "c", drained[2].Text())
}

func TestTerminationFlag(t *testing.T) {
	c := comm.New(4)
	assert.False(t, c.TerminationRequested())
	c.RequestTermination()
	assert.True(t, c.TerminationRequested())
}

func TestDefaultCapacity(t *testing.T) {
	c := comm.New(0)
	for i := 0; i < comm.DefaultCapacity; i++ {
		assert.True(t, c.TryPush(message.New(message.Output, "x", time.Now())))
	}
	assert.False(t, c.TryPush(message.New(message.Output, "overflow", time.Now())))
}

func TestReset(t *testing.T) {
	c := comm.New(2)
	c.RequestTermination()
	c.Push(message.New(message.Output, "x", time.Now()))
	c.Reset(2)
	assert.False(t, c.TerminationRequested())
	assert.Equal(t, 0, c.Size())
}
