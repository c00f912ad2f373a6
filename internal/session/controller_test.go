package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndDrain(t *testing.T) {
	c := NewController()
	assert.False(t, c.HasPending("s1"))

	c.Enqueue("s1", Message{Kind: MessageUser, Content: "hello"})
	c.Enqueue("s1", Message{Kind: MessageUser, Content: "world"})
	assert.True(t, c.HasPending("s1"))

	msgs := c.Drain("s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "world", msgs[1].Content)
	assert.False(t, c.HasPending("s1"), "drain clears the queue")
}

func TestShouldStop_ConsumeOnRead(t *testing.T) {
	c := NewController()
	assert.False(t, c.ShouldStop("s1"))

	c.RequestStop("s1")
	assert.True(t, c.ShouldStop("s1"))
	assert.False(t, c.ShouldStop("s1"), "flag is consumed after first read")
}

func TestCleanup_RemovesAllState(t *testing.T) {
	c := NewController()
	c.Enqueue("s1", Message{Content: "x"})
	c.RequestStop("s1")
	c.Cleanup("s1")

	assert.False(t, c.HasPending("s1"))
	assert.False(t, c.ShouldStop("s1"))
}

func TestController_IndependentPerSession(t *testing.T) {
	c := NewController()
	c.Enqueue("a", Message{Content: "for a"})
	assert.False(t, c.HasPending("b"))
	assert.Empty(t, c.Drain("b"))
}
