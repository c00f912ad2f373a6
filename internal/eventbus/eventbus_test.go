package eventbus

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestEmit_DeliversInRegistrationOrder(t *testing.T) {
	b := New(discardLogger())
	var order []int
	b.On(IssueDone, func(Event) { order = append(order, 1) })
	b.On(IssueDone, func(Event) { order = append(order, 2) })
	b.On(IssueDone, func(Event) { order = append(order, 3) })

	b.Emit(IssueDone, IssueDonePayload{IssueNumber: 1})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmit_IsolatesPanickingListener(t *testing.T) {
	b := New(discardLogger())
	called := false
	b.On(Log, func(Event) { panic("boom") })
	b.On(Log, func(Event) { called = true })

	assert.NotPanics(t, func() {
		b.Emit(Log, LogPayload{Level: "info", Message: "hi"})
	})
	assert.True(t, called, "later listener must still run after an earlier one panics")
}

func TestOff_RemovesListener(t *testing.T) {
	b := New(discardLogger())
	calls := 0
	l := func(Event) { calls++ }
	b.On(Log, l)
	b.Off(Log, l)
	b.Emit(Log, LogPayload{})
	assert.Equal(t, 0, calls)
}

func TestRemoveAllListeners(t *testing.T) {
	b := New(discardLogger())
	calls := 0
	b.On(Log, func(Event) { calls++ })
	b.RemoveAllListeners()
	b.Emit(Log, LogPayload{})
	assert.Equal(t, 0, calls)
}

func TestReplay_BoundedFIFO(t *testing.T) {
	b := New(discardLogger())
	b.replayCap = 3
	for i := 0; i < 5; i++ {
		b.Emit(Log, LogPayload{Message: string(rune('a' + i))})
	}
	replay := b.Replay()
	require.Len(t, replay, 3)
	assert.Equal(t, "c", replay[0].Payload.(LogPayload).Message)
	assert.Equal(t, "e", replay[2].Payload.(LogPayload).Message)
}

func TestEmit_ConcurrentSafe(t *testing.T) {
	b := New(discardLogger())
	var mu sync.Mutex
	count := 0
	b.On(Log, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(Log, LogPayload{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, count)
}
