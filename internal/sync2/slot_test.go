package sync2

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type numbered struct {
	seq uint64
}

func TestTakeOnEmptySlotReturnsNil(t *testing.T) {
	s := NewSlot[numbered]()
	assert.Nil(t, s.Take())
}

func TestPublishThenTakeHandsOverBuffer(t *testing.T) {
	s := NewSlot[numbered]()
	require.Nil(t, s.Publish(&numbered{seq: 1}))

	got := s.Take()
	require.NotNil(t, got)
	assert.Equal(t, uint64(1), got.seq)
	assert.Nil(t, s.Take(), "second take must come up empty")
}

func TestUnclaimedBufferRecyclesToProducer(t *testing.T) {
	s := NewSlot[numbered]()
	first := &numbered{seq: 1}
	require.Nil(t, s.Publish(first))

	// The consumer never took seq 1, so publishing seq 2 hands the stale
	// buffer straight back.
	recycled := s.Publish(&numbered{seq: 2})
	require.Same(t, first, recycled)

	got := s.Take()
	require.NotNil(t, got)
	assert.Equal(t, uint64(2), got.seq, "consumer sees only the latest publish")
}

func TestReturnedBuffersComeBackThroughFreeList(t *testing.T) {
	s := NewSlot[numbered]()
	require.Nil(t, s.Publish(&numbered{seq: 1}))

	got := s.Take()
	require.NotNil(t, got)
	s.Return(got)

	// Nothing is pending in the public slot, so the next publish must pull
	// the returned buffer off the free list instead of reporting nil.
	recycled := s.Publish(&numbered{seq: 2})
	assert.Same(t, got, recycled)
}

// TestConsumerSeesMonotonicSequence runs a fast producer against a slower
// consumer and checks the consumer never observes an older buffer than one
// it has already seen, even though intermediate publishes are dropped.
func TestConsumerSeesMonotonicSequence(t *testing.T) {
	s := NewSlot[numbered]()

	const total = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := &numbered{}
		for seq := uint64(1); seq <= total; seq++ {
			buf.seq = seq
			if next := s.Publish(buf); next != nil {
				buf = next
			} else {
				buf = &numbered{}
			}
		}
	}()

	var last uint64
	deadline := time.Now().Add(5 * time.Second)
	for last < total && time.Now().Before(deadline) {
		got := s.Take()
		if got == nil {
			time.Sleep(time.Microsecond)
			continue
		}
		require.Greater(t, got.seq, last, "sequence must strictly increase")
		last = got.seq
		s.Return(got)
	}
	wg.Wait()
	assert.Equal(t, uint64(total), last, "final publish must be delivered")
}

func TestEventWaitTimeoutExpires(t *testing.T) {
	e := NewEvent()
	start := time.Now()
	assert.False(t, e.WaitTimeout(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEventWaitTimeoutSeesSignal(t *testing.T) {
	e := NewEvent()
	go func() {
		time.Sleep(5 * time.Millisecond)
		e.Signal()
	}()
	assert.True(t, e.WaitTimeout(2*time.Second))
}

func TestResetThenWaitTimeoutConsumesPriorSignal(t *testing.T) {
	e := NewEvent()
	e.Signal()
	// The pending signal is cleared by the reset half, so the wait itself
	// must run the full timeout.
	assert.False(t, e.ResetThenWaitTimeout(10*time.Millisecond))
}
