// Package ringbuf is a bounded, blocking queue of audio sectors sitting
// between a drive-paced producer and a playback-paced consumer.
//
// Put blocks while the buffer is full and Get blocks while it is empty,
// but every wait is bounded by the buffer's timeout, and all waiters are
// released as soon as Stop is called. Neither side can therefore be
// stuck behind the other once playback is being torn down.
package ringbuf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabidaudio/cdplayer/cd"
)

// MaxCapacity is the largest number of slots a buffer may hold.
const MaxCapacity = 4096

var (
	// ErrTimeout is returned when a wait exceeds the buffer timeout.
	ErrTimeout = errors.New("ringbuf: timed out")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("ringbuf: stopped")
	// ErrCleared is returned by a Put that was waiting when Clear was
	// called. The block was not stored.
	ErrCleared = errors.New("ringbuf: cleared while waiting")
	// ErrEndOfStream is returned by Get when the buffer is sealed and empty.
	ErrEndOfStream = errors.New("ringbuf: end of stream")
)

// Block is one sector of raw audio and where it came from.
type Block struct {
	Data   []byte
	Sector int32  // address the data was read from
	Seq    uint64 // position in the read order of the session
}

// RingBuffer is a fixed capacity FIFO of Blocks for one producer and one
// consumer. The zero value is not usable; create one with New.
type RingBuffer struct {
	timeout time.Duration

	mu      sync.Mutex
	slots   []Block
	putIdx  int
	getIdx  int
	count   int
	gen     uint64 // bumped by Clear
	stopped bool
	sealed  bool
	changed chan struct{} // closed and replaced on every state change
}

// New allocates a buffer of capacity slots. Waits in Put, Get and the
// Wait methods give up after timeout.
func New(capacity int, timeout time.Duration) (*RingBuffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ringbuf: capacity must be positive, got %d", capacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d slots of %d bytes", cd.ErrOutOfMemory, capacity, cd.BytesPerSector)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("ringbuf: timeout must be positive, got %v", timeout)
	}
	return &RingBuffer{
		timeout: timeout,
		slots:   make([]Block, capacity),
		changed: make(chan struct{}),
	}, nil
}

// broadcast wakes every waiter. Must hold mu.
func (rb *RingBuffer) broadcast() {
	close(rb.changed)
	rb.changed = make(chan struct{})
}

// wait blocks until ready reports true. It is called and returns with mu held.
func (rb *RingBuffer) wait(ctx context.Context, ready func() bool) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for !ready() {
		if rb.stopped {
			return ErrStopped
		}
		if timer == nil {
			timer = time.NewTimer(rb.timeout)
		}
		ch := rb.changed
		rb.mu.Unlock()
		select {
		case <-ch:
			rb.mu.Lock()
		case <-timer.C:
			rb.mu.Lock()
			return ErrTimeout
		case <-ctx.Done():
			rb.mu.Lock()
			return ctx.Err()
		}
	}
	return nil
}

// Put appends b, blocking while the buffer is full. Ownership of b.Data
// passes to the buffer.
func (rb *RingBuffer) Put(ctx context.Context, b Block) error {
	return rb.PutGen(ctx, rb.Generation(), b)
}

// Generation returns a counter that Clear and Restart increment.
func (rb *RingBuffer) Generation() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.gen
}

// PutGen is Put for a block produced while the buffer was at generation
// gen. If the buffer was cleared since, the block is stale and PutGen
// returns ErrCleared without storing it.
func (rb *RingBuffer) PutGen(ctx context.Context, gen uint64, b Block) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.stopped {
		return ErrStopped
	}
	err := rb.wait(ctx, func() bool {
		return rb.gen != gen || rb.count < len(rb.slots)
	})
	if err != nil {
		return err
	}
	if rb.gen != gen {
		return ErrCleared
	}
	if rb.sealed {
		return ErrEndOfStream
	}

	rb.slots[rb.putIdx] = b
	rb.putIdx = (rb.putIdx + 1) % len(rb.slots)
	rb.count++
	rb.broadcast()
	return nil
}

// Get removes the oldest block, blocking while the buffer is empty.
func (rb *RingBuffer) Get(ctx context.Context) (Block, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.stopped {
		return Block{}, ErrStopped
	}
	err := rb.wait(ctx, func() bool {
		return rb.count > 0 || rb.sealed
	})
	if err != nil {
		return Block{}, err
	}
	if rb.count == 0 {
		return Block{}, ErrEndOfStream
	}

	b := rb.slots[rb.getIdx]
	rb.slots[rb.getIdx] = Block{}
	rb.getIdx = (rb.getIdx + 1) % len(rb.slots)
	rb.count--
	rb.broadcast()
	return b, nil
}

// Clear drops everything buffered. Waiters are woken and re-check; a
// Put that was waiting returns ErrCleared instead of storing stale data.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.reset()
	rb.broadcast()
}

// reset empties the slots. Must hold mu.
func (rb *RingBuffer) reset() {
	for i := range rb.slots {
		rb.slots[i] = Block{}
	}
	rb.putIdx = 0
	rb.getIdx = 0
	rb.count = 0
	rb.sealed = false
	rb.gen++
}

// Stop raises the shutdown signal. Every current and future Put, Get
// and Wait call fails with ErrStopped until Restart.
func (rb *RingBuffer) Stop() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.stopped = true
	rb.broadcast()
}

// Restart clears the buffer and lowers the shutdown signal.
func (rb *RingBuffer) Restart() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.reset()
	rb.stopped = false
	rb.broadcast()
}

// Seal marks the end of the stream. Get drains what is left and then
// returns ErrEndOfStream instead of waiting. Clear and Restart unseal.
func (rb *RingBuffer) Seal() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.sealed = true
	rb.broadcast()
}

// Stopped reports whether Stop has been called.
func (rb *RingBuffer) Stopped() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.stopped
}

// Len returns the number of buffered blocks.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the number of slots.
func (rb *RingBuffer) Cap() int {
	return len(rb.slots)
}

// Occupancy returns how full the buffer is, in percent. It is a hint for
// throttling only.
func (rb *RingBuffer) Occupancy() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count * 100 / len(rb.slots)
}

// WaitUntilAtLeast blocks until n blocks are buffered. n is capped at
// the capacity.
func (rb *RingBuffer) WaitUntilAtLeast(ctx context.Context, n int) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if n > len(rb.slots) {
		n = len(rb.slots)
	}
	if rb.stopped {
		return ErrStopped
	}
	return rb.wait(ctx, func() bool { return rb.count >= n })
}

// WaitUntilEmpty blocks until the consumer has taken every block.
func (rb *RingBuffer) WaitUntilEmpty(ctx context.Context) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.stopped {
		return ErrStopped
	}
	return rb.wait(ctx, func() bool { return rb.count == 0 })
}
