// Package audio captures microphone frames and buffers them for recognition.
package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Pop once the queue is closed and drained.
var ErrClosed = errors.New("audio queue closed")

// Queue is a bounded FIFO of raw PCM frames. Push never blocks: when the queue
// is full the oldest frame is dropped.
type Queue struct {
	mu      sync.Mutex
	frames  [][]byte
	size    int
	dropped uint64
	closed  bool
	ready   chan struct{} // signalled (non-blocking) when a frame arrives or on close
}

// NewQueue creates a queue holding at most size frames.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		frames: make([][]byte, 0, size),
		size:   size,
		ready:  make(chan struct{}, 1),
	}
}

// Push appends a frame. It is safe to call from the audio callback thread.
func (q *Queue) Push(frame []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.frames) == q.size {
		q.frames[0] = nil
		q.frames = q.frames[1:]
		q.dropped++
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the oldest frame, blocking until one is available,
// ctx is done, or the queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			frame := q.frames[0]
			q.frames[0] = nil
			q.frames = q.frames[1:]
			more := len(q.frames) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return frame, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of buffered frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns how many frames were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting frames and wakes blocked poppers. Buffered frames can
// still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
