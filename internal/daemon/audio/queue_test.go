package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for _, b := range []byte{1, 2, 3} {
		q.Push([]byte{b})
	}

	ctx := context.Background()
	for _, want := range []byte{1, 2, 3} {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if got[0] != want {
			t.Errorf("Pop() = %v, want %v", got[0], want)
		}
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	q.Push([]byte{1})
	q.Push([]byte{2})
	q.Push([]byte{3})

	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	got, _ := q.Pop(context.Background())
	if got[0] != 2 {
		t.Errorf("Pop() = %v, want 2 (oldest dropped)", got[0])
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(1)
	done := make(chan []byte)
	go func() {
		frame, _ := q.Pop(context.Background())
		done <- frame
	}()

	select {
	case <-done:
		t.Fatal("Pop() returned before any frame was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push([]byte{9})
	select {
	case frame := <-done:
		if frame[0] != 9 {
			t.Errorf("Pop() = %v, want 9", frame[0])
		}
	case <-time.After(time.Second):
		t.Fatal("Pop() did not wake after Push")
	}
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Pop() error = %v, want DeadlineExceeded", err)
	}
}

func TestQueueCloseDrainsThenErrors(t *testing.T) {
	q := NewQueue(2)
	q.Push([]byte{1})
	q.Close()
	q.Push([]byte{2})

	ctx := context.Background()
	if got, err := q.Pop(ctx); err != nil || got[0] != 1 {
		t.Fatalf("Pop() = %v, %v; want buffered frame", got, err)
	}
	if _, err := q.Pop(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Pop() error = %v, want ErrClosed", err)
	}
}

func TestEncodePCM16(t *testing.T) {
	got := EncodePCM16([]int16{1, -1, 0x0102})
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x02, 0x01}
	if string(got) != string(want) {
		t.Errorf("EncodePCM16() = %x, want %x", got, want)
	}
}
