package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/schema"
)

func newTestEvent() *schema.Event {
	return &schema.Event{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		Name:      "auth.login",
		Severity:  schema.SeverityMedium,
		Origin: schema.Origin{
			Vendor: "test",
		},
	}
}

func TestNewRingBuffer(t *testing.T) {
	t.Run("with valid size", func(t *testing.T) {
		rb := NewRingBuffer(100)
		if rb.Cap() != 100 {
			t.Errorf("Cap() = %d, want 100", rb.Cap())
		}
		if rb.Len() != 0 {
			t.Errorf("Len() = %d, want 0", rb.Len())
		}
	})

	t.Run("with zero size uses default", func(t *testing.T) {
		rb := NewRingBuffer(0)
		if rb.Cap() != 10000 {
			t.Errorf("Cap() = %d, want 10000 (default)", rb.Cap())
		}
	})
}

func TestRingBuffer_PushPop(t *testing.T) {
	rb := NewRingBuffer(10)

	t.Run("push then pop returns same event", func(t *testing.T) {
		event := newTestEvent()
		if err := rb.Push(event); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		got, err := rb.Pop()
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if got.EventID != event.EventID {
			t.Errorf("Pop() returned wrong event")
		}
	})

	t.Run("pop empty returns ErrQueueEmpty", func(t *testing.T) {
		if _, err := rb.Pop(); err != ErrQueueEmpty {
			t.Errorf("Pop() error = %v, want ErrQueueEmpty", err)
		}
	})

	t.Run("push full returns ErrQueueFull", func(t *testing.T) {
		small := NewRingBuffer(2)
		small.Push(newTestEvent())
		small.Push(newTestEvent())
		if err := small.Push(newTestEvent()); err != ErrQueueFull {
			t.Errorf("Push() error = %v, want ErrQueueFull", err)
		}
	})
}

func TestRingBuffer_PushWait(t *testing.T) {
	t.Run("blocks until space frees", func(t *testing.T) {
		rb := NewRingBuffer(1)
		if err := rb.Push(newTestEvent()); err != nil {
			t.Fatalf("Push() error = %v", err)
		}

		done := make(chan error, 1)
		go func() {
			done <- rb.PushWait(newTestEvent(), time.Second)
		}()

		time.Sleep(20 * time.Millisecond)
		if _, err := rb.Pop(); err != nil {
			t.Fatalf("Pop() error = %v", err)
		}

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("PushWait() error = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("PushWait did not complete after space freed")
		}
	})

	t.Run("times out when full", func(t *testing.T) {
		rb := NewRingBuffer(1)
		rb.Push(newTestEvent())
		if err := rb.PushWait(newTestEvent(), 50*time.Millisecond); err != ErrQueueFull {
			t.Errorf("PushWait() error = %v, want ErrQueueFull", err)
		}
	})
}

func TestRingBuffer_PopWithTimeout(t *testing.T) {
	t.Run("returns pushed event", func(t *testing.T) {
		rb := NewRingBuffer(10)
		event := newTestEvent()

		go func() {
			time.Sleep(20 * time.Millisecond)
			rb.Push(event)
		}()

		got, err := rb.PopWithTimeout(time.Second)
		if err != nil {
			t.Fatalf("PopWithTimeout() error = %v", err)
		}
		if got.EventID != event.EventID {
			t.Errorf("PopWithTimeout() returned wrong event")
		}
	})

	t.Run("times out when empty", func(t *testing.T) {
		rb := NewRingBuffer(10)
		if _, err := rb.PopWithTimeout(50 * time.Millisecond); err != ErrQueueEmpty {
			t.Errorf("PopWithTimeout() error = %v, want ErrQueueEmpty", err)
		}
	})
}

func TestRingBuffer_Close(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Push(newTestEvent())
	rb.Close()

	if err := rb.Push(newTestEvent()); err != ErrQueueClosed {
		t.Errorf("Push() after close error = %v, want ErrQueueClosed", err)
	}

	// Remaining events still drain after close.
	if _, err := rb.Pop(); err != nil {
		t.Errorf("Pop() after close error = %v", err)
	}
	if _, err := rb.Pop(); err != ErrQueueClosed {
		t.Errorf("Pop() on drained closed queue error = %v, want ErrQueueClosed", err)
	}
}

func TestRingBuffer_Concurrent(t *testing.T) {
	rb := NewRingBuffer(100)
	const producers = 4
	const perProducer = 250

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for rb.Push(newTestEvent()) == ErrQueueFull {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for popped < producers*perProducer {
			if _, err := rb.PopWithTimeout(time.Second); err == nil {
				popped++
			}
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain all events")
	}

	m := rb.Metrics()
	if m.Pushed != uint64(producers*perProducer) {
		t.Errorf("Metrics().Pushed = %d, want %d", m.Pushed, producers*perProducer)
	}
	if m.Depth != 0 {
		t.Errorf("Metrics().Depth = %d, want 0", m.Depth)
	}
}
