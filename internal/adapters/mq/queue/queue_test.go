package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/eventmatch/internal/domain/model"
)

func note(id string, eventID int64) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    1,
		Recipient: "ada@example.com",
		Event:     model.Event{ID: eventID, Name: "Jazz Night"},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Test enqueue
	n1 := note("note1", 1)
	if !q.Enqueue(ctx, n1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test dequeue
	out := q.Dequeue(ctx)
	got := <-out
	if got.ID != "note1" {
		t.Errorf("expected note1, got %v", got.ID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Fill the queue
	n1 := note("note1", 1)
	n2 := note("note2", 2)
	n3 := note("note3", 3)

	if !q.Enqueue(ctx, n1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, n2) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, n3) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	perProducer := 100

	// Start producer goroutines
	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < perProducer; j++ {
				n := note(fmt.Sprintf("note%d_%d", id, j), int64(j))
				for !q.Enqueue(ctx, n) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	// Start consumer goroutines
	consumed := make(chan string, numGoroutines*perProducer)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			out := q.Dequeue(ctx)
			for n := range out {
				consumed <- n.ID
			}
		}()
	}

	// Wait for producers to finish
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	// Wait a bit for consumers to process
	time.Sleep(100 * time.Millisecond)

	// Check final queue length
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	// Enqueue some notifications
	n1 := note("note1", 1)
	n2 := note("note2", 2)

	if !q.Enqueue(ctx, n1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, n2) {
		t.Error("expected enqueue to succeed")
	}

	// Check initial state
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	// Close the queue
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	// Check closed state
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	// Try to enqueue after closing (should fail)
	if q.Enqueue(ctx, n1) {
		t.Error("expected enqueue to fail after closing")
	}

	// Dequeue channel should be closed
	out := q.Dequeue(ctx)

	// Wait for channel to be closed
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				// Channel is closed, which is expected
				goto channelClosed
			}
		case <-timeout:
			t.Error("expected dequeue channel to be closed within timeout")
			return
		}
	}
channelClosed:

	// Close again should not error
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4), WithBufferSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, note("late", 1)) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
	if q.Capacity() != 4 {
		t.Errorf("expected capacity 4, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_DrainAfterClose(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		if !q.Enqueue(ctx, note(fmt.Sprintf("n%d", i), i)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	var got []int64
	for m := range q.Dequeue(ctx) {
		got = append(got, m.Event.ID)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("expected queued messages in order after close, got %v", got)
	}
}
