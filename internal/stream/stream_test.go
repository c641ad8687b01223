package stream

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestChunk(t *testing.T) {
	got := Chunk([]byte("JPEG"))
	want := "--frame\r\nContent-Type: image/jpeg\r\n\r\nJPEG\r\n"
	if string(got) != want {
		t.Errorf("unexpected chunk %q", got)
	}
}

func TestSubscriptionLatestFrameWins(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	b.Publish([]byte("1"))
	b.Publish([]byte("2"))
	b.Publish([]byte("3"))

	frame, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(frame) != "3" {
		t.Errorf("expected latest frame, got %q", frame)
	}
	if sub.Drops() != 2 {
		t.Errorf("expected 2 drops, got %d", sub.Drops())
	}
}

func TestSubscriptionEndsOnClose(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	b.Close()
	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if b.Subscribers() != 0 {
		t.Errorf("expected no subscribers after close, got %d", b.Subscribers())
	}

	late := b.Subscribe()
	if _, err := late.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("late subscriber: expected ErrClosed, got %v", err)
	}
}

func TestSubscriptionConsumerCancel(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	sub.Cancel()
	if b.Subscribers() != 0 {
		t.Errorf("expected subscriber removed, got %d", b.Subscribers())
	}
}

func TestServe(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	var buf bytes.Buffer
	flushes := 0
	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), &buf, func() { flushes++ }, sub)
	}()

	b.Publish([]byte("A"))
	deadline := time.Now().Add(time.Second)
	for len(sub.slot) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Close after the frame was taken so the writer sees it before ErrClosed.
	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}

	if buf.String() != string(Chunk([]byte("A"))) {
		t.Errorf("unexpected output %q", buf.String())
	}
	if flushes != 1 {
		t.Errorf("expected 1 flush, got %d", flushes)
	}
}
