package eventloop

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// fakeReader never has data ready; it just burns through SetReadTimeout
// calls so the loop's timer-firing path gets exercised deterministically.
type fakeReader struct{}

func (fakeReader) SetReadTimeout(sec, usec int64) error { return nil }
func (fakeReader) Recv(buf []byte) (int, bool, error)   { return 0, false, nil }

func TestTimerFiresAndRearms(t *testing.T) {
	l := New(slog.Default(), time.Millisecond)
	var calls int32
	l.AddTimer(time.Millisecond, 0, func() bool {
		atomic.AddInt32(&calls, 1)
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx, fakeReader{}, make([]byte, 8), nil)

	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected timer to fire multiple times, got %d", calls)
	}
}

func TestTimerRespectsMaxTicksBound(t *testing.T) {
	l := New(slog.Default(), time.Millisecond)
	var calls int32
	l.AddTimer(time.Millisecond, 3, func() bool {
		atomic.AddInt32(&calls, 1)
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx, fakeReader{}, make([]byte, 8), nil)

	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected exactly 3 ticks before cancellation, got %d", calls)
	}
}

func TestTimerCancelsWhenCallbackReturnsFalse(t *testing.T) {
	l := New(slog.Default(), time.Millisecond)
	var calls int32
	l.AddTimer(time.Millisecond, 0, func() bool {
		atomic.AddInt32(&calls, 1)
		return false
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx, fakeReader{}, make([]byte, 8), nil)

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 tick before self-cancellation, got %d", calls)
	}
}

func TestCancelTimerStopsFutureTicks(t *testing.T) {
	l := New(slog.Default(), time.Millisecond)
	var calls int32
	id := l.AddTimer(5*time.Millisecond, 0, func() bool {
		atomic.AddInt32(&calls, 1)
		return true
	})
	l.CancelTimer(id)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx, fakeReader{}, make([]byte, 8), nil)

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no ticks after cancel, got %d", calls)
	}
}
