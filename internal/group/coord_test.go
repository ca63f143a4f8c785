package group

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello frame")

	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("frame = %q, want %q", got, payload)
	}
}

func TestFrame_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("frame length = %d, want 0", len(got))
	}
}

func TestFrame_OversizeRejected(t *testing.T) {
	var buf bytes.Buffer
	// Hand-craft a header claiming more than the limit.
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := readFrame(&buf); err == nil {
		t.Error("readFrame should reject oversized header")
	}
}

func TestFrame_TruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte("full frame")); err != nil {
		t.Fatal(err)
	}
	trunc := bytes.NewReader(buf.Bytes()[:6])
	if _, err := readFrame(trunc); err == nil {
		t.Error("readFrame should fail on truncated body")
	}
}

func TestCoordServer_BarrierReleasesAllRanks(t *testing.T) {
	const world = 3
	srv, err := newCoordServer("", world, testLogger())
	if err != nil {
		t.Fatalf("newCoordServer: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := newBarrierClient(srv.Addr(), rank, DefaultBackoffConfig(), testLogger())
			defer c.Close()
			errs[rank] = c.Wait(ctx, "setup")
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			t.Errorf("rank %d: Wait = %v", rank, err)
		}
	}
}

func TestCoordServer_SequentialBarriers(t *testing.T) {
	const world = 2
	srv, err := newCoordServer("", world, testLogger())
	if err != nil {
		t.Fatalf("newCoordServer: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := newBarrierClient(srv.Addr(), rank, DefaultBackoffConfig(), testLogger())
			defer c.Close()
			for _, name := range []string{"first", "second", "third"} {
				if err := c.Wait(ctx, name); err != nil {
					errs[rank] = err
					return
				}
			}
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			t.Errorf("rank %d: %v", rank, err)
		}
	}
}

func TestBarrierClient_ContextCancel(t *testing.T) {
	srv, err := newCoordServer("", 2, testLogger())
	if err != nil {
		t.Fatalf("newCoordServer: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newBarrierClient(srv.Addr(), 0, DefaultBackoffConfig(), testLogger())
	defer c.Close()

	errCh := make(chan error, 1)
	go func() {
		// Only one of two ranks arrives, so this never releases.
		errCh <- c.Wait(ctx, "lonely")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Wait = nil, want error after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestBarrierClient_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Reserved port with nothing listening.
	c := newBarrierClient("127.0.0.1:1", 0, BackoffConfig{
		Initial:    time.Millisecond,
		Max:        5 * time.Millisecond,
		Multiplier: 1.5,
	}, testLogger())
	defer c.Close()

	if err := c.Wait(ctx, "unreachable"); err == nil {
		t.Error("Wait should fail when the coordination service is unreachable")
	}
}

func TestDialBackoff(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        100 * time.Millisecond,
		Multiplier: 2.0,
	}
	b := newDialBackoff(0, cfg)

	prev := time.Duration(0)
	for i := 0; i < 4; i++ {
		d := b.Next()
		if d < prev {
			t.Errorf("attempt %d: delay %v < previous %v without jitter", i, d, prev)
		}
		prev = d
	}
	if b.Attempts() != 4 {
		t.Errorf("Attempts = %d, want 4", b.Attempts())
	}

	// Delays cap at Max.
	for i := 0; i < 10; i++ {
		b.Next()
	}
	if d := b.Next(); d > cfg.Max {
		t.Errorf("delay %v exceeds max %v", d, cfg.Max)
	}
}

func TestDialBackoff_JitterDeterministicPerWorker(t *testing.T) {
	cfg := DefaultBackoffConfig()

	a1 := newDialBackoff(3, cfg)
	a2 := newDialBackoff(3, cfg)
	for i := 0; i < 5; i++ {
		if d1, d2 := a1.Next(), a2.Next(); d1 != d2 {
			t.Errorf("attempt %d: same seed produced %v and %v", i, d1, d2)
		}
	}
}

func TestCoordServer_CloseUnblocksNothing(t *testing.T) {
	srv, err := newCoordServer("", 2, testLogger())
	if err != nil {
		t.Fatalf("newCoordServer: %v", err)
	}
	if srv.Addr() == "" {
		t.Error("Addr should report the bound endpoint")
	}
	if err := srv.Close(); err != nil && !errors.Is(err, context.Canceled) {
		// Close errors from an already-closed listener are acceptable noise.
		t.Logf("Close: %v", err)
	}
	// Double close must not panic.
	srv.Close()
}
