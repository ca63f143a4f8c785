package group

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LocalRuntime runs workers as goroutines inside the orchestrator process.
// It serves fork-mode groups, tests, and single-host debugging. The result
// still crosses a write-once slot and workers still rendezvous at named
// barriers, so the ownership discipline matches the exec runtime even
// though the address space is shared.
type LocalRuntime struct {
	logger    *slog.Logger
	callbacks Callbacks
}

// LocalConfig holds configuration for creating a LocalRuntime.
type LocalConfig struct {
	Logger    *slog.Logger
	Callbacks Callbacks
}

// NewLocalRuntime creates an in-process runtime.
func NewLocalRuntime(cfg LocalConfig) *LocalRuntime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalRuntime{logger: logger, callbacks: cfg.Callbacks}
}

// Start launches spec.Procs worker goroutines running entry.
func (r *LocalRuntime) Start(ctx context.Context, spec Spec, entry Entry) (Handle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if entry == nil {
		var err error
		entry, err = Lookup(spec.Entry)
		if err != nil {
			return nil, err
		}
	}

	h := &localHandle{
		resultCh: make(chan []byte, 1),
		done:     make(chan struct{}),
	}
	barrier := newMemoryBarrier(spec.Procs)
	// One shared sink: the slot is write-once per launch, not per worker.
	sink := &slotSink{ch: h.resultCh}

	var wg sync.WaitGroup
	for i := 0; i < spec.Procs; i++ {
		id := identityFor(i, spec.Procs)
		w := &Worker{
			Identity: id,
			Sink:     sink,
			Barrier:  barrier.wait,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.logger.Debug("worker_started", "worker", w.Identity.ProcessIndex)
			if r.callbacks.OnWorkerStart != nil {
				r.callbacks.OnWorkerStart(w.Identity.ProcessIndex, 0)
			}
			start := time.Now()

			err := entry(ctx, w)

			exitCode := 0
			if err != nil {
				exitCode = 1
				r.logger.Warn("worker_failed",
					"worker", w.Identity.ProcessIndex,
					"error", err,
				)
				h.recordErr(fmt.Errorf("worker %d: %w", w.Identity.ProcessIndex, err))
			} else {
				r.logger.Debug("worker_exited", "worker", w.Identity.ProcessIndex)
			}
			if r.callbacks.OnWorkerExit != nil {
				r.callbacks.OnWorkerExit(w.Identity.ProcessIndex, exitCode, time.Since(start))
			}
		}()
	}

	go func() {
		wg.Wait()
		close(h.done)
	}()

	return h, nil
}

// localHandle implements Handle for goroutine-backed groups.
type localHandle struct {
	resultCh chan []byte
	done     chan struct{}

	errMu sync.Mutex
	err   error
}

func (h *localHandle) Result(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-h.resultCh:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *localHandle) Done() <-chan struct{} {
	return h.done
}

func (h *localHandle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

func (h *localHandle) recordErr(err error) {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// Stop waits for the goroutines to finish. Goroutines cannot be killed;
// cancellation of the launch context is the teardown path.
func (h *localHandle) Stop(timeout time.Duration) error {
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("group: workers still running after %s", timeout)
	}
}

// slotSink is a write-once sink backed by a one-slot channel.
type slotSink struct {
	ch      chan []byte
	claimed atomic.Bool
}

func (s *slotSink) Put(frame []byte) error {
	if !s.claimed.CompareAndSwap(false, true) {
		return ErrAlreadyProduced
	}
	s.ch <- frame
	return nil
}

// memoryBarrier is the in-process barrier: each named rendezvous point
// releases once all n workers have arrived.
type memoryBarrier struct {
	n      int
	mu     sync.Mutex
	points map[string]*barrierPoint
}

type barrierPoint struct {
	arrived int
	release chan struct{}
}

func newMemoryBarrier(n int) *memoryBarrier {
	return &memoryBarrier{n: n, points: map[string]*barrierPoint{}}
}

func (b *memoryBarrier) wait(ctx context.Context, name string) error {
	b.mu.Lock()
	p, ok := b.points[name]
	if !ok {
		p = &barrierPoint{release: make(chan struct{})}
		b.points[name] = p
	}
	p.arrived++
	if p.arrived == b.n {
		close(p.release)
		// Reset so the name can rendezvous again in a later generation.
		delete(b.points, name)
	}
	b.mu.Unlock()

	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
