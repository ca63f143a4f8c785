// Package launch provides the single public operation of go-train-spawn:
// start a process group running one function, rendezvous on exactly one
// result, and recover orchestrator state from it.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zredeaux65/go-train-spawn/internal/group"
	"github.com/zredeaux65/go-train-spawn/internal/metrics"
	"github.com/zredeaux65/go-train-spawn/internal/payload"
	"github.com/zredeaux65/go-train-spawn/internal/trainer"
)

// Func is the opaque function executed in every worker. Its return value is
// observed by the caller only from the result-producing worker.
type Func func(ctx context.Context) (payload.Value, error)

// ErrNoResult is returned when the worker group finishes without any worker
// producing a result. The source pattern for this launcher blocked forever
// here; surfacing it as an error is deliberate.
var ErrNoResult = errors.New("launch: no result produced by any worker")

// drainGrace is how long the launcher keeps reading after the group has
// exited, covering a result frame still in flight on the pipe.
const drainGrace = 500 * time.Millisecond

// Options holds configuration for creating a Launcher.
type Options struct {
	// Spec describes the process group. Spec.Entry must name a registered
	// entry when Runtime resolves entries by name.
	Spec group.Spec

	// Runtime starts the group. Defaults to an in-process runtime.
	Runtime group.Runtime

	// Policy is the transport policy. Defaults to NativePolicy.
	Policy TransportPolicy

	// ResultTimeout bounds the wait for the result. Zero means wait until
	// the group exits.
	ResultTimeout time.Duration

	// StopTimeout bounds graceful teardown on the failure paths.
	StopTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Launcher drives one or more launches over a fixed group spec. A launcher
// may be reused; each Launch gets a fresh result channel.
type Launcher struct {
	spec          group.Spec
	runtime       group.Runtime
	policy        TransportPolicy
	resultTimeout time.Duration
	stopTimeout   time.Duration
	logger        *slog.Logger
	metrics       *metrics.Collector
}

// New creates a Launcher.
func New(opts Options) (*Launcher, error) {
	if err := opts.Spec.Validate(); err != nil {
		return nil, err
	}
	l := &Launcher{
		spec:          opts.Spec,
		runtime:       opts.Runtime,
		policy:        opts.Policy,
		resultTimeout: opts.ResultTimeout,
		stopTimeout:   opts.StopTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if l.runtime == nil {
		l.runtime = group.NewLocalRuntime(group.LocalConfig{Logger: opts.Logger})
	}
	if l.policy == nil {
		l.policy = NativePolicy{}
	}
	if l.stopTimeout <= 0 {
		l.stopTimeout = 10 * time.Second
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// Launch runs fn in spec.Procs workers and blocks until the single result
// has been received and the group has exited.
//
// Without a trainer context the raw value produced by the result-producing
// worker is returned unmodified. With a trainer context the received record
// is a SpawnOutput: recovery runs against tr and the record's user result
// is returned.
func (l *Launcher) Launch(ctx context.Context, fn Func, tr *trainer.Trainer) (payload.Value, error) {
	spec := l.spec
	spec.Env = append(spec.Env, policyEnv(l.policy)...)

	// Publish the coordination endpoint before the group starts. Repeating
	// the write on a reused launcher is harmless.
	if spec.CoordAddr != "" {
		if err := os.Setenv(group.EnvMasterAddr, spec.CoordAddr); err != nil {
			return nil, fmt.Errorf("launch: publish coordination endpoint: %w", err)
		}
	}

	// A by-name runtime re-executes the binary and resolves spec.Entry from
	// the registry; the function cannot cross that boundary.
	var entry group.Entry
	if !startsByName(l.runtime) {
		entry = workerEntry(fn, tr, l.policy, l.logger)
	}

	l.logger.Info("launch_starting",
		"procs", spec.Procs,
		"start_mode", string(spec.StartMode),
		"policy", l.policy.Name(),
	)
	if l.metrics != nil {
		l.metrics.LaunchStarted(spec.Procs)
	}
	started := time.Now()

	h, err := l.runtime.Start(ctx, spec, entry)
	if err != nil {
		if l.metrics != nil {
			l.metrics.LaunchCompleted(false, time.Since(started))
		}
		return nil, fmt.Errorf("launch: start group: %w", err)
	}

	frame, err := l.rendezvous(ctx, h)
	if err != nil {
		if l.metrics != nil {
			l.metrics.LaunchCompleted(false, time.Since(started))
		}
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.ResultReceived(len(frame))
	}

	result, err := l.applyResult(frame, tr)
	if l.metrics != nil {
		l.metrics.LaunchCompleted(err == nil, time.Since(started))
	}
	if err == nil {
		l.logger.Info("launch_complete",
			"procs", spec.Procs,
			"duration", time.Since(started).String(),
		)
	}
	return result, err
}

// rendezvous blocks until the single result frame has arrived and the
// group has exited, in either order, honoring the result timeout.
func (l *Launcher) rendezvous(ctx context.Context, h group.Handle) ([]byte, error) {
	resultCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type received struct {
		frame []byte
		err   error
	}
	resCh := make(chan received, 1)
	go func() {
		frame, err := h.Result(resultCtx)
		resCh <- received{frame, err}
	}()

	var timeoutCh <-chan time.Time
	if l.resultTimeout > 0 {
		timeoutCh = time.After(l.resultTimeout)
	}

	var frame []byte
	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, fmt.Errorf("launch: read result: %w", r.err)
		}
		frame = r.frame

	case <-h.Done():
		// Group exited first. Give a frame already in flight a moment to
		// surface, then call the launch a protocol violation.
		select {
		case r := <-resCh:
			if r.err != nil {
				return nil, fmt.Errorf("launch: read result: %w", r.err)
			}
			frame = r.frame
		case <-time.After(drainGrace):
			return nil, l.noResult(h)
		}

	case <-timeoutCh:
		l.logger.Error("launch_result_timeout", "timeout", l.resultTimeout.String())
		h.Stop(l.stopTimeout)
		return nil, fmt.Errorf("%w: timed out after %s", ErrNoResult, l.resultTimeout)

	case <-ctx.Done():
		h.Stop(l.stopTimeout)
		return nil, ctx.Err()
	}

	// The result is in hand; the launch still owns the group's lifetime
	// and joins every worker before returning.
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Stop(l.stopTimeout)
		return nil, ctx.Err()
	}

	if err := h.Err(); err != nil {
		return nil, fmt.Errorf("launch: worker failure: %w", err)
	}
	return frame, nil
}

func (l *Launcher) noResult(h group.Handle) error {
	if err := h.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	return ErrNoResult
}

// applyResult decodes the received frame and, when a trainer context is
// present, runs recovery.
func (l *Launcher) applyResult(frame []byte, tr *trainer.Trainer) (payload.Value, error) {
	if tr == nil {
		raw, err := payload.Unmarshal(frame)
		if err != nil {
			return nil, fmt.Errorf("launch: decode result: %w", err)
		}
		return raw, nil
	}

	out, err := trainer.DecodeSpawnOutput(frame)
	if err != nil {
		return nil, err
	}
	if err := tr.Recover(out); err != nil {
		return nil, err
	}
	return out.UserResult, nil
}

// startsByName reports whether the runtime resolves entries from the
// registry instead of taking a function.
func startsByName(rt group.Runtime) bool {
	type byName interface{ StartsByName() bool }
	n, ok := rt.(byName)
	return ok && n.StartsByName()
}
