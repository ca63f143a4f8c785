package launch

import (
	"context"
	"os"
	"time"

	"github.com/zredeaux65/go-train-spawn/internal/group"
)

// TransportPolicy describes what a worker must do after the result has been
// enqueued, before it may exit. There is one launcher; the two deployment
// variants differ only in this policy.
type TransportPolicy interface {
	Name() string

	// PostEnqueue runs in every worker after the producer's enqueue (and
	// after non-producers have skipped theirs), immediately before worker
	// exit.
	PostEnqueue(ctx context.Context, w *group.Worker) error
}

// NativePolicy is the pipe/queue transport: process teardown cannot race
// delivery, so workers exit as soon as they are done.
type NativePolicy struct{}

func (NativePolicy) Name() string { return "native" }

func (NativePolicy) PostEnqueue(ctx context.Context, w *group.Worker) error {
	return nil
}

// DefaultGracePeriod is how long the producer lingers after the end-process
// barrier under the pod policy.
const DefaultGracePeriod = 2 * time.Second

// PodPolicy is the cooperative-process transport used on accelerator pods,
// where process teardown can race the transport's delivery guarantee. Every
// worker passes the end-process barrier after the enqueue, and the producer
// delays its own exit by a grace period so the orchestrator has consumed
// the value before any worker fully terminates.
type PodPolicy struct {
	GracePeriod time.Duration
}

// EndProcessBarrier is the rendezvous every worker passes before exiting
// under the pod policy.
const EndProcessBarrier = "end-process"

func (PodPolicy) Name() string { return "pod" }

func (p PodPolicy) PostEnqueue(ctx context.Context, w *group.Worker) error {
	if err := w.Barrier(ctx, EndProcessBarrier); err != nil {
		return err
	}

	// The producer exits last: enqueue < barrier < grace sleep < exit.
	if w.Identity.IsProducer() {
		grace := p.GracePeriod
		if grace <= 0 {
			grace = DefaultGracePeriod
		}
		select {
		case <-time.After(grace):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Policy configuration crosses the exec boundary through the worker
// environment; a re-exec'd worker reconstructs its policy from these.
const (
	envTransport   = "TRAIN_SPAWN_TRANSPORT"
	envGracePeriod = "TRAIN_SPAWN_GRACE_PERIOD"
)

func policyEnv(p TransportPolicy) []string {
	env := []string{envTransport + "=" + p.Name()}
	if pod, ok := p.(PodPolicy); ok && pod.GracePeriod > 0 {
		env = append(env, envGracePeriod+"="+pod.GracePeriod.String())
	}
	return env
}

func policyFromEnv() TransportPolicy {
	switch os.Getenv(envTransport) {
	case "pod":
		pod := PodPolicy{}
		if s := os.Getenv(envGracePeriod); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				pod.GracePeriod = d
			}
		}
		return pod
	default:
		return NativePolicy{}
	}
}
