package launch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zredeaux65/go-train-spawn/internal/group"
	"github.com/zredeaux65/go-train-spawn/internal/payload"
	"github.com/zredeaux65/go-train-spawn/internal/trainer"
)

// workerEntry wraps fn into the group entry executed by every worker: run
// the function, collect the rank-zero record, enqueue it from the producer
// only, then apply the transport policy's post-enqueue step.
func workerEntry(fn Func, tr *trainer.Trainer, policy TransportPolicy, logger *slog.Logger) group.Entry {
	return func(ctx context.Context, w *group.Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("worker_entry_start", "identity", w.Identity.String())

		raw, err := fn(ctx)
		if err != nil {
			return fmt.Errorf("worker %s: %w", w.Identity, err)
		}

		frame, produce, err := buildRecord(w.Identity, raw, tr)
		if err != nil {
			return fmt.Errorf("worker %s: %w", w.Identity, err)
		}
		if produce && w.Identity.IsProducer() {
			if err := w.Sink.Put(frame); err != nil {
				return fmt.Errorf("worker %s: enqueue result: %w", w.Identity, err)
			}
			logger.Debug("worker_result_enqueued",
				"identity", w.Identity.String(),
				"frame_bytes", len(frame),
			)
		}
		if err := policy.PostEnqueue(ctx, w); err != nil {
			return fmt.Errorf("worker %s: %w", w.Identity, err)
		}
		return nil
	}
}

// buildRecord encodes what the producer will enqueue. Every worker runs
// collection even though only the producer enqueues: collection contains
// group-synchronized steps that all ranks must execute together.
func buildRecord(id group.Identity, raw payload.Value, tr *trainer.Trainer) (frame []byte, produce bool, err error) {
	host := payload.MoveToHost(raw)

	if tr == nil {
		frame, err = payload.Marshal(host)
		if err != nil {
			return nil, false, fmt.Errorf("encode result: %w", err)
		}
		return frame, true, nil
	}

	out, err := tr.CollectRankZero(id, host)
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	frame, err = out.Encode()
	if err != nil {
		return nil, false, err
	}
	return frame, true, nil
}

// Maker builds the function and trainer context for one worker of a
// registered entry. It runs inside the re-executed worker process, after
// the worker's identity is known.
type Maker func(id group.Identity) (Func, *trainer.Trainer)

// Register binds a maker to a name for use with the exec runtime. Like
// group.Register it must run from init or main in the served binary, and
// panics on a duplicate name.
func Register(name string, maker Maker) {
	group.Register(name, func(ctx context.Context, w *group.Worker) error {
		fn, tr := maker(w.Identity)
		return workerEntry(fn, tr, policyFromEnv(), slog.Default())(ctx, w)
	})
}
