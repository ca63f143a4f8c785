package cmd

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zredeaux65/go-train-spawn/internal/checkpoint"
	"github.com/zredeaux65/go-train-spawn/internal/config"
	"github.com/zredeaux65/go-train-spawn/internal/group"
	"github.com/zredeaux65/go-train-spawn/internal/launch"
	"github.com/zredeaux65/go-train-spawn/internal/payload"
	"github.com/zredeaux65/go-train-spawn/internal/trainer"
)

// The built-in entries make the binary usable without writing code: a sleep
// entry for exercising group plumbing, and a toy fitting run that carries
// weights back through the checkpoint store.
const (
	entrySleep = "sleep"
	entryDemo  = "demo-fit"
)

func init() {
	launch.Register(entrySleep, func(id group.Identity) (launch.Func, *trainer.Trainer) {
		return sleepEntry(id), nil
	})
	launch.Register(entryDemo, func(id group.Identity) (launch.Func, *trainer.Trainer) {
		return demoFitEntry(id), demoTrainer("")
	})
}

// entryForParent returns the function and trainer context the orchestrator
// side of a launch needs. Under the exec runtime only the trainer matters;
// the in-process runtime runs the function directly.
func entryForParent(cfg *config.Config) (launch.Func, *trainer.Trainer) {
	switch cfg.Entry {
	case entryDemo:
		return demoFitEntry(group.Identity{WorldSize: cfg.Workers}), demoTrainer(cfg.RootDir)
	default:
		return sleepEntry(group.Identity{WorldSize: cfg.Workers}), nil
	}
}

// sleepEntry idles briefly and reports its identity. Useful for smoke
// testing spawn plumbing, barriers, and teardown.
func sleepEntry(id group.Identity) launch.Func {
	return func(ctx context.Context) (payload.Value, error) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return payload.Value(map[string]payload.Value{
			"rank":  payload.Value(int64(id.GlobalRank)),
			"world": payload.Value(int64(id.WorldSize)),
		}), nil
	}
}

// demoModel is a one-parameter model fitted by the demo entry.
type demoModel struct {
	weight float64
}

func (m *demoModel) StateDict() map[string]payload.Tensor {
	return map[string]payload.Tensor{
		"weight": payload.Scalar(payload.DeviceHost, m.weight),
	}
}

func (m *demoModel) LoadStateDict(state map[string]payload.Tensor) error {
	w, ok := state["weight"]
	if !ok {
		return fmt.Errorf("demo: state dict missing weight")
	}
	v, ok := w.Item()
	if !ok {
		return fmt.Errorf("demo: weight is not a scalar")
	}
	m.weight = v
	return nil
}

func demoTrainer(rootDir string) *trainer.Trainer {
	if rootDir == "" {
		rootDir = "."
	}
	return &trainer.Trainer{
		Model:          &demoModel{weight: 1.0},
		Status:         trainer.Status{Phase: trainer.PhaseFitting},
		Checkpoints:    checkpoint.NewFileStore(),
		Tracker:        checkpoint.NewTracker(),
		DefaultRootDir: rootDir,
	}
}

// demoFitEntry runs a few gradient-descent steps on f(w) = (w - 3)^2 and
// records the final loss as a metric.
func demoFitEntry(id group.Identity) launch.Func {
	return func(ctx context.Context) (payload.Value, error) {
		w := 1.0
		lr := 0.1
		for step := 0; step < 50; step++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			grad := 2 * (w - 3)
			w -= lr * grad
		}
		loss := math.Pow(w-3, 2)
		return payload.Value(map[string]payload.Value{
			"final_weight": payload.Value(w),
			"final_loss":   payload.Value(loss),
			"rank":         payload.Value(int64(id.GlobalRank)),
		}), nil
	}
}
