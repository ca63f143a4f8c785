package trainer

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zredeaux65/go-train-spawn/internal/checkpoint"
	"github.com/zredeaux65/go-train-spawn/internal/group"
	"github.com/zredeaux65/go-train-spawn/internal/payload"
)

// CollectRankZero builds the SpawnOutput after the launched function has
// returned inside a worker. It runs on every worker but returns a record
// only on global rank zero; all other workers get (nil, nil) and their
// result is discarded by the caller.
func (t *Trainer) CollectRankZero(id group.Identity, raw payload.Value) (*SpawnOutput, error) {
	t.logger().Debug("finalizing_spawn_environment", "identity", id.String())

	var bestRef checkpoint.Ref
	if t.Tracker != nil {
		bestRef = t.Tracker.BestRef()
	}

	// The full state dict is computed on every process, before the rank
	// check: group-synchronized metrics inside the model need all ranks to
	// participate even though only rank zero keeps the result.
	state := t.Model.StateDict()

	if !id.IsGlobalZero() {
		return nil, nil
	}

	var weightsRef checkpoint.Ref
	if t.Status.Phase == PhaseFitting {
		if t.Checkpoints == nil {
			return nil, fmt.Errorf("trainer: fitting run has no checkpoint store")
		}
		weightsRef = t.tempWeightsRef()
		hostState := make(map[string]payload.Tensor, len(state))
		for k, tensor := range state {
			hostState[k] = tensor.ToHost()
		}
		if err := t.Checkpoints.Save(hostState, weightsRef); err != nil {
			return nil, fmt.Errorf("trainer: save last weights: %w", err)
		}
	}

	// Fill the metrics queue: the legacy per-run hook first, then the
	// default collector. Recovery drains in the same order.
	extra := payload.NewQueue()
	if t.AddToQueue != nil {
		t.AddToQueue(extra)
	}
	t.defaultAddToQueue(extra)

	return &SpawnOutput{
		BestCheckpointRef: bestRef,
		LastWeightsRef:    weightsRef,
		Status:            t.Status,
		UserResult:        raw,
		MetricsExtra:      extra,
	}, nil
}

// defaultAddToQueue appends the live metrics mapping with every tensor
// converted to its transport-safe array form.
func (t *Trainer) defaultAddToQueue(q *payload.Queue) {
	metrics := make(map[string]payload.Value, len(t.CallbackMetrics))
	for k, v := range t.CallbackMetrics {
		metrics[k] = payload.ToHostArrays(v)
	}
	q.Put(payload.Value(metrics))
}

// tempWeightsRef names the temporary last-weights artifact under the run's
// root dir. The name is unique per launch so concurrent runs sharing a root
// dir cannot clobber each other's artifact.
func (t *Trainer) tempWeightsRef() checkpoint.Ref {
	name := fmt.Sprintf(".temp-%s.ckpt", uuid.NewString())
	return checkpoint.Ref(filepath.Join(t.DefaultRootDir, name))
}
