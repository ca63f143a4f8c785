package trainer

import (
	"fmt"

	"github.com/zredeaux65/go-train-spawn/internal/payload"
)

// Recover re-applies a received SpawnOutput into the orchestrator's live
// state. It runs exactly once per launch, in the orchestrator, strictly
// after rendezvous, so no locking is needed around the mutations.
func (t *Trainer) Recover(out *SpawnOutput) error {
	if t.Tracker != nil {
		t.Tracker.SetBestRef(out.BestCheckpointRef)
	}

	if out.LastWeightsRef != "" {
		if t.Checkpoints == nil {
			return fmt.Errorf("trainer: spawn output carries weights ref %q but no checkpoint store is configured", out.LastWeightsRef)
		}
		// Deletion strictly after a successful load: a failed load must
		// leave the one-shot artifact on disk and the live model untouched.
		state, err := t.Checkpoints.Load(out.LastWeightsRef)
		if err != nil {
			return fmt.Errorf("trainer: load last weights: %w", err)
		}
		if err := t.Model.LoadStateDict(state); err != nil {
			return fmt.Errorf("trainer: apply last weights: %w", err)
		}
		if err := t.Checkpoints.Remove(out.LastWeightsRef); err != nil {
			return fmt.Errorf("trainer: remove weights artifact: %w", err)
		}
	}

	t.Status = out.Status

	// Drain the queue in the order it was filled: legacy hook first, then
	// the default restorer.
	if t.GetFromQueue != nil {
		t.GetFromQueue(out.MetricsExtra)
	}
	if err := t.defaultGetFromQueue(out.MetricsExtra); err != nil {
		return err
	}

	if !out.MetricsExtra.Empty() {
		return fmt.Errorf("trainer: %d metric entries left undrained after recovery", out.MetricsExtra.Len())
	}
	return nil
}

// defaultGetFromQueue pops all remaining queue entries and merges them into
// the live metrics mapping, converting transport arrays back to tensors.
// Later entries overwrite earlier ones key by key.
func (t *Trainer) defaultGetFromQueue(q *payload.Queue) error {
	for {
		v, ok := q.Get()
		if !ok {
			return nil
		}
		metrics, ok := v.(map[string]payload.Value)
		if !ok {
			return fmt.Errorf("trainer: metrics queue entry is %T, not a mapping", v)
		}
		if t.CallbackMetrics == nil {
			t.CallbackMetrics = make(map[string]payload.Value, len(metrics))
		}
		for k, mv := range metrics {
			t.CallbackMetrics[k] = payload.FromHostArrays(mv)
		}
	}
}
