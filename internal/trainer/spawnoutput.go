package trainer

import (
	"encoding/json"
	"fmt"

	"github.com/zredeaux65/go-train-spawn/internal/checkpoint"
	"github.com/zredeaux65/go-train-spawn/internal/payload"
)

// SpawnOutput is the record transferred from the result-producing worker
// back to the orchestrator. It is built at most once per launch, by exactly
// one worker, and crosses the result channel by value; nothing else crosses
// the ownership boundary.
type SpawnOutput struct {
	// BestCheckpointRef is set only when a checkpoint tracker exists.
	BestCheckpointRef checkpoint.Ref

	// LastWeightsRef points at the temporary weights artifact. Present only
	// when the run phase is fitting.
	LastWeightsRef checkpoint.Ref

	// Status is where the run stopped.
	Status Status

	// UserResult is the opaque value returned by the launched function,
	// moved to host-resident form.
	UserResult payload.Value

	// MetricsExtra ferries metric values that cannot be reconstructed from
	// UserResult alone. Recovery must fully drain it.
	MetricsExtra *payload.Queue
}

type spawnOutputWire struct {
	BestCheckpointRef string          `json:"best_checkpoint_ref,omitempty"`
	LastWeightsRef    string          `json:"last_weights_ref,omitempty"`
	Status            Status          `json:"status"`
	UserResult        json.RawMessage `json:"user_result"`
	MetricsExtra      *payload.Queue  `json:"metrics_extra"`
}

// Encode serializes the record for the result channel.
func (o *SpawnOutput) Encode() ([]byte, error) {
	userResult, err := payload.Marshal(o.UserResult)
	if err != nil {
		return nil, fmt.Errorf("trainer: encode user result: %w", err)
	}
	extra := o.MetricsExtra
	if extra == nil {
		extra = payload.NewQueue()
	}
	return json.Marshal(spawnOutputWire{
		BestCheckpointRef: string(o.BestCheckpointRef),
		LastWeightsRef:    string(o.LastWeightsRef),
		Status:            o.Status,
		UserResult:        userResult,
		MetricsExtra:      extra,
	})
}

// DecodeSpawnOutput deserializes a record received from the result channel.
func DecodeSpawnOutput(data []byte) (*SpawnOutput, error) {
	var wire spawnOutputWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("trainer: decode spawn output: %w", err)
	}
	userResult, err := payload.Unmarshal(wire.UserResult)
	if err != nil {
		return nil, fmt.Errorf("trainer: decode user result: %w", err)
	}
	extra := wire.MetricsExtra
	if extra == nil {
		extra = payload.NewQueue()
	}
	return &SpawnOutput{
		BestCheckpointRef: checkpoint.Ref(wire.BestCheckpointRef),
		LastWeightsRef:    checkpoint.Ref(wire.LastWeightsRef),
		Status:            wire.Status,
		UserResult:        userResult,
		MetricsExtra:      extra,
	}, nil
}
