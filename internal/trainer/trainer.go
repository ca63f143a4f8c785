// Package trainer holds the orchestrator-side training context and the two
// correctness-critical steps around a launch: collecting the rank-zero
// result record inside the producing worker and recovering orchestrator
// state from it after rendezvous.
package trainer

import (
	"log/slog"

	"github.com/zredeaux65/go-train-spawn/internal/checkpoint"
	"github.com/zredeaux65/go-train-spawn/internal/payload"
)

// Phase names where a run can be when it stops.
type Phase string

const (
	PhaseFitting    Phase = "fitting"
	PhaseValidating Phase = "validating"
	PhaseTesting    Phase = "testing"
	PhasePredicting Phase = "predicting"
)

// Status captures where a run stopped. It is caller-defined beyond the
// phase; the launcher only ferries it back and overwrites the
// orchestrator's copy.
type Status struct {
	Phase       Phase  `json:"phase"`
	Stage       string `json:"stage,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

// Model is the live model whose parameters survive the launch. StateDict is
// called on every worker (group-synchronized metrics may need the full
// group before the value is final); LoadStateDict is called only in the
// orchestrator during recovery.
type Model interface {
	StateDict() map[string]payload.Tensor
	LoadStateDict(state map[string]payload.Tensor) error
}

// QueueHook is a legacy per-run override for contributing metrics to or
// consuming metrics from the spawn output queue.
//
// Deprecated: the default collector and restorer cover the metrics mapping;
// these hooks remain for callers that ferried custom values this way and
// are slated for removal.
type QueueHook func(q *payload.Queue)

// Trainer is the live orchestrator state a launch reads from and recovers
// into. Workers never mutate it across the process boundary; they see their
// own copy (exec runtime) or only read it (in-process runtime), and only
// Recover mutates the orchestrator's instance, strictly after rendezvous.
type Trainer struct {
	Model           Model
	Status          Status
	CallbackMetrics map[string]payload.Value

	// Checkpoints is the checkpoint store collaborator. Required when the
	// run phase is fitting; the last-weights artifact goes through it.
	Checkpoints checkpoint.Store

	// Tracker is the optional checkpoint-tracking collaborator. Nil means
	// no best-checkpoint ref is collected or restored.
	Tracker *checkpoint.Tracker

	// DefaultRootDir is where temporary weight artifacts are written.
	DefaultRootDir string

	// AddToQueue and GetFromQueue are the optional legacy queue hooks.
	// Absence simply skips that stage.
	AddToQueue   QueueHook
	GetFromQueue QueueHook

	Logger *slog.Logger
}

func (t *Trainer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// SetMetric records a live metric value on the trainer.
func (t *Trainer) SetMetric(name string, v payload.Value) {
	if t.CallbackMetrics == nil {
		t.CallbackMetrics = map[string]payload.Value{}
	}
	t.CallbackMetrics[name] = v
}
