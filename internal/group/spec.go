// Package group provides the process-group runtime: starting N worker
// processes, assigning each its identity, hosting the named barrier
// primitive, and carrying the single result frame back to the orchestrator.
package group

import (
	"errors"
	"fmt"
)

// StartMode selects how worker processes obtain their address space.
type StartMode string

const (
	// StartModeSpawn starts workers with independent memory by re-executing
	// the current binary.
	StartModeSpawn StartMode = "spawn"

	// StartModeFork requests copy-on-write semantics. Go runtimes cannot
	// fork safely, so fork maps to the in-process runtime (shared address
	// space, goroutine workers).
	StartModeFork StartMode = "fork"
)

// Spec describes one process group. It is immutable and owned by the
// launcher for the duration of a single launch.
type Spec struct {
	// Procs is the number of worker processes. Must be >= 1.
	Procs int

	// StartMode selects spawn (independent memory) or fork semantics.
	StartMode StartMode

	// Entry is the registered entry name workers resolve after re-exec.
	// Required by the exec runtime, ignored by the in-process runtime.
	Entry string

	// CoordAddr is the coordination endpoint (host:port) for the barrier
	// service. Empty means pick an ephemeral port and publish it.
	CoordAddr string

	// Args are extra argv entries appended to re-exec'd workers.
	Args []string

	// Env holds extra KEY=VALUE entries for re-exec'd workers, on top of
	// the orchestrator's environment.
	Env []string
}

// Validate checks the spec for launchability.
func (s Spec) Validate() error {
	if s.Procs < 1 {
		return fmt.Errorf("group: procs must be at least 1, got %d", s.Procs)
	}
	switch s.StartMode {
	case StartModeSpawn, StartModeFork, "":
	default:
		return fmt.Errorf("group: unknown start mode %q", s.StartMode)
	}
	return nil
}

// Identity is the per-process identity assigned at worker startup.
// Immutable after assignment.
//
// By convention local rank 0 is the result producer and global rank 0 is
// the group-wide source of truth for distributed state.
type Identity struct {
	ProcessIndex int
	LocalRank    int
	GlobalRank   int
	WorldSize    int
}

// IsProducer reports whether this worker is the result-producing process.
func (id Identity) IsProducer() bool {
	return id.LocalRank == 0
}

// IsGlobalZero reports whether this worker is the group-wide source of
// truth.
func (id Identity) IsGlobalZero() bool {
	return id.GlobalRank == 0
}

func (id Identity) String() string {
	return fmt.Sprintf("worker %d/%d (local %d, global %d)",
		id.ProcessIndex, id.WorldSize, id.LocalRank, id.GlobalRank)
}

// identityFor computes the identity of process i on a single host: process
// index, local rank, and global rank coincide.
func identityFor(i, world int) Identity {
	return Identity{ProcessIndex: i, LocalRank: i, GlobalRank: i, WorldSize: world}
}

var (
	// ErrAlreadyProduced is returned by a result sink when a second value
	// is written in the same launch.
	ErrAlreadyProduced = errors.New("group: result already produced for this launch")

	// ErrNotRegistered is returned when a spec names an entry that was
	// never registered.
	ErrNotRegistered = errors.New("group: entry not registered")
)
