package group

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

// IsWorkerProcess reports whether this process was re-exec'd as a group
// worker. The binary's main must check this before doing anything else and
// hand control to RunWorker.
func IsWorkerProcess() bool {
	_, ok := os.LookupEnv(envWorkerIndex)
	return ok
}

// RunWorker runs the registered entry for a re-exec'd worker process and
// returns when it finishes. The caller (the binary's main) decides the
// process exit code from the returned error.
func RunWorker(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	id, err := identityFromEnv()
	if err != nil {
		return err
	}
	entryName := os.Getenv(envEntry)
	entry, err := Lookup(entryName)
	if err != nil {
		return err
	}

	coordAddr := os.Getenv(envCoordAddr)
	if coordAddr == "" {
		return fmt.Errorf("group: %s not set", envCoordAddr)
	}
	barrier := newBarrierClient(coordAddr, id.GlobalRank, DefaultBackoffConfig(), logger)
	defer barrier.Close()

	sink := &pipeSink{f: os.NewFile(resultFD, "result-pipe")}
	if sink.f == nil {
		return fmt.Errorf("group: result pipe fd %d not inherited", resultFD)
	}
	defer sink.Close()

	logger.Debug("worker_entry_starting",
		"entry", entryName,
		"identity", id.String(),
	)

	w := &Worker{
		Identity: id,
		Sink:     sink,
		Barrier:  barrier.Wait,
	}
	return entry(ctx, w)
}

func identityFromEnv() (Identity, error) {
	index, err := strconv.Atoi(os.Getenv(envWorkerIndex))
	if err != nil {
		return Identity{}, fmt.Errorf("group: parse %s: %w", envWorkerIndex, err)
	}
	world, err := strconv.Atoi(os.Getenv(envWorldSize))
	if err != nil {
		return Identity{}, fmt.Errorf("group: parse %s: %w", envWorldSize, err)
	}
	if index < 0 || index >= world {
		return Identity{}, fmt.Errorf("group: worker index %d out of range for world size %d", index, world)
	}
	return identityFor(index, world), nil
}

// pipeSink writes the single result frame onto the inherited pipe. The
// write-once guard is process-local; the cross-process single-producer
// discipline is by rank convention.
type pipeSink struct {
	f       *os.File
	claimed atomic.Bool
}

func (s *pipeSink) Put(frame []byte) error {
	if !s.claimed.CompareAndSwap(false, true) {
		return ErrAlreadyProduced
	}
	return writeFrame(s.f, frame)
}

func (s *pipeSink) Close() error {
	return s.f.Close()
}
