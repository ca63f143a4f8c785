package group

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Entry is the function executed inside each worker. The worker handle
// carries the process identity, the result sink, and the barrier capability.
type Entry func(ctx context.Context, w *Worker) error

// ResultSink is the worker-side handle of the result channel. The slot is
// write-once per launch; a second Put fails with ErrAlreadyProduced.
type ResultSink interface {
	Put(frame []byte) error
}

// BarrierFunc blocks until every worker in the group has arrived at the
// named rendezvous point.
type BarrierFunc func(ctx context.Context, name string) error

// Worker is the handle passed to an Entry running inside a worker process.
type Worker struct {
	Identity Identity
	Sink     ResultSink
	Barrier  BarrierFunc
}

// Callbacks contains optional callback functions for group lifecycle
// events. Nil fields are skipped.
type Callbacks struct {
	// OnWorkerStart is called when a worker begins execution. pid is the
	// OS process id, or 0 for in-process workers.
	OnWorkerStart func(worker, pid int)

	// OnWorkerExit is called when a worker finishes.
	OnWorkerExit func(worker, exitCode int, uptime time.Duration)
}

// Runtime starts process groups. Implementations decide how workers obtain
// their address space: LocalRuntime runs goroutine workers in-process,
// ExecRuntime re-executes the binary per worker.
type Runtime interface {
	// Start launches spec.Procs workers and returns immediately with a
	// handle for rendezvous and teardown. The entry argument is used by
	// in-process runtimes; the exec runtime resolves spec.Entry from the
	// registry instead (a function cannot cross an exec boundary) and
	// requires entry to be nil.
	Start(ctx context.Context, spec Spec, entry Entry) (Handle, error)
}

// Handle tracks one started process group.
type Handle interface {
	// Result blocks until the single result frame has been written by a
	// worker, or the context is done.
	Result(ctx context.Context) ([]byte, error)

	// Done is closed once every worker has exited.
	Done() <-chan struct{}

	// Err returns the first worker failure. Valid after Done is closed.
	Err() error

	// Stop tears the group down, escalating from graceful to forced after
	// the timeout.
	Stop(timeout time.Duration) error
}

// The registry binds entry names to implementations so that a re-exec'd
// worker can resolve the entry it is supposed to run. Registration must
// happen at init time, before any worker process is started, so that both
// sides of the exec boundary agree on the mapping.

var (
	registryMu sync.RWMutex
	registry   = map[string]Entry{}
)

// Register binds name to entry. It panics on duplicate registration, which
// points at two init paths claiming the same name.
func Register(name string, entry Entry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("group: entry %q registered twice", name))
	}
	registry[name] = entry
}

// Lookup resolves a registered entry by name.
func Lookup(name string) (Entry, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	entry, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return entry, nil
}

// RegisteredEntries returns the sorted names of all registered entries.
func RegisteredEntries() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
