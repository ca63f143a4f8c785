package group

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/zredeaux65/go-train-spawn/internal/logging"
)

// Environment contract between the orchestrator and re-exec'd workers.
const (
	// EnvMasterAddr is the process-wide coordination endpoint published by
	// the launcher before the group starts.
	EnvMasterAddr = "TRAIN_SPAWN_MASTER_ADDR"

	envWorkerIndex = "TRAIN_SPAWN_WORKER_INDEX"
	envWorldSize   = "TRAIN_SPAWN_WORLD_SIZE"
	envEntry       = "TRAIN_SPAWN_ENTRY"
	envCoordAddr   = "TRAIN_SPAWN_COORD_ADDR"

	// resultFD is where the shared result pipe lands in a worker:
	// ExtraFiles[0] becomes FD 3 in the child.
	resultFD = 3
)

// ExecRuntime starts workers with independent memory by re-executing the
// current binary. The worker entry must be registered (same binary, same
// init path) and is resolved child-side from spec.Entry; the shared result
// pipe is inherited as a file descriptor and the named barrier runs over a
// TCP coordination service hosted here.
type ExecRuntime struct {
	logger    *slog.Logger
	backoff   BackoffConfig
	output    *logging.WorkerOutput
	callbacks Callbacks
}

// ExecConfig holds configuration for creating an ExecRuntime.
type ExecConfig struct {
	Logger    *slog.Logger
	Backoff   BackoffConfig // zero value means DefaultBackoffConfig
	Callbacks Callbacks
}

// NewExecRuntime creates a re-exec based runtime.
func NewExecRuntime(cfg ExecConfig) *ExecRuntime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := cfg.Backoff
	if backoff.Initial == 0 {
		backoff = DefaultBackoffConfig()
	}
	return &ExecRuntime{
		logger:    logger,
		backoff:   backoff,
		output:    logging.NewWorkerOutput(logger),
		callbacks: cfg.Callbacks,
	}
}

// StartsByName reports that this runtime resolves entries from the
// registry rather than taking a function.
func (r *ExecRuntime) StartsByName() bool { return true }

// Start launches spec.Procs worker processes. The entry argument must be
// nil: a function cannot cross an exec boundary, workers resolve spec.Entry
// from the registry after re-exec.
func (r *ExecRuntime) Start(ctx context.Context, spec Spec, entry Entry) (Handle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if entry != nil {
		return nil, errors.New("group: exec runtime takes entries by registered name, not by function")
	}
	// Fail before spawning if the children would not find the entry either:
	// parent and child run the same binary with the same init path.
	if _, err := Lookup(spec.Entry); err != nil {
		return nil, err
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("group: resolve executable: %w", err)
	}

	coord, err := newCoordServer(spec.CoordAddr, spec.Procs, r.logger)
	if err != nil {
		return nil, err
	}

	resultR, resultW, err := os.Pipe()
	if err != nil {
		coord.Close()
		return nil, fmt.Errorf("group: result pipe: %w", err)
	}

	h := &execHandle{
		resultCh:  make(chan []byte, 1),
		done:      make(chan struct{}),
		coord:     coord,
		resultR:   resultR,
		logger:    r.logger,
		callbacks: r.callbacks,
	}

	for i := 0; i < spec.Procs; i++ {
		cmd := exec.CommandContext(ctx, exe, spec.Args...)
		cmd.Env = append(os.Environ(), spec.Env...)
		cmd.Env = append(cmd.Env,
			envWorkerIndex+"="+strconv.Itoa(i),
			envWorldSize+"="+strconv.Itoa(spec.Procs),
			envEntry+"="+spec.Entry,
			envCoordAddr+"="+coord.Addr(),
		)
		// All workers share the single write end; only local rank 0 writes.
		cmd.ExtraFiles = []*os.File{resultW}
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			h.abort(fmt.Errorf("group: worker %d stdout pipe: %w", i, err))
			resultW.Close()
			return nil, h.Err()
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			h.abort(fmt.Errorf("group: worker %d stderr pipe: %w", i, err))
			resultW.Close()
			return nil, h.Err()
		}

		if err := cmd.Start(); err != nil {
			h.abort(fmt.Errorf("group: start worker %d: %w", i, err))
			resultW.Close()
			return nil, h.Err()
		}

		r.logger.Info("worker_started",
			"worker", i,
			"pid", cmd.Process.Pid,
			"world_size", spec.Procs,
		)
		if r.callbacks.OnWorkerStart != nil {
			r.callbacks.OnWorkerStart(i, cmd.Process.Pid)
		}

		go r.output.Forward(i, "stdout", stdout)
		go r.output.Forward(i, "stderr", stderr)

		h.procs = append(h.procs, cmd)
		h.wg.Add(1)
		go h.waitWorker(i, cmd)
	}

	// The parent's copy of the write end must close after all children have
	// inherited it, so the reader sees EOF once the group exits.
	resultW.Close()

	go h.readResult()
	go func() {
		h.wg.Wait()
		coord.Close()
		close(h.done)
	}()

	return h, nil
}

// execHandle implements Handle for process-backed groups.
type execHandle struct {
	resultCh  chan []byte
	done      chan struct{}
	coord     *coordServer
	resultR   *os.File
	logger    *slog.Logger
	callbacks Callbacks
	procs     []*exec.Cmd
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

func (h *execHandle) Result(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-h.resultCh:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

// readResult reads the single frame off the shared pipe. EOF without a
// frame means no worker ever produced; the launcher turns that into a
// protocol-violation error once the group exits.
func (h *execHandle) readResult() {
	defer h.resultR.Close()

	frame, err := readFrame(h.resultR)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			h.logger.Warn("result_read_failed", "error", err)
			h.recordErr(err)
		}
		return
	}
	h.resultCh <- frame
}

func (h *execHandle) waitWorker(i int, cmd *exec.Cmd) {
	defer h.wg.Done()

	start := time.Now()
	waitErr := cmd.Wait()
	exitCode := extractExitCode(waitErr)
	uptime := time.Since(start)

	h.logger.Info("worker_exited",
		"worker", i,
		"pid", cmd.Process.Pid,
		"exit_code", exitCode,
		"uptime", uptime.String(),
	)
	if h.callbacks.OnWorkerExit != nil {
		h.callbacks.OnWorkerExit(i, exitCode, uptime)
	}

	if exitCode != 0 {
		h.recordErr(fmt.Errorf("worker %d exited with code %d", i, exitCode))
	}
}

func (h *execHandle) recordErr(err error) {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// abort records a startup failure and tears down whatever already started.
func (h *execHandle) abort(err error) {
	h.recordErr(err)
	h.Stop(2 * time.Second)
	h.coord.Close()
	h.resultR.Close()
}

// Stop gracefully stops all worker processes, first SIGTERM to each process
// group, then SIGKILL after the timeout.
func (h *execHandle) Stop(timeout time.Duration) error {
	for _, cmd := range h.procs {
		if cmd.Process == nil {
			continue
		}
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			syscall.Kill(-pgid, syscall.SIGTERM)
		} else {
			cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	waited := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-time.After(timeout):
	}

	for _, cmd := range h.procs {
		if cmd.Process == nil {
			continue
		}
		h.logger.Warn("force_killing_worker", "pid", cmd.Process.Pid)
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			cmd.Process.Kill()
		}
	}
	return errors.New("group: workers did not exit gracefully")
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
