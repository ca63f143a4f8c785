// Package main provides the go-train-spawn CLI entry point.
//
// go-train-spawn launches a group of cooperating worker processes running a
// single training function, rendezvouses on exactly one result, and recovers
// orchestrator state from it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zredeaux65/go-train-spawn/cmd/go-train-spawn/cmd"
	"github.com/zredeaux65/go-train-spawn/internal/group"
	"github.com/zredeaux65/go-train-spawn/internal/logging"
)

func main() {
	// A re-exec'd worker never sees the CLI: it resolves its registered
	// entry and runs it to completion.
	if group.IsWorkerProcess() {
		logger := logging.NewLogger("json", "info", false)
		logging.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := group.RunWorker(ctx, logger); err != nil {
			logger.Error("worker_failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
