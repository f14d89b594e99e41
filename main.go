package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sadewadee/email-extractor/runner"
	"github.com/sadewadee/email-extractor/runner/apirunner"
	"github.com/sadewadee/email-extractor/runner/workerrunner"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := runner.ParseConfig(os.Args[1:])
	if err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}

	r, err := newRunner(cfg)
	if err != nil {
		log.Printf("failed to start %s runner: %v", cfg.RunMode, err)
		return 1
	}

	defer func() {
		_ = runner.Telemetry().Close()
	}()

	defer func() {
		_ = r.Close(context.Background())
	}()

	if err := r.Run(ctx); err != nil {
		log.Printf("runner failed: %v", err)
		return 1
	}

	return 0
}

func newRunner(cfg *runner.Config) (runner.Runner, error) {
	switch cfg.RunMode {
	case runner.RunModeAPI:
		return apirunner.New(cfg)
	default:
		return workerrunner.New(cfg)
	}
}
