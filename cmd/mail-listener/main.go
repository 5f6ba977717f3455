package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fleetreport/internal/config"
	"fleetreport/internal/listener"
	"fleetreport/internal/logging"
	"fleetreport/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger := logging.New(cfg)
	opts, err := pipeline.OptionsFromConfig(cfg)
	must(err)

	svc, err := listener.NewService(cfg, pipeline.NewService(pipeline.NewWorkspace(), opts, logger), logger)
	must(err)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
