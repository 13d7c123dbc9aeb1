package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"taskBot/internal/app"
	"taskBot/internal/config"
	"taskBot/internal/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("App: Stopped with error", err)
		logger.Sync()
		os.Exit(1)
	}
}
