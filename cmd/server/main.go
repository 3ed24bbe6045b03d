package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/homedock/internal/server"
	"github.com/dmitrijs2005/homedock/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	logger, err := server.NewLogger(cfg)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server error", "error", err)
		return 1
	}
	return 0
}
