package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/remcokranenburg/tunneltanktournament/internal/app"
	"github.com/remcokranenburg/tunneltanktournament/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:], config.DefaultEnvFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, app.Deps{}); err != nil {
		log.Fatalf("%v", err)
	}
}
