package main

import (
	"fmt"
	"os"

	"go.uber.org/fx"

	"tgwatch/internal/config"
	"tgwatch/internal/daemon"
	"tgwatch/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.LoadTunables(session.ConfigPath()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(cfg),
	)

	app.Run()
}
