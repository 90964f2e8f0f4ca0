package main

import (
	"log"

	"docextract-backend/internal/bootstrap"
	"docextract-backend/internal/shared/config"
	"docextract-backend/internal/shared/server"
	"docextract-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	addr := server.Addr(cfg.Port)
	telemetry.Info("server.start", map[string]any{"addr": addr, "env": cfg.Env})

	if err := app.Router.Run(addr); err != nil {
		telemetry.Error("server.stop", map[string]any{"err": err.Error()})
		log.Fatalf("server error: %v", err)
	}
}
