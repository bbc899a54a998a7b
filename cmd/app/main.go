package main

import (
	"flag"
	"log"
	"os"

	"EquitySchema/internal/di"
	"EquitySchema/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s store=%s source=%s", cfg.Environment, cfg.Store.Backend, cfg.Source.BaseURL)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run the batch (blocks until the pipeline finishes or a signal arrives)
	if err := app.Run(); err != nil {
		log.Printf("run error: %v", err)
		os.Exit(1)
	}
}
