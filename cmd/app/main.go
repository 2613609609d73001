package main

import (
	"flag"
	"log"
	"os"

	"TickChart/internal/di"
	"TickChart/pkg/config"
)

func main() {
	defaultPath := "config/config.yaml"
	if v := os.Getenv("TICKCHART_CONFIG"); v != "" {
		defaultPath = v
	}
	configPath := flag.String("config", defaultPath, "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
