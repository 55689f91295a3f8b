package main

import (
	"log"

	"github.com/Phill981/PrevexRaspiBackend/internal/app"
	"github.com/Phill981/PrevexRaspiBackend/internal/config"
	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	application, err := app.NewApp(cfg, lg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
