package main

import (
	"log"

	"github.com/joho/godotenv"

	"bookshelf/internal/config"
	"bookshelf/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// A missing .env is fine; configuration falls back to real env vars.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	cfg := config.NewConfig()
	entrypoint.Run(cfg, Version)
}
