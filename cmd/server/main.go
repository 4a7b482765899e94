package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/config"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/server"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// OpenStores migrates both databases.
	stores, err := database.OpenStores(cfg.StagingDatabasePath, cfg.MainDatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize databases", "error", err)
	}

	if migrate {
		if err := stores.Close(); err != nil {
			log.Error("Failed to close databases", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	cacheService := cache.NewCache(cfg.CacheSize, cfg.CacheTTL)

	srv := server.New(cfg, stores, cacheService, log)

	log.Info("Starting Tribunal Registry",
		"host", cfg.Host,
		"port", cfg.Port,
		"registry", cfg.RegistryName,
		"hearing_policy", cfg.DuplicateHearingPolicy,
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server stopped with error", "error", err)
	}
}
