// Command registryctl runs registry jobs from the shell: cause list imports,
// promotion of staged cases, cause list exports and migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JustJay7/tribunal-registry/internal/config"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/spf13/cobra"
)

// env is what every subcommand needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	log    *logger.Logger
	stores *database.Stores
}

func (e *env) close() {
	if e.stores != nil {
		if err := e.stores.Close(); err != nil {
			e.log.Error("Failed to close databases", "error", err)
		}
	}
	e.log.Sync()
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	stores, err := database.OpenStores(cfg.StagingDatabasePath, cfg.MainDatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	return &env{cfg: cfg, log: log, stores: stores}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "registryctl",
		Short:         "Tribunal registry maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newImportCmd(),
		newPromoteCmd(),
		newCauseListCmd(),
		newMigrateCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
