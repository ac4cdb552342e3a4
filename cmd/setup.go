package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/bankbunk/apple/internal/repositories"
	"github.com/bankbunk/apple/internal/shared"
)

// SetupConfig writes the example configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set queue.base_url (or the WORKER_URL environment variable)\n")
	r.writePlain("2. Run 'apple probe' to check provider health\n")
	return nil
}

// SetupDatabase initializes the resolution cache database and its schema.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if config.Cache.Path == "" {
		return fmt.Errorf("%w: cache.path is not set", shared.ErrMissingConfig)
	}

	r.logger.Info("initializing cache database", "path", config.Cache.Path)

	db, err := r.openCache(config)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if _, err := repositories.NewResolutionRepository(db); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Cache.Path)
	return nil
}
