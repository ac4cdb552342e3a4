package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/bankbunk/apple/internal/repositories"
	"github.com/bankbunk/apple/internal/shared"
)

// CacheStats prints counts of cached resolutions.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	repo, closeRepo, err := r.openCacheRepo(r.loadConfig(cmd))
	if err != nil {
		return err
	}
	defer closeRepo()

	stats, err := repo.Stats()
	if err != nil {
		return err
	}

	r.writePlain("Cached resolutions: %d\n", stats.Total)
	r.writePlain("  With genres: %d\n", stats.Resolved)
	r.writePlain("  Known misses: %d\n", stats.Misses)
	return nil
}

// CacheClear drops every cached resolution.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	repo, closeRepo, err := r.openCacheRepo(r.loadConfig(cmd))
	if err != nil {
		return err
	}
	defer closeRepo()

	dropped, err := repo.Clear()
	if err != nil {
		return err
	}

	r.logger.Info("cache cleared", "dropped", dropped)
	r.writePlain("Dropped %d cached resolutions\n", dropped)
	return nil
}

func (r *Runner) openCacheRepo(config *shared.Config) (*repositories.ResolutionRepository, func(), error) {
	if !config.Cache.Enabled || config.Cache.Path == "" {
		return nil, nil, fmt.Errorf("%w: cache is not enabled", shared.ErrMissingConfig)
	}

	db, err := r.openCache(config)
	if err != nil {
		return nil, nil, err
	}

	repo, err := repositories.NewResolutionRepository(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return repo, func() { db.Close() }, nil
}
