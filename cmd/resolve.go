package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/shared"
)

// ResolveTrack resolves a single Spotify track ID through the full provider
// and scraping pipeline and prints the update that would be submitted.
func (r *Runner) ResolveTrack(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.Args().First()
	if trackID == "" {
		return fmt.Errorf("%w: track ID is required", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd)

	engine, closeEngine, err := r.newEngine(config)
	if err != nil {
		return err
	}
	defer closeEngine()

	item := models.TrackItem{ID: trackID, ISRC: cmd.String("isrc")}

	r.logger.Info("resolving track", "id", trackID, "url", item.SpotifyURL())

	update := engine.Process(ctx, item)
	return r.writeJSON(update, cmd.Bool("pretty"))
}
