package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/bankbunk/apple/internal/extract"
	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/providers"
	"github.com/bankbunk/apple/internal/ui"
)

// Tracks known to resolve on every provider, used to tell provider outages
// apart from rate limiting.
var probeTracks = []string{
	"6g9i9Uny9yR6ZpBX8NYuzz",
	"3Z7OFraob1P0QscGaSoh0v",
	"0JKjdalJgMHiHGiPAX44iK",
	"0ybTlxpt6jsG1LzGuHyEgA",
	"3X1pyT3vAKkkS3ExTARZNf",
}

// Probe runs every enabled provider against sample tracks and reports the
// outcome per provider, optionally scraping genres from each resolved URL.
func (r *Runner) Probe(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	scrapeGenres := cmd.Bool("genres")

	primary, fallback := r.buildResolvers(config)
	resolvers := append(primary, fallback...)
	if len(resolvers) == 0 {
		return fmt.Errorf("no providers enabled")
	}

	palette := ui.DefaultPalette()
	extractor := r.newExtractor(config)

	r.writePlain("%s\n", palette.Title(fmt.Sprintf("Probing %d providers against %d tracks", len(resolvers), len(probeTracks))))

	for i, trackID := range probeTracks {
		item := models.TrackItem{ID: trackID}
		r.writePlain("🎵 Track %d: %s\n", i+1, item.SpotifyURL())
		r.writePlain("%s\n", palette.Help(strings.Repeat("-", 60)))

		for _, resolver := range resolvers {
			start := time.Now()
			res := resolver.Resolve(ctx, item.SpotifyURL())
			elapsed := time.Since(start)

			label := fmt.Sprintf("[%s]", resolver.ID())
			switch res.Status {
			case providers.StatusFound:
				r.writePlain("   %s %s\n", label, palette.OK(fmt.Sprintf("link found (%.2fs)", elapsed.Seconds())))
				if scrapeGenres {
					r.probeGenres(ctx, extractor, palette, res.URL)
				}
			case providers.StatusNotFound:
				detail := "no Apple Music link"
				if res.Err != nil {
					detail = res.Err.Error()
				}
				r.writePlain("   %s %s\n", label, palette.Err(fmt.Sprintf("failed (%.2fs): %s", elapsed.Seconds(), detail)))
			case providers.StatusRateLimited:
				r.writePlain("   %s %s\n", label, palette.Warn(fmt.Sprintf("rate limited (%.2fs)", elapsed.Seconds())))
			case providers.StatusSoftLimited:
				r.writePlain("   %s %s\n", label, palette.Warn(fmt.Sprintf("soft limited, empty response (%.2fs)", elapsed.Seconds())))
			}

			// Pause between providers to avoid tripping their limits ourselves
			time.Sleep(time.Second)
		}

		r.writePlain("\n")
		if i < len(probeTracks)-1 {
			time.Sleep(2 * time.Second)
		}
	}

	return nil
}

// probeGenres scrapes one resolved URL so the probe also exercises the Apple
// Music side of the pipeline.
func (r *Runner) probeGenres(ctx context.Context, extractor *extract.Extractor, palette *ui.Palette, url string) {
	meta := extractor.Fetch(ctx, extractor.CanonicalURL(url))
	if meta == nil {
		r.writePlain("       -> 🍎 %s\n", palette.Err("genre fetch failed"))
		return
	}
	r.writePlain("       -> 🍎 %s\n", palette.Help(fmt.Sprintf("genres: %v (published %s)", meta.Genres, meta.PublishedDate)))
}
