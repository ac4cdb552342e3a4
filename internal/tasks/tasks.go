// package tasks implements the per-track resolution orchestrator and the
// batch job runner.
//
// The core abstraction is Engine, which drives one logical unit of work: fan
// out to the primary providers, fall back when they come up empty, scrape
// every distinct Apple Music URL obtained, and merge the metadata by
// publication date. Rate-limit signals feed the shared cooldown tracker and
// an escalating retry loop; everything else is terminal for the attempt.
package tasks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/providers"
	"github.com/bankbunk/apple/internal/shared"
)

// PageExtractor scrapes metadata from a destination-platform page.
type PageExtractor interface {
	Fetch(ctx context.Context, pageURL string) *models.TrackMetadata
	CanonicalURL(raw string) string
}

// ResolutionCache is optional local persistence consulted before any
// provider is dispatched and written through on completion.
type ResolutionCache interface {
	Get(trackID string) (*models.CachedResolution, error)
	Put(cached models.CachedResolution) error
}

// EngineOpts tunes cooldown, breaker, and retry behavior. Zero values select
// the defaults documented on each field.
type EngineOpts struct {
	Cooldown     time.Duration   // provider cooldown after a limit signal (default 120s)
	BreakerPause time.Duration   // global pause when the whole primary set is cooling (default 5m)
	MaxAttempts  int             // resolution attempts per track (default 3)
	Backoff      []time.Duration // per-attempt retry waits (default 30s, 60s)
	BackoffCap   time.Duration   // ceiling for escalated waits (default 120s)
	TieBreak     string          // "earliest" (default) or "latest" published date wins
	Logger       *log.Logger
}

func (o EngineOpts) withDefaults() EngineOpts {
	if o.Cooldown <= 0 {
		o.Cooldown = providers.DefaultCooldown
	}
	if o.BreakerPause <= 0 {
		o.BreakerPause = 5 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if len(o.Backoff) == 0 {
		o.Backoff = []time.Duration{30 * time.Second, 60 * time.Second}
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 120 * time.Second
	}
	if o.TieBreak == "" {
		o.TieBreak = "earliest"
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// Engine resolves one track at a time. The cooldown tracker is the only
// state shared with concurrent dispatches; everything else is per-track.
type Engine struct {
	primary   []providers.Resolver
	fallback  []providers.Resolver
	cooldowns *providers.CooldownTracker
	extractor PageExtractor
	cache     ResolutionCache
	opts      EngineOpts
	logger    *log.Logger

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// NewEngine creates an Engine dispatching to the given primary set together
// and the fallbacks sequentially.
func NewEngine(primary, fallback []providers.Resolver, cooldowns *providers.CooldownTracker, extractor PageExtractor, opts EngineOpts) *Engine {
	if cooldowns == nil {
		cooldowns = providers.NewCooldownTracker()
	}
	opts = opts.withDefaults()

	return &Engine{
		primary:   primary,
		fallback:  fallback,
		cooldowns: cooldowns,
		extractor: extractor,
		opts:      opts,
		logger:    opts.Logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// SetCache attaches a resolution cache. A nil cache disables caching.
func (e *Engine) SetCache(cache ResolutionCache) {
	e.cache = cache
}

// Process resolves one track and always returns exactly one TrackUpdate:
// found genres, or an empty list when every avenue failed.
func (e *Engine) Process(ctx context.Context, item models.TrackItem) models.TrackUpdate {
	if cached := e.lookupCache(item); cached != nil {
		return models.TrackUpdate{
			ISRC:      item.ISRC,
			TrackID:   item.ID,
			Genres:    models.EncodeGenres(cached.Genres),
			UpdatedAt: e.now().Unix(),
		}
	}

	sourceURL := item.SpotifyURL()

	var best *models.TrackMetadata
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		meta, limited := e.attempt(ctx, sourceURL)
		if meta != nil {
			best = meta
			break
		}
		if !limited {
			// No mapping anywhere and nobody throttled us: a normal,
			// non-retryable outcome.
			break
		}
		if attempt < e.opts.MaxAttempts {
			wait := e.backoff(attempt)
			e.logger.Warn("rate limited, backing off", "track", item.ID, "attempt", attempt, "wait", wait)
			e.sleep(ctx, wait)
		}
	}

	update := models.TrackUpdate{
		ISRC:      item.ISRC,
		TrackID:   item.ID,
		Genres:    "[]",
		UpdatedAt: e.now().Unix(),
	}

	cached := models.CachedResolution{TrackID: item.ID, ISRC: item.ISRC, UpdatedAt: update.UpdatedAt}
	if best != nil {
		update.Genres = models.EncodeGenres(best.Genres)
		cached.URL = best.URL
		cached.PublishedDate = best.PublishedDate
		cached.Genres = best.Genres
		e.logger.Info("resolved", "track", item.ID, "date", best.PublishedDate, "genres", best.Genres)
	} else {
		e.logger.Info("no metadata found", "track", item.ID)
	}

	e.storeCache(cached)
	return update
}

// attempt runs one select→dispatch→merge pass. limited reports whether any
// provider signalled a hard or soft rate limit during the pass.
func (e *Engine) attempt(ctx context.Context, sourceURL string) (best *models.TrackMetadata, limited bool) {
	available := e.availablePrimaries()

	if len(e.primary) > 0 && len(available) == 0 {
		// Every primary is cooling at once: pause the whole orchestrator
		// rather than burning fallbacks against a throttled ecosystem.
		e.logger.Warn("all primary providers on cooldown, pausing", "pause", e.opts.BreakerPause)
		e.sleep(ctx, e.opts.BreakerPause)
		available = e.availablePrimaries()
	}

	resolutions := e.fanOut(ctx, available, sourceURL)

	var links []models.ResolvedLink
	for _, res := range resolutions {
		switch {
		case res.Status == providers.StatusFound:
			links = append(links, models.ResolvedLink{Provider: string(res.Provider), URL: res.URL})
		case res.Limited():
			e.markLimited(res)
			limited = true
		}
	}

	if len(links) == 0 && !limited {
		for _, fb := range e.fallback {
			if !e.cooldowns.Available(fb.ID()) {
				continue
			}
			res := fb.Resolve(ctx, sourceURL)
			if res.Limited() {
				e.markLimited(res)
				limited = true
				continue
			}
			if res.Status == providers.StatusFound {
				links = append(links, models.ResolvedLink{Provider: string(res.Provider), URL: res.URL})
				break
			}
		}
	}

	return e.scrapeAndMerge(ctx, links), limited
}

// availablePrimaries filters the primary set by cooldown state.
func (e *Engine) availablePrimaries() []providers.Resolver {
	var available []providers.Resolver
	for _, r := range e.primary {
		if e.cooldowns.Available(r.ID()) {
			available = append(available, r)
		}
	}
	return available
}

// fanOut dispatches the given resolvers concurrently, one goroutine each,
// and joins before returning. Workers write only to their own result slot;
// the cooldown tracker is the sole shared state and guards itself.
func (e *Engine) fanOut(ctx context.Context, resolvers []providers.Resolver, sourceURL string) []providers.Resolution {
	results := make([]providers.Resolution, len(resolvers))

	var wg sync.WaitGroup
	for i, r := range resolvers {
		wg.Add(1)
		go func(slot int, resolver providers.Resolver) {
			defer wg.Done()
			results[slot] = resolver.Resolve(ctx, sourceURL)
		}(i, r)
	}
	wg.Wait()

	return results
}

func (e *Engine) markLimited(res providers.Resolution) {
	e.cooldowns.MarkLimited(res.Provider, e.opts.Cooldown)
	if res.Status == providers.StatusSoftLimited {
		e.logger.Warn("provider soft limited", "provider", res.Provider)
	} else {
		e.logger.Warn("provider rate limited", "provider", res.Provider)
	}
}

// scrapeAndMerge fetches metadata for every distinct canonical URL and picks
// the winner by the configured tie-break rule.
func (e *Engine) scrapeAndMerge(ctx context.Context, links []models.ResolvedLink) *models.TrackMetadata {
	seen := map[string]bool{}
	var best *models.TrackMetadata

	for _, link := range links {
		canonical := e.extractor.CanonicalURL(link.URL)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true

		meta := e.extractor.Fetch(ctx, canonical)
		if meta == nil {
			continue
		}
		if best == nil || e.wins(meta, best) {
			best = meta
		}
	}

	return best
}

// wins reports whether challenger beats incumbent under the tie-break rule.
// A missing date sorts after all present dates.
func (e *Engine) wins(challenger, incumbent *models.TrackMetadata) bool {
	cmp := strings.Compare(challenger.SortDate(), incumbent.SortDate())
	if e.opts.TieBreak == "latest" {
		return cmp > 0
	}
	return cmp < 0
}

// backoff returns the wait before the next attempt: the configured schedule
// for its length, then doubling up to the cap.
func (e *Engine) backoff(attempt int) time.Duration {
	if attempt <= len(e.opts.Backoff) {
		return e.opts.Backoff[attempt-1]
	}

	wait := e.opts.Backoff[len(e.opts.Backoff)-1]
	for i := len(e.opts.Backoff); i < attempt; i++ {
		wait *= 2
	}
	if wait > e.opts.BackoffCap {
		wait = e.opts.BackoffCap
	}
	return wait
}

func (e *Engine) lookupCache(item models.TrackItem) *models.CachedResolution {
	if e.cache == nil {
		return nil
	}

	cached, err := e.cache.Get(item.ID)
	if err != nil {
		e.logger.Warn("cache lookup failed", "track", item.ID, "error", err)
		return nil
	}
	if cached != nil {
		e.logger.Debug("cache hit", "track", item.ID)
	}
	return cached
}

func (e *Engine) storeCache(cached models.CachedResolution) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Put(cached); err != nil {
		e.logger.Warn("cache write failed", "track", cached.TrackID, "error", err)
	}
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
