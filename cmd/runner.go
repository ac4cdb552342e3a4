package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/bankbunk/apple/internal/extract"
	"github.com/bankbunk/apple/internal/providers"
	"github.com/bankbunk/apple/internal/queue"
	"github.com/bankbunk/apple/internal/repositories"
	"github.com/bankbunk/apple/internal/shared"
	"github.com/bankbunk/apple/internal/tasks"
)

const (
	resolverTimeout = 10 * time.Second
	scrapeTimeout   = 15 * time.Second
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: resolverTimeout}
	}

	return &Runner{
		config:     opts.Config,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, resolveCommand, probeCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the effective configuration for a command: the file
// named by the --config flag when it exists, the Runner's config otherwise.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	path := cmd.String("config")
	if path == "" {
		return r.config
	}

	if _, err := os.Stat(path); err != nil {
		return r.config
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return r.config
	}
	return config
}

// buildResolvers partitions the enabled providers into the concurrent
// primary set and the sequential fallback chain.
func (r *Runner) buildResolvers(config *shared.Config) (primary, fallback []providers.Resolver) {
	entries := []struct {
		conf  shared.ProviderConfig
		build func() providers.Resolver
	}{
		{config.Providers.Odesli, func() providers.Resolver { return providers.NewOdesli(r.httpClient, "", "") }},
		{config.Providers.Songlink, func() providers.Resolver { return providers.NewSonglink(r.httpClient, "") }},
		{config.Providers.Tapelink, func() providers.Resolver { return providers.NewTapelink(r.httpClient, "") }},
		{config.Providers.Squigly, func() providers.Resolver { return providers.NewSquigly(r.httpClient, "") }},
	}

	for _, entry := range entries {
		if !entry.conf.Enabled {
			continue
		}
		if entry.conf.Role == "fallback" {
			fallback = append(fallback, entry.build())
		} else {
			primary = append(primary, entry.build())
		}
	}

	return primary, fallback
}

// newExtractor builds the Apple Music page extractor from config.
func (r *Runner) newExtractor(config *shared.Config) *extract.Extractor {
	client := &http.Client{Timeout: scrapeTimeout}
	return extract.New(client, config.Extract.KeepWhole, config.Extract.Storefront)
}

// newEngine assembles the resolution engine, attaching the sqlite cache when
// enabled. The returned closer releases the cache database.
func (r *Runner) newEngine(config *shared.Config) (*tasks.Engine, func(), error) {
	primary, fallback := r.buildResolvers(config)

	opts := tasks.EngineOpts{
		Cooldown:     time.Duration(config.Providers.CooldownSeconds) * time.Second,
		BreakerPause: time.Duration(config.Providers.BreakerPauseSeconds) * time.Second,
		MaxAttempts:  config.Providers.MaxAttempts,
		BackoffCap:   time.Duration(config.Providers.BackoffCapSeconds) * time.Second,
		TieBreak:     config.Providers.TieBreak,
		Logger:       r.logger,
	}
	for _, seconds := range config.Providers.BackoffSeconds {
		opts.Backoff = append(opts.Backoff, time.Duration(seconds)*time.Second)
	}

	engine := tasks.NewEngine(primary, fallback, providers.NewCooldownTracker(), r.newExtractor(config), opts)

	closer := func() {}
	if config.Cache.Enabled && config.Cache.Path != "" {
		db, err := r.openCache(config)
		if err != nil {
			return nil, nil, err
		}

		repo, err := repositories.NewResolutionRepository(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		engine.SetCache(repo)
		closer = func() { db.Close() }
	}

	return engine, closer, nil
}

func (r *Runner) openCache(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Cache.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Cache.MaxOpenConns, config.Cache.MaxIdleConns)
	return db, nil
}

// newQueue builds the work queue client from config and shard settings.
func (r *Runner) newQueue(config *shared.Config) *queue.Client {
	client := queue.NewClient(config.Queue.BaseURL, nil)
	client.SetShard(config.Queue.WorkerIndex, config.Queue.TotalWorkers)
	return client
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
