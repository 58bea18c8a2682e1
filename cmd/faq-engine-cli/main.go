// Package main provides the FAQ engine CLI entrypoint.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/assist"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/cache"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/config"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/feedback"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/matching"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/storage"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "faq-engine-cli",
	Short: "FAQ engine CLI for catalog management, matching and escalations",
	Long: `FAQ engine CLI manages the scooter support knowledge base.

Use this tool to:
- Apply database migrations
- Import and export the FAQ catalog
- Try searches and chat queries against the live corpus
- Record ratings and read FAQ usage
- Work the escalation queue

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			Output:      os.Stderr,
			ServiceName: "faq-engine-cli",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newRateCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newThresholdCmd())
	rootCmd.AddCommand(newEscalationsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles the services a command needs.
type runtime struct {
	db          *sql.DB
	repos       *storage.Repositories
	cache       cache.Client
	engine      *matching.Engine
	feedback    *feedback.Service
	escalations *escalation.Service
	assistant   *assist.Assistant
	ui          *UI
}

// Close releases the runtime's connections and flushes the UI.
func (rt *runtime) Close() {
	rt.ui.Close()
	if rt.cache != nil {
		rt.cache.Close()
	}
	rt.db.Close()
}

// openRuntime opens the configured database, applies pending migrations and
// wires the engine services.
func openRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := storage.NewMigrationManager(db, cfg.Database.Driver, logger).Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	repos := storage.NewRepositories(db, cfg.Database.Driver, cfg.Matching.ConfidenceThreshold)

	// Only a shared cache matters here; the CLI process is short-lived.
	var (
		cacheClient cache.Client
		publisher   cache.Publisher
	)
	if cfg.Cache.Driver == "redis" {
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, running without shared cache")
		} else {
			cacheClient = redisClient
			if cfg.Escalation.PublishEvents {
				publisher = redisClient
			}
		}
	}

	pool := matching.NewScoringPool(nil, cfg.Matching.Workers, cfg.Matching.Timeout, logger, nil)
	engine := matching.NewEngine(logger, repos.FAQs, repos.Settings, matching.NewMatcher(pool, logger), cacheClient, nil,
		matching.EngineConfig{
			DefaultThreshold: cfg.Matching.ConfidenceThreshold,
			SearchLimit:      cfg.Matching.SearchLimit,
			CacheResults:     false,
		})

	fb := feedback.NewService(logger, repos.FAQs, repos.FAQs, nil)
	escalations := escalation.NewService(logger, repos.Escalations, publisher, cfg.Escalation.Channel, nil)

	return &runtime{
		db:          db,
		repos:       repos,
		cache:       cacheClient,
		engine:      engine,
		feedback:    fb,
		escalations: escalations,
		assistant:   assist.NewAssistant(logger, engine, fb, escalations),
		ui:          NewUI(cmd.OutOrStdout(), outputJSON, noColor),
	}, nil
}
