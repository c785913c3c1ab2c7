package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/example/lingofeed/internal/bot"
	"github.com/example/lingofeed/internal/config"
	"github.com/example/lingofeed/internal/database"
	"github.com/example/lingofeed/internal/excel"
	"github.com/example/lingofeed/internal/logging"
	"github.com/example/lingofeed/internal/scheduler"
	"github.com/example/lingofeed/pkg/models"
)

const shutdownTimeout = 10 * time.Second

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log)
	return cfg, nil
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, background jobs and metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.WithComponent("serve")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close storage")
			}
		}()

		jobs := scheduler.New(a.tracker, a.graph, cfg.Scheduler, logging.WithComponent("scheduler"))

		var b *bot.Bot
		if cfg.Telegram.Token != "" {
			api, err := bot.Connect(cfg.Telegram.Token)
			if err != nil {
				return err
			}
			deps := bot.Deps{Feed: a.feed, Tracker: a.tracker, Profiles: a.storage}
			if a.db != nil {
				deps.Reviews = a.db.Reviews
				deps.Words = a.db.Words
			}
			b = bot.New(api, deps, cfg.Telegram, logging.WithComponent("bot"))
			jobs.WithNotifier(b)
			logger.Info().Str("username", api.Self.UserName).Msg("authorized on Telegram")
		} else {
			logger.Warn().Msg("no Telegram token configured, bot disabled")
		}

		if err := jobs.Start(ctx); err != nil {
			return err
		}

		var srv *http.Server
		if cfg.Metrics.Addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("metrics server failed")
				}
			}()
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
		}

		if b != nil {
			if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("bot stopped")
			}
		} else {
			<-ctx.Done()
		}
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown failed")
			}
		}
		stats := jobs.Stop(shutdownCtx)
		logger.Info().Int("persisted", stats.Persisted).Int("pending", stats.Pending).Msg("signals flushed")
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import content or vocabulary from an .xlsx or .csv file",
	Long: `Import content or vocabulary from an .xlsx or .csv file.

Examples:
  lingofeed import catalog.xlsx
  lingofeed import words.csv --kind words
  lingofeed import catalog.xlsx --sheet Podcasts`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		sheet, _ := cmd.Flags().GetString("sheet")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Type == database.TypeMemory {
			return errors.New("import needs a persistent database, memory storage is discarded on exit")
		}
		db, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		store := database.NewStore(db)
		defer store.Close()

		icfg := excel.DefaultImportConfig()
		icfg.FilePath = args[0]
		icfg.SheetName = sheet

		var result *excel.ImportResult
		switch kind {
		case "content":
			result, err = excel.ImportContent(cmd.Context(), icfg, store.Content)
		case "words":
			result, err = excel.ImportWords(cmd.Context(), icfg, store.Words)
		default:
			return fmt.Errorf("unknown kind %q, want content or words", kind)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d rows: %d imported, %d skipped\n",
			result.TotalProcessed, result.Imported, result.Skipped)
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
		}
		return nil
	},
}

// --- feed ---

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print a user's feed as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		position, _ := cmd.Flags().GetInt("position")
		withSRS, _ := cmd.Flags().GetBool("srs")
		sortMode, _ := cmd.Flags().GetString("sort")
		types, _ := cmd.Flags().GetStringSlice("types")
		topics, _ := cmd.Flags().GetStringSlice("topics")
		query, _ := cmd.Flags().GetString("query")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		req := models.FeedRequest{
			UserID:          user,
			Limit:           limit,
			SessionPosition: position,
			IncludeSRS:      withSRS,
			Topics:          topics,
			SearchQuery:     query,
			SortMode:        models.SortMode(sortMode),
		}
		for _, t := range types {
			req.ContentTypes = append(req.ContentTypes, models.ContentType(strings.TrimSpace(t)))
		}

		resp, err := a.feed.GenerateFeed(cmd.Context(), req)
		a.tracker.Close(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	importCmd.Flags().String("kind", "content", "what the file holds: content or words")
	importCmd.Flags().String("sheet", "", "sheet name (default: first sheet)")

	feedCmd.Flags().String("user", "", "user ID")
	feedCmd.Flags().Int("limit", 0, "number of items (default: feed.default_limit)")
	feedCmd.Flags().Int("position", 0, "session position")
	feedCmd.Flags().Bool("srs", false, "include due review cards")
	feedCmd.Flags().String("sort", "", "recommended, recent or popular")
	feedCmd.Flags().StringSlice("types", nil, "content types to include")
	feedCmd.Flags().StringSlice("topics", nil, "topics to include")
	feedCmd.Flags().String("query", "", "search query")
	_ = feedCmd.MarkFlagRequired("user")
}
