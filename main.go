package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tylerlaw/portfolio/internal/app"
	"github.com/tylerlaw/portfolio/internal/config"
	"github.com/tylerlaw/portfolio/internal/database"
	"github.com/tylerlaw/portfolio/internal/gallery"
	"github.com/tylerlaw/portfolio/internal/logging"
	"github.com/tylerlaw/portfolio/internal/media"
	"github.com/tylerlaw/portfolio/internal/model"
	"go.uber.org/zap"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "portfolio",
	Short:        "Portfolio gallery backend",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (environment variables override it)")
	sectionsCmd.AddCommand(sectionsListCmd, sectionsSeedCmd, sectionsDeleteCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, sectionsCmd)
}

// load reads the config and builds the logger.
func load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore opens and migrates the configured database. The caller must close it.
func openStore(ctx context.Context) (database.Store, *config.Config, *zap.Logger, error) {
	cfg, logger, err := load()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := database.NewStoreFromConfig(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store, cfg, logger, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize app", zap.Error(err))
			return err
		}
		defer a.Close()
		return a.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", store.DatabaseType())
		return nil
	},
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Manage gallery sections",
}

var sectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sections",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		sections, err := store.ListSections(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tTITLE\tORDER\tUPDATED")
		for _, s := range sections {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Slug, s.Title, s.SortOrder, s.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

type seedEntry struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
}

var sectionsSeedCmd = &cobra.Command{
	Use:   "seed <file.json>",
	Short: "Create or update sections from a JSON list of {slug, title, sort_order}",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var entries []seedEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		store, _, logger, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now().UTC()
		for _, e := range entries {
			if e.Slug == "" {
				return fmt.Errorf("seed entry without slug: %+v", e)
			}
			title := e.Title
			if title == "" {
				title = e.Slug
			}
			err := store.SeedSection(cmd.Context(), model.Section{
				Slug:      e.Slug,
				Title:     title,
				SortOrder: e.SortOrder,
				UpdatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("seed %s: %w", e.Slug, err)
			}
			logger.Info("section seeded", zap.String("slug", e.Slug), zap.Int("sort_order", e.SortOrder))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sections\n", len(entries))
		return nil
	},
}

var sectionsDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a section with its items and stored files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, logger, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		storage, err := media.NewStorageFromConfig(cmd.Context(), cfg.Media)
		if err != nil {
			return fmt.Errorf("open media storage: %w", err)
		}
		if err := gallery.NewService(store, storage, logger).DeleteSection(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted section %s\n", args[0])
		return nil
	},
}
