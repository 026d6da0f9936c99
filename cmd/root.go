package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/shelf/internal/config"
	"github.com/agentic-research/shelf/internal/store"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Shelf: a local store for research papers, grants and job postings",
	Long: `Shelf keeps papers, grants and job postings found during research in
local SQLite databases. Items are deduplicated by their natural identifier,
tagged, annotated and searched without any network service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working dir: %w", err)
		}
		c, err := config.Resolve(configPath, wd)
		if err != nil {
			return err
		}
		level, err := c.Level()
		if err != nil {
			return err
		}
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		if c.Source != "" {
			logger.Debug("loaded config", "path", c.Source)
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: shelf.yaml upward, then ~/"+config.UserFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// openLibrary opens every configured database.
func openLibrary() (*store.Library, error) {
	paths, err := cfg.Paths()
	if err != nil {
		return nil, err
	}
	return store.OpenLibrary(paths,
		store.WithLogger(logger),
		store.WithBusyTimeout(cfg.Storage.BusyTimeout.Duration),
		store.WithRetry(cfg.Storage.MaxRetries, 0),
	)
}

// withLibrary opens the library and runs fn. A Close error is returned
// when fn succeeded.
func withLibrary(fn func(*store.Library) error) (err error) {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := lib.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(lib)
}

// withCollection opens the library, resolves kind and runs fn.
func withCollection(kind string, fn func(*store.Collection) error) error {
	return withLibrary(func(lib *store.Library) error {
		c, err := lib.Collection(kind)
		if err != nil {
			return err
		}
		return fn(c)
	})
}
