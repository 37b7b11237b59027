package cmd

import (
	"log/slog"
	"os"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/config"
	"github.com/artifex-heritage/artifex/internal/frontql"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel   string
	configPath string
}

var rootOpts rootOptions

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifex",
		Short: "Museum catalogue search, filtering and curation",
		Long: `Artifex serves the collections catalogue of the museum showcase.

It fetches artifact records from the hosted backend, keeps a snapshot in memory and
answers search, suggestion and category queries over HTTP and on the command line.
Curators can create, edit and delete artifacts and upload images and audio guides.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := rootOpts.logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: config.ParseLevel(level),
			})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&rootOpts.configPath, "config", "", "Optional YAML file overlaying the environment")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newArtifactCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newAskCmd())

	return cmd
}

func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	return config.Load(rootOpts.configPath, overrides...)
}

func snapshotOverride(path string) func(*config.Config) {
	return func(c *config.Config) {
		if path != "" {
			c.Catalogue.SnapshotPath = path
		}
	}
}

func newFrontQLClient(cfg *config.Config) *frontql.Client {
	if cfg.FrontQL.BaseURL == "" {
		return nil
	}
	return frontql.NewClient(cfg.FrontQL.BaseURL, cfg.FrontQL.Token, cfg.FrontQL.App)
}

// newFetcher reads from the snapshot file when one is configured, else from the backend.
func newFetcher(cfg *config.Config, client *frontql.Client) *catalogue.Fetcher {
	var source catalogue.Source
	if cfg.Catalogue.SnapshotPath != "" {
		source = &catalogue.FileSource{Path: cfg.Catalogue.SnapshotPath}
	} else {
		source = &catalogue.RemoteSource{
			Client:     client,
			Collection: cfg.FrontQL.CollectionsResource,
			PageSize:   cfg.Catalogue.PageSize,
		}
	}
	return catalogue.NewFetcher(source, cfg.Catalogue.FetchTimeout, cfg.Catalogue.FetchRetries)
}
