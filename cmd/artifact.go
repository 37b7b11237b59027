package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/config"
	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/artifex-heritage/artifex/internal/upload"
	"github.com/spf13/cobra"
)

var errNoBackend = errors.New("FRONTQL_URL is required for artifact editing")

type artifactFlags struct {
	name     string
	category string
	keywords []string
	imageURL string
	image    string
}

func (f *artifactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Artifact name")
	cmd.Flags().StringVar(&f.category, "category", "", "Category, one of the fixed catalogue categories")
	cmd.Flags().StringSliceVarP(&f.keywords, "keyword", "k", nil, "Keyword (repeatable or comma-separated)")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "Existing image path to reference")
	cmd.Flags().StringVar(&f.image, "image", "", "Local image file to upload to the artifacts folder")
}

func (f *artifactFlags) input() models.ArtifactInput {
	return models.ArtifactInput{
		Name:     f.name,
		Category: f.category,
		Keywords: f.keywords,
		ImageURL: f.imageURL,
	}
}

func newArtifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Create, update and delete artifacts",
		Long: `Curator commands that write artifacts to the backend.

Writes go straight to the backend; a running server picks them up on its next refresh.`,
	}

	cmd.AddCommand(newArtifactCreateCmd())
	cmd.AddCommand(newArtifactUpdateCmd())
	cmd.AddCommand(newArtifactDeleteCmd())

	return cmd
}

func newArtifactCreateCmd() *cobra.Command {
	var flags artifactFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an artifact",
		Example: `  artifex artifact create --name "Raas Mask" --category Mukhas \
    --keyword mask,bamboo --image ./raas-mask.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, repo, err := artifactRepository()
			if err != nil {
				return err
			}

			in, err := catalogue.Validate(flags.input())
			if err != nil {
				return err
			}
			if flags.image != "" {
				if in.ImageURL, err = uploadImage(cmd, cfg, flags.image); err != nil {
					return err
				}
			}

			rec, err := repo.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec)
		},
	}
	flags.register(cmd)

	return cmd
}

func newArtifactUpdateCmd() *cobra.Command {
	var flags artifactFlags

	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Replace an artifact's fields",
		Example: `  artifex artifact update 42 --name "Raas Mask" --category Mukhas --keyword mask`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, repo, err := artifactRepository()
			if err != nil {
				return err
			}

			in, err := catalogue.Validate(flags.input())
			if err != nil {
				return err
			}
			if flags.image != "" {
				if in.ImageURL, err = uploadImage(cmd, cfg, flags.image); err != nil {
					return err
				}
			}

			rec, err := repo.Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec)
		},
	}
	flags.register(cmd)

	return cmd
}

func newArtifactDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, err := artifactRepository()
			if err != nil {
				return err
			}
			if err := repo.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted artifact %s\n", args[0])
			return nil
		},
	}
}

func artifactRepository() (*config.Config, *catalogue.Repository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client := newFrontQLClient(cfg)
	if client == nil {
		return nil, nil, errNoBackend
	}
	return cfg, catalogue.NewRepository(client, cfg.FrontQL.CollectionsResource), nil
}

func uploadImage(cmd *cobra.Command, cfg *config.Config, path string) (string, error) {
	return uploadPath(cmd, cfg, path, upload.KindImage, "artifacts")
}

// uploadPath sends a local file to the file host, reporting progress on stderr.
func uploadPath(cmd *cobra.Command, cfg *config.Config, path string, kind upload.Kind, folder string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	client := upload.NewClient(cfg.Upload.URL, cfg.Upload.Username, cfg.Upload.Password, cfg.Upload.ImageBaseURL)
	stderr := cmd.ErrOrStderr()
	stored, err := client.Upload(cmd.Context(), upload.Request{
		Kind:     kind,
		Folder:   folder,
		Filename: path,
		Body:     file,
		Progress: func(sent, total int64) {
			fmt.Fprintf(stderr, "\rUploading %s: %d%%", path, sent*100/max(total, 1))
			if sent == total {
				fmt.Fprintln(stderr)
			}
		},
	})
	if err != nil {
		return "", err
	}
	return stored, nil
}

func printRecord(w io.Writer, rec models.CatalogueRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
