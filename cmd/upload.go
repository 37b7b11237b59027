package cmd

import (
	"fmt"
	"strings"

	"github.com/artifex-heritage/artifex/internal/upload"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var kind string
	var folder string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image or audio file to the file host",
		Long: `Uploads a local file to the configured file host and prints the stored path
and the public URL browsers load it from.

Files larger than 25 MB are rejected.`,
		Example: `  # Artifact photo
  artifex upload ./raas-mask.jpg --kind image --folder artifacts

  # Audio guide for artifact 42 in Assamese
  artifex upload ./42-as.mp3 --kind audio --folder audio/42/as`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := upload.ParseKind(kind)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Upload.URL == "" {
				return upload.ErrNotConfigured
			}

			folder = strings.Trim(folder, "/")
			if folder == "" {
				folder = "artifacts"
				if k == upload.KindAudio {
					folder = "audio"
				}
			}

			path, err := uploadPath(cmd, cfg, args[0], k, folder)
			if err != nil {
				return err
			}

			client := upload.NewClient(cfg.Upload.URL, cfg.Upload.Username, cfg.Upload.Password, cfg.Upload.ImageBaseURL)
			fmt.Fprintf(cmd.OutOrStdout(), "Path: %s\nURL:  %s\n", path, client.PublicURL(path))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(upload.KindImage), "File kind (image, audio)")
	cmd.Flags().StringVar(&folder, "folder", "", "Destination folder on the file host")

	return cmd
}
