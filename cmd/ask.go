package cmd

import (
	"fmt"
	"strings"

	"github.com/artifex-heritage/artifex/internal/config"
	"github.com/artifex-heritage/artifex/internal/storage"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var provider string
	var model string
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the visitor guide about the collection",
		Long: `Loads the catalogue and asks the configured LLM provider (Ollama, OpenAI or
Gemini) to answer using the artifacts the question mentions.`,
		Example: `  # Ask with the default provider
  artifex ask "What are the masks of Majuli made from?"

  # Ask with OpenAI
  artifex ask "Which satras are in the collection?" --provider openai --model gpt-4o`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(snapshotOverride(snapshotPath), func(c *config.Config) {
				if provider != "" {
					c.Guide.Provider = provider
				}
				if model != "" {
					c.Guide.Model = model
				}
				c.Guide.RatePerMinute = 0
			})
			if err != nil {
				return err
			}

			snapshots := storage.NewSnapshotStore()
			defer snapshots.Close()
			if err := snapshots.Refresh(cmd.Context(), newFetcher(cfg, newFrontQLClient(cfg))); err != nil {
				return err
			}

			svc, err := newGuide(cfg, snapshots)
			if err != nil {
				return err
			}
			answer, err := svc.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			if len(answer.References) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nReferences: %s (%s/%s)\n", strings.Join(answer.References, ", "), answer.Provider, answer.Model)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (ollama, openai, gemini); defaults to GUIDE_PROVIDER")
	cmd.Flags().StringVar(&model, "model", "", "Model name; defaults to the provider's model")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Read an exported snapshot instead of the remote backend")

	return cmd
}
