package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type searchOutput struct {
	Status   catalogue.ViewState `json:"status" yaml:"status"`
	Message  string              `json:"message,omitempty" yaml:"message,omitempty"`
	Search   string              `json:"search" yaml:"search"`
	Category string              `json:"category" yaml:"category"`
	Total    int                 `json:"total" yaml:"total"`
	Sections []searchSection     `json:"sections" yaml:"sections"`
}

type searchSection struct {
	Title string                   `json:"title" yaml:"title"`
	Items []models.CatalogueRecord `json:"items" yaml:"items"`
}

func newSearchCmd() *cobra.Command {
	var category string
	var format string
	var snapshotPath string
	var preview int

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search and filter the catalogue",
		Long: `Fetches the catalogue once, filters it by free text and category and prints
the matches grouped by category.

Free text matches names, categories and keywords, ignoring case. The command
exits non-zero only when the catalogue could not be loaded.`,
		Example: `  # Everything, grouped by category
  artifex search

  # Masks among the Mukhas, as JSON
  artifex search mask --category Mukhas --format json

  # Search an exported snapshot
  artifex search satra --snapshot catalogue.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := catalogue.Query{Category: category}
			if len(args) == 1 {
				q.FreeText = args[0]
			}

			records, status, err := fetchCatalogue(cmd.Context(), snapshotPath)
			if err != nil {
				return err
			}

			view := catalogue.BuildView(records, status, q)
			if err := printView(cmd.OutOrStdout(), view, format, preview); err != nil {
				return err
			}
			if view.Retryable() {
				return status.Err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", catalogue.AllCategories, "Category to restrict to")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Read an exported snapshot instead of the remote backend")
	cmd.Flags().IntVar(&preview, "preview", 0, "Items to print per category in text output (0 for all)")

	return cmd
}

func newSuggestCmd() *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "suggest <text>",
		Short: "Print search suggestions for partial input",
		Example: `  # Names and categories matching "sat"
  artifex suggest sat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, status, err := fetchCatalogue(cmd.Context(), snapshotPath)
			if err != nil {
				return err
			}
			if status.Err != nil {
				return status.Err
			}

			for _, s := range catalogue.Suggest(records, args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Read an exported snapshot instead of the remote backend")

	return cmd
}

// fetchCatalogue loads the catalogue once. A fetch failure is reported in the
// returned status; the error is reserved for configuration problems.
func fetchCatalogue(ctx context.Context, snapshotPath string) (catalogue.Catalogue, catalogue.Status, error) {
	cfg, err := loadConfig(snapshotOverride(snapshotPath))
	if err != nil {
		return nil, catalogue.Status{}, err
	}

	records, err := newFetcher(cfg, newFrontQLClient(cfg)).Fetch(ctx)
	if err != nil {
		return nil, catalogue.Status{Err: err}, nil
	}
	return records, catalogue.Status{Loaded: true}, nil
}

func printView(w io.Writer, view catalogue.View, format string, preview int) error {
	switch format {
	case "text":
		printTextView(w, view, preview)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toSearchOutput(view))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(toSearchOutput(view))
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func toSearchOutput(view catalogue.View) searchOutput {
	out := searchOutput{
		Status:   view.State,
		Message:  view.Message,
		Search:   view.Query.FreeText,
		Category: view.Query.Category,
		Total:    view.Total,
		Sections: make([]searchSection, 0, len(view.Sections)),
	}
	for _, s := range view.Sections {
		out.Sections = append(out.Sections, searchSection{Title: s.Title, Items: s.Items})
	}
	return out
}

func printTextView(w io.Writer, view catalogue.View, preview int) {
	if view.State != catalogue.StateReady {
		fmt.Fprintln(w, view.Message)
		return
	}

	fmt.Fprintf(w, "%d artifact(s)\n", view.Total)
	for _, section := range view.Sections {
		fmt.Fprintf(w, "\n%s (%d)\n", section.Title, len(section.Items))
		fmt.Fprintln(w, strings.Repeat("=", len(section.Title)))

		items := section.Preview(preview)
		for _, rec := range items {
			image := rec.ImageURL
			if !rec.HasImage() {
				image = "(no image)"
			}
			fmt.Fprintf(w, "  [%s] %s  %s\n", rec.ID, rec.Name, image)
			if len(rec.Keywords) > 0 {
				fmt.Fprintf(w, "      keywords: %s\n", strings.Join(rec.Keywords, ", "))
			}
		}
		if hidden := len(section.Items) - len(items); hidden > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", hidden)
		}
	}
}
