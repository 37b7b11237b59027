package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/gemini"
	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/artifex-heritage/artifex/internal/ollama"
	"github.com/artifex-heritage/artifex/internal/openai"
	"github.com/artifex-heritage/artifex/internal/providers"
	"golang.org/x/time/rate"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrBusy          = errors.New("guide is busy, try again shortly")
	ErrNoCatalogue   = errors.New("catalogue is not available")
)

// MaxContextRecords caps how many artifacts are quoted to the model.
const MaxContextRecords = 8

const minWordLen = 3

const systemPrompt = `You are the visitor guide of a museum of Majuli's heritage.
Answer in two to four sentences using only the artifacts listed in the prompt.
If none of them answer the question, say that the collection does not cover it.`

var stopWords = map[string]struct{}{
	"about": {}, "and": {}, "are": {}, "can": {}, "does": {}, "for": {}, "from": {},
	"how": {}, "tell": {}, "that": {}, "the": {}, "this": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {}, "you": {},
}

// CatalogueReader gives the guide read access to the current snapshot.
type CatalogueReader interface {
	Snapshot() (catalogue.Catalogue, catalogue.Status)
}

// Answer is the guide's reply to one question.
type Answer struct {
	Question   string   `json:"question"`
	Text       string   `json:"answer"`
	References []string `json:"references"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
}

// Options configures a Service.
type Options struct {
	Provider      string
	Model         string
	Temperature   float64
	RatePerMinute int
	Burst         int
}

// Service answers visitor questions grounded in the catalogue.
type Service struct {
	provider providers.Provider
	reader   CatalogueReader
	opts     Options
	limiter  *rate.Limiter
}

// NewService creates a guide. A non-positive RatePerMinute disables rate limiting.
func NewService(provider providers.Provider, reader CatalogueReader, opts Options) *Service {
	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Limit(float64(opts.RatePerMinute) / 60.0)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	if opts.Model == "" {
		opts.Model = DefaultModel(opts.Provider)
	}
	return &Service{
		provider: provider,
		reader:   reader,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// NewProvider builds the named provider.
func NewProvider(name string) (providers.Provider, error) {
	switch name {
	case "ollama", "":
		return ollama.New(), nil
	case "openai":
		return openai.New(), nil
	case "gemini":
		return gemini.New(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// DefaultModel picks the model for provider, honouring <PROVIDER>_MODEL.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o-mini"
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-1.5-flash"
	default:
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "llama3.2"
	}
}

// Ask answers question using the artifacts it mentions.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if !s.limiter.Allow() {
		return nil, ErrBusy
	}

	records, status := s.reader.Snapshot()
	if !status.Loaded && status.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCatalogue, status.Err)
	}

	selected := SelectRecords(records, question)
	refs := make([]string, 0, len(selected))
	for _, rec := range selected {
		refs = append(refs, rec.ID)
	}

	start := time.Now()
	text, err := s.provider.Complete(ctx, providers.Config{
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		System:      systemPrompt,
		Prompt:      BuildPrompt(question, selected),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get answer from %s: %w", s.opts.Provider, err)
	}

	slog.Info("Guide answered", "provider", s.opts.Provider, "model", s.opts.Model, "references", len(refs), "duration", time.Since(start))

	return &Answer{
		Question:   question,
		Text:       strings.TrimSpace(text),
		References: refs,
		Provider:   s.opts.Provider,
		Model:      s.opts.Model,
	}, nil
}

// SelectRecords returns up to MaxContextRecords records, in catalogue order,
// that match any significant word of the question.
func SelectRecords(records catalogue.Catalogue, question string) []models.CatalogueRecord {
	matched := make(map[string]struct{})
	for _, word := range questionWords(question) {
		for _, rec := range catalogue.Filter(records, catalogue.Query{FreeText: word}) {
			matched[rec.ID] = struct{}{}
		}
	}

	out := make([]models.CatalogueRecord, 0, MaxContextRecords)
	for _, rec := range records {
		if _, ok := matched[rec.ID]; !ok {
			continue
		}
		out = append(out, rec)
		if len(out) == MaxContextRecords {
			break
		}
	}
	return out
}

func questionWords(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minWordLen {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}

// BuildPrompt lists the selected artifacts followed by the question.
func BuildPrompt(question string, records []models.CatalogueRecord) string {
	var sb strings.Builder
	if len(records) == 0 {
		sb.WriteString("No artifacts in the collection match this question.\n")
	} else {
		sb.WriteString("Artifacts in the collection:\n")
		for _, rec := range records {
			fmt.Fprintf(&sb, "- %s (%s)", rec.Name, rec.Category)
			if len(rec.Keywords) > 0 {
				fmt.Fprintf(&sb, ": %s", strings.Join(rec.Keywords, ", "))
			}
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", question)
	return sb.String()
}
