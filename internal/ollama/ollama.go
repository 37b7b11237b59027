package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/artifex-heritage/artifex/internal/providers"
)

// Ollama is a provider for a local or self-hosted Ollama server
type Ollama struct {
	URL        string
	httpClient *http.Client
}

// New returns a new Ollama provider reading OLLAMA_URL
func New() *Ollama {
	ollamaURL := os.Getenv("OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return &Ollama{
		URL:        ollamaURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Complete answers the prompt using the Ollama generate API
func (o *Ollama) Complete(ctx context.Context, config providers.Config) (string, error) {
	url := o.URL + "/api/generate"

	requestBody, err := json.Marshal(map[string]any{
		"model":  config.Model,
		"system": config.System,
		"prompt": config.Prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
