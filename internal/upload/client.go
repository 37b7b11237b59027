package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Kind selects the form field the file host expects.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// MaxSize is the largest file the client will send.
const MaxSize = 25 * 1024 * 1024

var (
	ErrUnknownKind   = errors.New("unknown upload kind")
	ErrTooLarge      = errors.New("file too large")
	ErrNoPath        = errors.New("file host returned no path")
	ErrNotConfigured = errors.New("file upload URL is not configured")
)

// StatusError reports a non-2xx answer from the file host.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("file host returned status %d: %s", e.Code, e.Body)
}

// ParseKind validates a kind given by a user.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindImage:
		return KindImage, nil
	case KindAudio:
		return KindAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Request is one file to upload.
type Request struct {
	Kind     Kind
	Folder   string
	Filename string
	Body     io.Reader
	// Progress, if set, is called with bytes sent so far and the request size.
	Progress func(sent, total int64)
}

// Client uploads files to the external file host.
type Client struct {
	URL        string
	Username   string
	Password   string
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a file host client. baseURL is prefixed to returned paths by PublicURL.
func NewClient(url, username, password, baseURL string) *Client {
	return &Client{
		URL:      url,
		Username: username,
		Password: password,
		BaseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type uploadResponse struct {
	Files map[string]string `json:"files"`
}

// Upload sends the file and returns the path the host stored it under.
func (c *Client) Upload(ctx context.Context, req Request) (string, error) {
	if c.URL == "" {
		return "", ErrNotConfigured
	}
	if req.Kind != KindImage && req.Kind != KindAudio {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	filename := filepath.Base(req.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		filename = string(req.Kind)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("folder", req.Folder); err != nil {
		return "", fmt.Errorf("failed to write folder field: %w", err)
	}
	part, err := writer.CreateFormFile(string(req.Kind), filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(req.Body, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if n > MaxSize {
		return "", fmt.Errorf("%w (max %d MB)", ErrTooLarge, MaxSize/1024/1024)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	total := int64(buf.Len())
	var body io.Reader = &buf
	if req.Progress != nil {
		body = &progressReader{r: &buf, total: total, report: req.Progress}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.ContentLength = total
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("username", c.Username)
	httpReq.Header.Set("password", c.Password)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	path := parsed.Files[string(req.Kind)]
	if path == "" {
		return "", ErrNoPath
	}

	slog.Info("File uploaded", "kind", req.Kind, "folder", req.Folder, "path", path, "bytes", n, "duration", time.Since(start))
	return path, nil
}

// PublicURL turns a stored path into the address browsers load it from.
func (c *Client) PublicURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.BaseURL == "" {
		return path
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}
