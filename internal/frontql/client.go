package frontql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMalformedResponse is returned when a list response carries neither a result nor a data array.
	ErrMalformedResponse = errors.New("response does not contain a row array")
	// ErrRemote is returned when the backend answers 2xx but flags err=true.
	ErrRemote = errors.New("backend reported an error")
	// ErrInvalidCredentials is returned when the users collection rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("frontql returned status %d: %s", e.Code, e.Body)
}

// Client talks to a FrontQL-style hosted CRUD API
type Client struct {
	BaseURL    string
	Token      string
	App        string
	httpClient *http.Client
}

// NewClient creates a new backend client
func NewClient(baseURL, token, app string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		App:     app,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ListParams are the query parameters the backend understands for reads.
// Page is "start,count", e.g. "1,1000".
type ListParams struct {
	Fields string
	Sort   string
	Page   string
	Search string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Fields != "" {
		v.Set("fields", p.Fields)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Page != "" {
		v.Set("page", p.Page)
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	return v
}

// ListResponse is the narrowed result of a list call: the row array plus the
// total count when the backend reports one.
type ListResponse struct {
	Rows  []json.RawMessage
	Count int
}

// v5Envelope is returned by current endpoint generations.
type v5Envelope struct {
	Err    bool              `json:"err"`
	Result []json.RawMessage `json:"result"`
	Count  int               `json:"count"`
}

// legacyEnvelope is returned by older endpoint generations.
type legacyEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

// List fetches rows from a collection resource
func (c *Client) List(ctx context.Context, resource string, params ListParams) (*ListResponse, error) {
	endpoint := c.resourceURL(resource, "")
	if q := params.values().Encode(); q != "" {
		endpoint += "?" + q
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return decodeList(body)
}

func decodeList(body []byte) (*ListResponse, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}

	if _, ok := probe["result"]; ok {
		var env v5Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to decode result envelope: %w", err)
		}
		if env.Err {
			return nil, ErrRemote
		}
		if env.Result == nil {
			return nil, ErrMalformedResponse
		}
		count := env.Count
		if count == 0 {
			count = len(env.Result)
		}
		return &ListResponse{Rows: env.Result, Count: count}, nil
	}

	if _, ok := probe["data"]; ok {
		var env legacyEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to decode data envelope: %w", err)
		}
		if env.Data == nil {
			return nil, ErrMalformedResponse
		}
		return &ListResponse{Rows: env.Data, Count: len(env.Data)}, nil
	}

	return nil, ErrMalformedResponse
}

// FirstRow extracts the echoed row from a mutation response, which carries
// either a row array or a single object under result or data.
func FirstRow(body []byte) (json.RawMessage, error) {
	if list, err := decodeList(body); err == nil {
		if len(list.Rows) == 0 {
			return nil, ErrMalformedResponse
		}
		return list.Rows[0], nil
	} else if errors.Is(err, ErrRemote) {
		return nil, err
	}

	var single struct {
		Result json.RawMessage `json:"result"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("failed to decode mutation response: %w", err)
	}
	for _, raw := range []json.RawMessage{single.Result, single.Data} {
		if len(raw) > 0 && raw[0] == '{' {
			return raw, nil
		}
	}
	return nil, ErrMalformedResponse
}

// Create inserts a row and returns the raw response body.
// fields limits the columns echoed back, e.g. "id,name".
func (c *Client) Create(ctx context.Context, resource string, row any, fields string) (json.RawMessage, error) {
	endpoint := c.resourceURL(resource, "")
	if fields != "" {
		endpoint += "?" + url.Values{"fields": {fields}}.Encode()
	}
	return c.doJSON(ctx, http.MethodPost, endpoint, row)
}

// Update replaces the writable fields of the row keyed by id
func (c *Client) Update(ctx context.Context, resource, id string, row any) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required for update")
	}
	return c.doJSON(ctx, http.MethodPut, c.resourceURL(resource, id), row)
}

// Delete removes the row keyed by id
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	if id == "" {
		return fmt.Errorf("id is required for delete")
	}
	_, err := c.do(ctx, http.MethodDelete, c.resourceURL(resource, id), nil)
	return err
}

// ID accepts both numeric and string row identifiers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// User is the subset of a users row returned on login.
type User struct {
	ID        ID     `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Authenticate checks curator credentials against the users resource.
func (c *Client) Authenticate(ctx context.Context, resource, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	endpoint := c.resourceURL(resource, "") + "?" + url.Values{"fields": {"id,email,created_at"}}.Encode()
	body, err := c.doJSON(ctx, http.MethodPost, endpoint, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden || se.Code == http.StatusNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	rows, err := decodeList(body)
	if err != nil {
		// single-row responses come back as a bare object under result
		var single struct {
			Result User `json:"result"`
		}
		if jsonErr := json.Unmarshal(body, &single); jsonErr != nil || single.Result.Email == "" {
			return nil, ErrInvalidCredentials
		}
		return &single.Result, nil
	}
	if len(rows.Rows) == 0 {
		return nil, ErrInvalidCredentials
	}

	var user User
	if err := json.Unmarshal(rows.Rows[0], &user); err != nil {
		return nil, fmt.Errorf("failed to decode user row: %w", err)
	}
	if user.Email == "" {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// UserStore authenticates against one users resource.
type UserStore struct {
	Client   *Client
	Resource string
}

func (u UserStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	return u.Client.Authenticate(ctx, u.Resource, email, password)
}

func (c *Client) resourceURL(resource, id string) string {
	u := c.BaseURL + "/" + strings.Trim(resource, "/")
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, row any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{"body": row})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, method, endpoint, payload)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.App != "" {
		req.Header.Set("app", c.App)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call frontql: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
