// Package supabase stores test sets through a Supabase project's PostgREST
// endpoint.
package supabase

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

	"github.com/JonMunkholm/testsets/internal/core"
)

// ErrMissingCredentials is returned by New when the project URL or key is unset.
var ErrMissingCredentials = errors.New("SUPABASE_URL and SUPABASE_API_KEY must be set")

// DefaultTimeout bounds a single PostgREST request.
const DefaultTimeout = 30 * time.Second

// Config identifies a Supabase project.
type Config struct {
	URL        string
	APIKey     string
	Schema     string        // empty uses the project's default schema
	Timeout    time.Duration // per request, zero selects DefaultTimeout
	HTTPClient *http.Client  // nil builds one from Timeout
}

// Store posts one row per request to /rest/v1/{table}.
type Store struct {
	base   *url.URL
	key    string
	schema string
	client *http.Client
}

var _ core.Store = (*Store)(nil)

// New validates cfg and returns a store. It performs no network I/O.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse SUPABASE_URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse SUPABASE_URL: unsupported scheme %q", base.Scheme)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Store{base: base, key: cfg.APIKey, schema: cfg.Schema, client: client}, nil
}

// APIError is a non-2xx PostgREST response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("postgrest %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("postgrest %d: %s", e.StatusCode, msg)
}

// Temporary reports request timeouts, rate limiting and server errors.
func (e *APIError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// Upsert writes one row and returns it as stored.
func (s *Store) Upsert(ctx context.Context, req core.UpsertRequest) (core.Persisted, error) {
	body := make(map[string]any, len(req.Fields))
	for _, f := range req.Fields {
		body[f.Column] = f.Value
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return core.Persisted{}, fmt.Errorf("encode %s row: %w", req.Table, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(req), bytes.NewReader(payload))
	if err != nil {
		return core.Persisted{}, fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(httpReq, req)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return core.Persisted{}, err
		}
		return core.Persisted{}, core.MarkTransient(fmt.Errorf("post %s: %w", req.Table, err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return core.Persisted{}, core.MarkTransient(fmt.Errorf("read %s response: %w", req.Table, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return core.Persisted{}, apiErr
	}
	return decodeRow(req.Table, raw)
}

func (s *Store) endpoint(req core.UpsertRequest) string {
	u := *s.base
	u.Path = u.Path + "/rest/v1/" + url.PathEscape(req.Table)
	if len(req.ConflictTarget) > 0 {
		q := url.Values{}
		q.Set("on_conflict", strings.Join(req.ConflictTarget, ","))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (s *Store) setHeaders(r *http.Request, req core.UpsertRequest) {
	r.Header.Set("apikey", s.key)
	r.Header.Set("Authorization", "Bearer "+s.key)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	if s.schema != "" {
		r.Header.Set("Content-Profile", s.schema)
	}

	prefer := "return=representation"
	if _, hasID := req.Value("id"); hasID || len(req.ConflictTarget) > 0 {
		prefer = "resolution=merge-duplicates," + prefer
	}
	r.Header.Set("Prefer", prefer)
}

func decodeRow(table string, raw []byte) (core.Persisted, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return core.Persisted{}, fmt.Errorf("decode %s response: %w", table, err)
	}
	if len(rows) == 0 {
		return core.Persisted{}, fmt.Errorf("%s: upsert returned no rows", table)
	}

	row := rows[0]
	num, ok := row["id"].(json.Number)
	if !ok {
		return core.Persisted{}, fmt.Errorf("%s: row has no numeric id", table)
	}
	id, err := num.Int64()
	if err != nil {
		return core.Persisted{}, fmt.Errorf("%s: id %q: %w", table, num, err)
	}
	return core.Persisted{ID: id, Fields: row}, nil
}
