package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dashboard/internal/models"

	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/goccy/go-json"
)

// DataSource fetches the dataset for a selection.
type DataSource interface {
	Fetch(ctx context.Context, sel models.Selection) (*ColumnStore, error)
}

// HTTPSource reads datasets from the console series service.
type HTTPSource struct {
	baseHost string
	client   *http.Client
	mem      memory.Allocator
	log      *slog.Logger
}

type SourceOption func(*HTTPSource)

// WithHTTPClient replaces the default client (which carries the fetch timeout).
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithAllocator sets the allocator datasets are built with.
func WithAllocator(mem memory.Allocator) SourceOption {
	return func(s *HTTPSource) { s.mem = mem }
}

func WithLogger(l *slog.Logger) SourceOption {
	return func(s *HTTPSource) { s.log = l }
}

// NewHTTPSource returns a source for baseHost. A zero timeout means none.
func NewHTTPSource(baseHost string, timeout time.Duration, opts ...SourceOption) *HTTPSource {
	s := &HTTPSource{
		baseHost: strings.TrimRight(baseHost, "/"),
		client:   &http.Client{Timeout: timeout},
		mem:      memory.DefaultAllocator,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(slog.String("component", "datasource"))
	return s
}

// URL builds the request URI for sel.
func (s *HTTPSource) URL(sel models.Selection) string {
	return s.baseHost + "/console_serie/" + string(sel.ConsoleFamily) + "/years/" + strconv.Itoa(sel.Year)
}

// Fetch performs a single GET and loads the response into a ColumnStore.
// The caller owns the returned store.
func (s *HTTPSource) Fetch(ctx context.Context, sel models.Selection) (*ColumnStore, error) {
	url := s.URL(sel)
	s.log.Info("fetching dataset", slog.String("url", url))
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.TransportError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &models.TransportError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	rows, err := DecodeRows(body)
	if err != nil {
		return nil, &models.FormatError{URL: url, Err: err}
	}

	s.log.Debug("dataset loaded",
		slog.Int("rows", len(rows)),
		slog.Duration("took", time.Since(t0)))
	return NewColumnStore(s.mem, rows), nil
}

// DecodeRows parses a JSON array of row objects. Any other top-level shape
// is an error.
func DecodeRows(body []byte) ([]models.Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array, got %q", preview(trimmed))
	}
	var rows []models.Row
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

func preview(b []byte) string {
	if len(b) > 32 {
		return string(b[:32]) + "..."
	}
	return string(b)
}
