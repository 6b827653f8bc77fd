// Package recommend looks up news articles related to a stored file using
// the Guardian content search API.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mediavault/mediavault-api/internal/apperr"
)

// Static errors for search client operations.
var (
	// ErrEmptyQuery is returned when a filename yields no search terms.
	ErrEmptyQuery = errors.New("recommend: empty query")
	// ErrRequestFailed is returned when the search API answers with a non-2xx status code.
	ErrRequestFailed = errors.New("recommend: request failed")
)

// DefaultBaseURL is the Guardian content API.
const DefaultBaseURL = "https://content.guardianapis.com"

// KeyFunc resolves the search API key at call time.
type KeyFunc func(ctx context.Context) (string, error)

// Client queries the content search API. Requests are never retried.
type Client struct {
	apiKey     KeyFunc
	baseURL    string
	pageSize   int
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the search API.
func WithBaseURL(u string) ClientOption {
	return func(cl *Client) {
		if u != "" {
			cl.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPageSize sets how many results are requested.
func WithPageSize(n int) ClientOption {
	return func(cl *Client) {
		if n > 0 {
			cl.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient creates a new search client.
func NewClient(apiKey KeyFunc, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		pageSize:   6,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var querySeparators = strings.NewReplacer(".", " ", "_", " ", "-", " ")

// QueryFromFilename derives search terms from a filename: the final
// extension is dropped and '.', '_' and '-' separators become spaces.
func QueryFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	return strings.Join(strings.Fields(querySeparators.Replace(stem)), " ")
}

// Recommend returns article URLs related to filename.
func (c *Client) Recommend(ctx context.Context, filename string) (Recommendations, error) {
	const op = "recommend.Recommend"

	query := QueryFromFilename(filename)
	if query == "" {
		return Recommendations{}, apperr.Wrap(apperr.Validation, op, fmt.Errorf("%w: %q", ErrEmptyQuery, filename))
	}

	key, err := c.apiKey(ctx)
	if err != nil {
		return Recommendations{}, apperr.Wrap(apperr.ConfigResolution, op, err)
	}

	var resp searchResponse
	if err := c.doRequest(ctx, query, key, &resp); err != nil {
		c.logger.Error("search request failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return Recommendations{}, apperr.Wrap(apperr.Upstream, op, err)
	}

	urls := make([]string, 0, len(resp.Response.Results))
	for _, r := range resp.Response.Results {
		if len(urls) == c.pageSize {
			break
		}
		if r.WebURL != "" {
			urls = append(urls, r.WebURL)
		}
	}
	return Recommendations{Query: query, URLs: urls}, nil
}

// redactKey masks the api-key query parameter in transport errors, which
// carry the full request URL.
func redactKey(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	redacted := "[redacted]"
	if u, perr := url.Parse(ue.URL); perr == nil {
		q := u.Query()
		if q.Has("api-key") {
			q.Set("api-key", "REDACTED")
		}
		u.RawQuery = q.Encode()
		redacted = u.String()
	}
	return &url.Error{Op: ue.Op, URL: redacted, Err: ue.Err}
}

// doRequest performs a single search request.
func (c *Client) doRequest(ctx context.Context, query, key string, result any) error {
	params := url.Values{}
	params.Set("api-key", key)
	params.Set("q", query)
	params.Set("order-by", "relevance")
	params.Set("page-size", strconv.Itoa(c.pageSize))
	params.Set("show-fields", "headline")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("recommend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recommend: request failed: %w", redactKey(err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("recommend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("recommend: unmarshal response: %w", err)
	}
	return nil
}
