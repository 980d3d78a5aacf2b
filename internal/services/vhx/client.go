package vhx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vhxdl/internal/logging"
	"vhxdl/internal/services"
)

// DefaultBaseURL is the platform API root.
const DefaultBaseURL = "https://api.vhx.com/v2"

const defaultTimeout = 30 * time.Second

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL string
	SiteID  string
	// Authority decorates requests with bearer tokens. When Transport is nil
	// the authority itself is used as the transport.
	Authority *TokenAuthority
	Transport http.RoundTripper
	Timeout   time.Duration
	// RequestsPerSecond paces outgoing requests; 0 disables pacing.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Client performs typed, site-scoped API calls.
type Client struct {
	baseURL   *url.URL
	siteID    string
	http      *http.Client
	authority *TokenAuthority
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewClient constructs an API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "client", fmt.Sprintf("invalid base url %q", raw), err)
	}
	siteID := strings.TrimSpace(cfg.SiteID)
	if siteID == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "client", "site id is required", nil)
	}

	transport := cfg.Transport
	if transport == nil && cfg.Authority != nil {
		transport = cfg.Authority
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:   base,
		siteID:    siteID,
		http:      &http.Client{Transport: transport, Timeout: timeout},
		authority: cfg.Authority,
		logger:    logging.NewComponentLogger(cfg.Logger, component),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return client, nil
}

// SiteID returns the site every request is scoped to.
func (c *Client) SiteID() string {
	return c.siteID
}

// Collection fetches a collection's metadata by id or slug.
func (c *Client) Collection(ctx context.Context, idOrSlug string) (Collection, error) {
	var out Collection
	err := c.getJSON(ctx, "get collection", c.sitePath("collections", idOrSlug), nil, &out)
	return out, err
}

// CollectionItemsPage fetches the first page of a collection listing and
// returns only its self link. It is used to turn a slug into a numeric id.
func (c *Client) CollectionItemsPage(ctx context.Context, idOrSlug string) (SelfLink, error) {
	var out SelfLink
	query := url.Values{"page": {"1"}, "per_page": {"1"}}
	err := c.getJSON(ctx, "get collection items", c.sitePath("collections", idOrSlug, "items"), query, &out)
	return out, err
}

// CollectionItems returns every entity in a collection, following pagination.
func (c *Client) CollectionItems(ctx context.Context, id string) ([]Entity, error) {
	return FetchAll[Entity](ctx, c, c.sitePath("collections", id, "items"), "items")
}

// Video fetches a video's metadata by id or slug.
func (c *Client) Video(ctx context.Context, idOrSlug string) (Video, error) {
	var out Video
	err := c.getJSON(ctx, "get video", c.sitePath("videos", idOrSlug), nil, &out)
	return out, err
}

// Delivery fetches the stream manifest for a video with an offline license.
func (c *Client) Delivery(ctx context.Context, videoID string) (DeliveryManifest, error) {
	var out DeliveryManifest
	query := url.Values{"offline_license": {"1"}}
	err := c.getJSON(ctx, "get delivery", c.sitePath("videos", videoID, "delivery"), query, &out)
	return out, err
}

func (c *Client) sitePath(parts ...string) []string {
	return append([]string{"sites", c.siteID}, parts...)
}

// getJSON issues a GET for the joined path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, operation string, path []string, query url.Values, out any) error {
	body, err := c.get(ctx, operation, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return services.Wrap(services.ErrFetch, component, operation, "decode response", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, operation string, path []string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrFetch, component, operation, "rate limiter", err)
		}
	}

	endpoint := c.baseURL.JoinPath(path...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, component, operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, services.ErrAuth) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrFetch, component, operation, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized && c.authority != nil {
			c.authority.Invalidate()
		}
		return nil, services.Wrap(services.ErrFetch, component, operation,
			fmt.Sprintf("GET %s: status %d: %s", endpoint.Path, resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, component, operation, "read response", err)
	}
	c.logger.Debug("api request",
		logging.String("path", endpoint.Path),
		logging.Int("status", resp.StatusCode),
		logging.Int("bytes", len(body)),
	)
	return body, nil
}
