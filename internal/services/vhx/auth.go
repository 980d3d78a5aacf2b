package vhx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vhxdl/internal/logging"
	"vhxdl/internal/services"
)

// DefaultTokenURL is the platform's OAuth token endpoint.
const DefaultTokenURL = "https://auth.vhx.com/v1/oauth/token"

const component = "vhx"

// AuthorityOption customises TokenAuthority construction.
type AuthorityOption func(*TokenAuthority)

// WithTokenURL overrides the token endpoint (used in tests).
func WithTokenURL(raw string) AuthorityOption {
	return func(a *TokenAuthority) {
		a.tokenURL = strings.TrimSpace(raw)
	}
}

// WithTransport sets the transport used for token exchanges and for the
// decorated requests passed through RoundTrip.
func WithTransport(rt http.RoundTripper) AuthorityOption {
	return func(a *TokenAuthority) {
		a.base = rt
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AuthorityOption {
	return func(a *TokenAuthority) {
		a.now = now
	}
}

// WithTokenStore enables token persistence.
func WithTokenStore(store TokenStore) AuthorityOption {
	return func(a *TokenAuthority) {
		a.store = store
	}
}

// WithRefreshLeeway refreshes tokens this long before they expire.
func WithRefreshLeeway(d time.Duration) AuthorityOption {
	return func(a *TokenAuthority) {
		if d > 0 {
			a.leeway = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) AuthorityOption {
	return func(a *TokenAuthority) {
		a.logger = logger
	}
}

// TokenAuthority owns the credentials and the cached bearer token. It
// implements http.RoundTripper so every API request is decorated with a
// token that is valid at the moment the request is sent.
type TokenAuthority struct {
	creds    Credentials
	tokenURL string
	base     http.RoundTripper
	now      func() time.Time
	store    TokenStore
	leeway   time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	token Token
	group singleflight.Group
}

// NewTokenAuthority builds a TokenAuthority. When a store is configured, a
// persisted token obtained with the same client id and username is reused
// until it expires.
func NewTokenAuthority(creds Credentials, opts ...AuthorityOption) *TokenAuthority {
	a := &TokenAuthority{
		creds:    creds,
		tokenURL: DefaultTokenURL,
		base:     http.DefaultTransport,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.base == nil {
		a.base = http.DefaultTransport
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.logger = logging.NewComponentLogger(a.logger, component)
	a.loadPersisted()
	return a
}

func (a *TokenAuthority) loadPersisted() {
	if a.store == nil {
		return
	}
	stored, err := a.store.Load()
	if err != nil {
		logging.WarnWithContext(a.logger, "token cache unreadable; a new token will be requested", "token_cache_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete token.json in the state directory"),
			logging.String(logging.FieldImpact, "one extra token exchange"),
		)
		return
	}
	if stored.ClientID != a.creds.ClientID || stored.Username != a.creds.Username {
		return
	}
	if stored.ValidAt(a.now()) {
		a.token = stored.Token
		a.logger.Debug("reusing cached token", logging.Time("expires_at", stored.ExpiresAt))
	}
}

// Token returns a bearer string valid at the time of the call, exchanging
// credentials first when the cached token has expired.
func (a *TokenAuthority) Token(ctx context.Context) (string, error) {
	if token, ok := a.cachedToken(); ok {
		return token, nil
	}
	value, err, _ := a.group.Do("token", func() (any, error) {
		if token, ok := a.cachedToken(); ok {
			return token, nil
		}
		return a.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate drops the cached token so the next request performs a fresh
// exchange.
func (a *TokenAuthority) Invalidate() {
	a.mu.Lock()
	a.token = Token{}
	a.mu.Unlock()
}

func (a *TokenAuthority) cachedToken() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.token.ValidAt(a.now().Add(a.leeway)) {
		return a.token.AccessToken, true
	}
	return "", false
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

func (a *TokenAuthority) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", a.creds.Username)
	form.Set("password", a.creds.Password)
	form.Set("grant_type", "password")
	form.Set("client_id", a.creds.ClientID)
	form.Set("client_secret", a.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", services.Wrap(services.ErrAuth, component, "token exchange", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.base.RoundTrip(req)
	if err != nil {
		return "", services.Wrap(services.ErrAuth, component, "token exchange", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", services.Wrap(services.ErrAuth, component, "token exchange",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrAuth, component, "token exchange", "decode response", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", services.Wrap(services.ErrAuth, component, "token exchange", "response missing access_token", nil)
	}
	if payload.ExpiresIn <= 0 {
		return "", services.Wrap(services.ErrAuth, component, "token exchange",
			fmt.Sprintf("non-positive expires_in %v", payload.ExpiresIn), nil)
	}

	issued := a.now()
	token := Token{
		AccessToken: payload.AccessToken,
		ExpiresAt:   issued.Add(time.Duration(payload.ExpiresIn * float64(time.Second))),
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()

	a.logger.Info("token refreshed",
		logging.String(logging.FieldEventType, "token_refreshed"),
		logging.Time("expires_at", token.ExpiresAt),
	)

	if a.store != nil {
		stored := StoredToken{Token: token, ClientID: a.creds.ClientID, Username: a.creds.Username}
		if err := a.store.Save(stored); err != nil {
			logging.WarnWithContext(a.logger, "token cache write failed", "token_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
				logging.String(logging.FieldImpact, "next run performs a new token exchange"),
			)
		}
	}
	return token.AccessToken, nil
}

// RoundTrip decorates req with the bearer header and forwards it to the base
// transport. Requests addressed to the token endpoint pass through untouched.
func (a *TokenAuthority) RoundTrip(req *http.Request) (*http.Response, error) {
	if a.isTokenEndpoint(req.URL) {
		return a.base.RoundTrip(req)
	}
	token, err := a.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	decorated := req.Clone(req.Context())
	decorated.Header.Set("Authorization", "Bearer "+token)
	return a.base.RoundTrip(decorated)
}

func (a *TokenAuthority) isTokenEndpoint(target *url.URL) bool {
	if target == nil {
		return false
	}
	endpoint, err := url.Parse(a.tokenURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Scheme, endpoint.Scheme) &&
		strings.EqualFold(target.Host, endpoint.Host) &&
		strings.TrimRight(target.Path, "/") == strings.TrimRight(endpoint.Path, "/")
}
