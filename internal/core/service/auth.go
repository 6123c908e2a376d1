package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/pkg/cmap"
	"github.com/devansh-12/messaging-app/pkg/token"
)

// Authenticator maps a username and password to an opaque session token.
//
// Implementations return domain.ErrInvalidCredentials when the backend
// rejects the pair and domain.ErrAuthUnavailable when it cannot be asked.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// ============================================================================
// HTTPAuthenticator - external auth bridge
// ============================================================================

// Bridge defaults.
const (
	DefaultBridgeTimeout = 3 * time.Second
	DefaultBridgeRetries = 3

	maxBridgeResponse = 64 << 10
)

// HTTPAuthenticator asks an HTTP bridge to check credentials.
//
// The bridge contract is POST <base>/login with form fields user and pass,
// answered by {"success": bool, "token": string}.
type HTTPAuthenticator struct {
	endpoint   string
	client     *http.Client
	maxRetries uint64
	initial    time.Duration
	logger     *slog.Logger
}

// HTTPAuthOption configures an HTTPAuthenticator.
type HTTPAuthOption func(*HTTPAuthenticator)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPAuthOption {
	return func(a *HTTPAuthenticator) { a.client = c }
}

// WithRetries sets how many times a transport failure is retried.
func WithRetries(n uint64) HTTPAuthOption {
	return func(a *HTTPAuthenticator) { a.maxRetries = n }
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) HTTPAuthOption {
	return func(a *HTTPAuthenticator) { a.initial = d }
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l *slog.Logger) HTTPAuthOption {
	return func(a *HTTPAuthenticator) { a.logger = l }
}

// NewHTTPAuthenticator creates an authenticator for the bridge at baseURL.
func NewHTTPAuthenticator(baseURL string, opts ...HTTPAuthOption) *HTTPAuthenticator {
	a := &HTTPAuthenticator{
		endpoint:   strings.TrimRight(baseURL, "/") + "/login",
		client:     &http.Client{Timeout: DefaultBridgeTimeout},
		maxRetries: DefaultBridgeRetries,
		initial:    100 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type bridgeReply struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// Authenticate implements Authenticator. Transport errors and 5xx replies
// are retried with exponential backoff until ctx is done; a definite answer
// from the bridge is never retried.
func (a *HTTPAuthenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	var (
		reply   bridgeReply
		verdict error
	)

	attempt := 0
	op := func() error {
		attempt++
		r, err := a.post(ctx, username, password)
		if err != nil {
			a.logger.Debug("auth bridge attempt failed", "attempt", attempt, "error", err)
			return err
		}
		reply, verdict = r, nil
		if !r.Success {
			verdict = domain.ErrInvalidCredentials
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initial
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, a.maxRetries), ctx)); err != nil {
		a.logger.Warn("auth bridge unavailable", "endpoint", a.endpoint, "attempts", attempt, "error", err)
		return "", domain.ErrAuthUnavailable.WithCause(err)
	}
	if verdict != nil {
		return "", verdict
	}
	if reply.Token == "" {
		return "", domain.ErrAuthUnavailable.WithDetails("bridge accepted login without a token")
	}
	return reply.Token, nil
}

func (a *HTTPAuthenticator) post(ctx context.Context, username, password string) (bridgeReply, error) {
	form := url.Values{"user": {username}, "pass": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return bridgeReply{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return bridgeReply{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return bridgeReply{}, fmt.Errorf("bridge returned %s", resp.Status)
	}

	var r bridgeReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBridgeResponse)).Decode(&r); err != nil {
		return bridgeReply{}, fmt.Errorf("decode bridge reply: %w", err)
	}
	return r, nil
}

// ============================================================================
// StaticAuthenticator - configured users
// ============================================================================

// DemoUsers returns the built-in accounts used when no users are configured.
func DemoUsers() map[string]string {
	return map[string]string{
		"alice": "alice123",
		"bob":   "bob123",
		"admin": "admin123",
	}
}

// StaticAuthenticator checks credentials against an in-memory table of
// Argon2id hashes.
type StaticAuthenticator struct {
	hashes map[string]string
	dummy  string
	now    func() time.Time
}

// NewStaticAuthenticator hashes the plaintext passwords in users. Values
// that already look like Argon2id encodings are stored as given.
func NewStaticAuthenticator(users map[string]string) (*StaticAuthenticator, error) {
	if len(users) == 0 {
		users = DemoUsers()
	}

	hashes := make(map[string]string, len(users))
	for name, secret := range users {
		if name == "" {
			return nil, domain.ErrInvalidArgument.WithDetails("empty username in auth.users")
		}
		if strings.HasPrefix(secret, "$argon2id$") {
			hashes[name] = secret
			continue
		}
		h, err := token.HashPassword(secret)
		if err != nil {
			return nil, domain.ErrInternal.WithCause(err)
		}
		hashes[name] = h
	}

	dummy, err := token.HashPassword("unused")
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}

	return &StaticAuthenticator{hashes: hashes, dummy: dummy, now: time.Now}, nil
}

// Users returns the configured usernames, sorted.
func (s *StaticAuthenticator) Users() []string {
	names := make([]string, 0, len(s.hashes))
	for name := range s.hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authenticate implements Authenticator. Tokens have the form
// token_<user>_<unixMillis>.
func (s *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (string, error) {
	h, ok := s.hashes[username]
	if !ok {
		// Unknown users cost the same as known ones.
		token.VerifyPassword(password, s.dummy)
		return "", domain.ErrInvalidCredentials
	}
	if !token.VerifyPassword(password, h) {
		return "", domain.ErrInvalidCredentials
	}
	return fmt.Sprintf("token_%s_%d", username, s.now().UnixMilli()), nil
}

// ============================================================================
// Rate limiting
// ============================================================================

// RateLimiterRegistry hands out one token bucket per key.
type RateLimiterRegistry struct {
	limiters *cmap.Map[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewRateLimiterRegistry creates a registry whose limiters allow perSecond
// events with the given burst.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiterRegistry{
		limiters: cmap.New[string, *rate.Limiter](),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	if limiter, ok := r.limiters.Get(key); ok {
		return limiter
	}
	limiter, _ := r.limiters.GetOrSet(key, rate.NewLimiter(r.limit, r.burst))
	return limiter
}

// Delete removes the limiter for key.
func (r *RateLimiterRegistry) Delete(key string) {
	r.limiters.Delete(key)
}

// Len returns the number of tracked keys.
func (r *RateLimiterRegistry) Len() int {
	return r.limiters.Count()
}

// RateLimitedAuthenticator rejects logins for a username that exceeds its
// attempt budget before asking the wrapped authenticator.
type RateLimitedAuthenticator struct {
	next     Authenticator
	limiters *RateLimiterRegistry
}

// NewRateLimitedAuthenticator wraps next. A non-positive perSecond disables
// limiting and returns next unchanged.
func NewRateLimitedAuthenticator(next Authenticator, perSecond float64, burst int) Authenticator {
	if perSecond <= 0 {
		return next
	}
	return &RateLimitedAuthenticator{
		next:     next,
		limiters: NewRateLimiterRegistry(perSecond, burst),
	}
}

// Authenticate implements Authenticator.
func (r *RateLimitedAuthenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	limiter := r.limiters.GetOrCreate(username)
	if !limiter.Allow() {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		return "", domain.ErrLoginRateLimited.WithDetails("retry after " + delay.String())
	}

	tok, err := r.next.Authenticate(ctx, username, password)
	if err == nil {
		// A good login refills the bucket.
		r.limiters.Delete(username)
	}
	return tok, err
}
