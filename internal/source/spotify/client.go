// Package spotify implements the catalog source contract against the
// Spotify Web API using the client-credentials flow.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"tagfetch/internal/shared"
	"tagfetch/internal/source"
)

// 1. Constants and types

const (
	defaultBaseURL        = "https://api.spotify.com/v1"
	defaultTimeout        = 30 * time.Second
	defaultPageSize       = 10
	defaultRateLimit      = 250 * time.Millisecond // 4 req/sec
	defaultBurstLimit     = 4
	defaultMaxRateRetries = 3
	defaultRetryDelay     = 2 * time.Second

	// Tokens this close to expiry are refreshed up front instead of
	// risking a mid-request rejection.
	tokenExpirySlack = 30 * time.Second
)

// Config holds configuration for the Spotify API client
type Config struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Timeout        time.Duration
	PageSize       int
	RateLimit      time.Duration
	BurstLimit     int
	MaxRateRetries int
	RetryDelay     time.Duration
}

// DefaultConfig returns sensible defaults for the Spotify API client
func DefaultConfig() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		TokenURL:       spotifyauth.TokenURL,
		Timeout:        defaultTimeout,
		PageSize:       defaultPageSize,
		RateLimit:      defaultRateLimit,
		BurstLimit:     defaultBurstLimit,
		MaxRateRetries: defaultMaxRateRetries,
		RetryDelay:     defaultRetryDelay,
	}
}

// Client is a catalog source backed by the Spotify Web API.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	creds       *clientcredentials.Config

	// mu serializes token refreshes: one winner performs the exchange,
	// waiters reuse the refreshed token.
	mu    sync.Mutex
	token *oauth2.Token
}

// 2. Constructors

// New creates a client with default configuration and the given application
// credentials.
func New(clientID, clientSecret string) *Client {
	cfg := DefaultConfig()
	cfg.ClientID = clientID
	cfg.ClientSecret = clientSecret
	return NewWithConfig(cfg)
}

// NewWithConfig creates a client with custom configuration.
func NewWithConfig(cfg Config) *Client {
	return &Client{
		config:      cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateLimit), cfg.BurstLimit),
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		},
	}
}

// Name implements source.Source.
func (c *Client) Name() string { return "spotify" }

// 3. Token lifecycle

// accessToken returns a cached bearer token, performing the
// client-credentials exchange when none is cached or the cached one is
// about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.token.Expiry.After(time.Now().Add(tokenExpirySlack)) {
		return c.token.AccessToken, nil
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", source.ErrUnavailable, err)
	}
	c.token = token
	return token.AccessToken, nil
}

// invalidateToken drops the cached token after the API rejected it.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// 4. Core HTTP method

// get performs an authorized GET with the client's retry policy: one
// transparent token re-acquisition on 401, bounded Retry-After backoff on
// 429, and a single delayed retry on transport errors.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var authRetried, transportRetried bool
	var rateRetries int

	for {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", shared.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !transportRetried {
				transportRetried = true
				if err := waitWithContext(ctx, c.config.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("error reading response body: %w", err)
			}
			return body, nil

		case http.StatusUnauthorized:
			resp.Body.Close()
			if !authRetried {
				// Re-acquire the token once; a second consecutive
				// rejection is surfaced instead of looping.
				authRetried = true
				c.invalidateToken()
				continue
			}
			return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, source.ErrAuthExpired)

		case http.StatusTooManyRequests:
			delay := retryAfter(resp, c.config.RetryDelay)
			resp.Body.Close()
			rateRetries++
			if rateRetries > c.config.MaxRateRetries {
				return nil, fmt.Errorf("%w: gave up after %d attempts", source.ErrRateLimited, rateRetries)
			}
			if err := waitWithContext(ctx, delay); err != nil {
				return nil, err
			}
			continue

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, source.ErrNotFound

		default:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, &shared.HTTPError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Message:    rawURL,
			})
		}
	}
}

// retryAfter reads the backend-provided retry delay, falling back to a
// fixed delay when the header is absent or unparsable.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// waitWithContext waits for the specified duration, respecting context
// cancellation.
func waitWithContext(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// 5. Source implementation

// Search implements source.Source. Candidates arrive in the API's
// relevance order, bounded by the configured page size.
func (c *Client) Search(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	if q.Empty() {
		return nil, source.ErrInvalidQuery
	}

	params := url.Values{}
	params.Set("q", q.Keywords())
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(c.config.PageSize))

	body, err := c.get(ctx, c.config.BaseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	candidates := make([]source.Candidate, 0, len(result.Tracks.Items))
	for _, track := range result.Tracks.Items {
		cand := convertTrack(track)
		// Entries with neither artist nor title carry no identity.
		if cand.Artist == "" && cand.Title == "" {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// FetchArtwork implements source.Source. The artwork reference is the URL
// of the largest cover image reported by the search.
func (c *Client) FetchArtwork(ctx context.Context, cand source.Candidate) ([]byte, error) {
	if cand.ArtworkRef == "" {
		return nil, source.ErrNotFound
	}
	return c.get(ctx, cand.ArtworkRef)
}

// convertTrack normalizes one API result entry into a Candidate.
func convertTrack(track spotifyTrack) source.Candidate {
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Name)
	}

	albumArtist := ""
	if len(track.Artists) > 0 {
		albumArtist = track.Artists[0].Name
	}

	var artworkRef string
	maxWidth := -1
	for _, img := range track.Album.Images {
		if img.Width > maxWidth {
			maxWidth = img.Width
			artworkRef = img.URL
		}
	}

	return source.Candidate{
		Artist:      strings.Join(names, ", "),
		Title:       track.Name,
		Album:       track.Album.Name,
		AlbumArtist: albumArtist,
		TrackNumber: track.TrackNumber,
		Year:        parseYear(track.Album.ReleaseDate),
		ID:          track.ID,
		ArtworkRef:  artworkRef,
		Source:      "spotify",
	}
}

// parseYear extracts the year from a release date like "2019-11-18".
func parseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}
