// Package subsonic implements the catalog source contract against a
// personal Subsonic-compatible server (Navidrome, Airsonic, Gonic).
package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gosubsonic "github.com/delucks/go-subsonic"

	"tagfetch/internal/source"
)

const (
	clientName  = "tagfetch"
	apiVersion  = "1.16.1"
	defaultSize = 10
)

// Client is a catalog source backed by a Subsonic server.
type Client struct {
	serverURL string
	username  string
	password  string

	httpClient *http.Client

	mu            sync.Mutex
	client        gosubsonic.Client
	authenticated bool
}

// New creates a client for the given server. Authentication happens lazily
// on the first search.
func New(serverURL, username, password string) *Client {
	return &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements source.Source.
func (c *Client) Name() string { return "subsonic" }

// ensureAuthenticated performs the library login once and reuses it.
func (c *Client) ensureAuthenticated() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated {
		return nil
	}

	c.client = gosubsonic.Client{
		Client:     c.httpClient,
		BaseUrl:    c.serverURL,
		User:       c.username,
		ClientName: clientName,
	}
	if err := c.client.Authenticate(c.password); err != nil {
		return fmt.Errorf("%w: subsonic authentication: %v", source.ErrUnavailable, err)
	}
	c.authenticated = true
	return nil
}

// Search implements source.Source using the search3 endpoint.
func (c *Client) Search(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	if q.Empty() {
		return nil, source.ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}

	result, err := c.client.Search3(q.Keywords(), map[string]string{
		"songCount":   strconv.Itoa(defaultSize),
		"albumCount":  "0",
		"artistCount": "0",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic search: %v", source.ErrUnavailable, err)
	}

	candidates := make([]source.Candidate, 0, len(result.Song))
	for _, song := range result.Song {
		if song == nil || (song.Artist == "" && song.Title == "") {
			continue
		}
		candidates = append(candidates, source.Candidate{
			Artist:      song.Artist,
			Title:       song.Title,
			Album:       song.Album,
			TrackNumber: song.Track,
			Year:        song.Year,
			Genre:       song.Genre,
			ID:          song.ID,
			ArtworkRef:  song.CoverArt,
			Source:      "subsonic",
		})
	}
	return candidates, nil
}

// FetchArtwork implements source.Source. The library decodes cover art into
// an image value, so the raw bytes come from the REST endpoint directly
// with token authentication.
func (c *Client) FetchArtwork(ctx context.Context, cand source.Candidate) ([]byte, error) {
	if cand.ArtworkRef == "" {
		return nil, source.ErrNotFound
	}

	salt, err := newSalt()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("u", c.username)
	params.Set("t", saltedToken(c.password, salt))
	params.Set("s", salt)
	params.Set("v", apiVersion)
	params.Set("c", clientName)
	params.Set("id", cand.ArtworkRef)

	coverURL := fmt.Sprintf("%s/rest/getCoverArt.view?%s", c.serverURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, source.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", source.ErrUnavailable, resp.Status)
	}
	// Error responses come back 200 with a structured body instead of
	// image bytes.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "json") || strings.Contains(ct, "xml") {
		return nil, source.ErrNotFound
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading cover art: %w", err)
	}
	return data, nil
}

// saltedToken computes the token auth digest for the REST API.
func saltedToken(password, salt string) string {
	hasher := md5.New()
	hasher.Write([]byte(password + salt))
	return hex.EncodeToString(hasher.Sum(nil))
}

// newSalt returns a random salt for one token exchange.
func newSalt() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
