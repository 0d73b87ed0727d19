// Package melon implements the catalog source contract by scraping the
// Melon song search pages. The site offers no public API, so results come
// from parsing the search and detail HTML.
package melon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"tagfetch/internal/shared"
	"tagfetch/internal/source"
)

const (
	defaultBaseURL    = "https://www.melon.com"
	defaultTimeout    = 30 * time.Second
	defaultRateLimit  = 500 * time.Millisecond
	defaultBurst      = 2
	defaultRetryDelay = time.Second

	// The site serves a degraded page to non-browser agents.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	resizeSuffix = "/melon/resize/"
)

// Config holds configuration for the Melon scraping client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	RateLimit  time.Duration
	Burst      int
	RetryDelay time.Duration
}

// DefaultConfig returns sensible defaults for the Melon scraping client
func DefaultConfig() Config {
	return Config{
		BaseURL:    defaultBaseURL,
		Timeout:    defaultTimeout,
		UserAgent:  browserUserAgent,
		RateLimit:  defaultRateLimit,
		Burst:      defaultBurst,
		RetryDelay: defaultRetryDelay,
	}
}

// Client is a catalog source backed by the Melon search pages.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// New creates a client with default configuration.
func New() *Client {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a client with custom configuration.
func NewWithConfig(cfg Config) *Client {
	return &Client{
		config:      cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateLimit), cfg.Burst),
	}
}

// Name implements source.Source.
func (c *Client) Name() string { return "melon" }

// fetch retrieves one page as a parsed document.
func (c *Client) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.fetchBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// fetchBytes retrieves one URL as raw bytes, retrying transient server
// statuses with backoff.
func (c *Client) fetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var body []byte
	err := shared.RetryWithBackoff(shared.DefaultMaxRetries, c.config.RetryDelay, func() error {
		b, err := c.doRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	return body, nil
}

// doRequest performs a single GET, reporting non-success statuses as typed
// HTTP errors so the retry layer can classify them.
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &shared.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Message: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}

// classify maps a final request failure onto the catalog error taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var httpErr *shared.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", source.ErrRateLimited, err)
		case http.StatusNotFound:
			return source.ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", source.ErrUnavailable, err)
}

// Search implements source.Source.
func (c *Client) Search(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	if q.Empty() {
		return nil, source.ErrInvalidQuery
	}

	params := url.Values{}
	params.Set("q", q.Keywords())
	params.Set("section", "")
	params.Set("searchGnbYn", "Y")

	doc, err := c.fetch(ctx, c.config.BaseURL+"/search/song/index.htm?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return c.parseSearchResults(doc), nil
}

// parseSearchResults walks the song table rows of a search page. Rows
// without a song id or a titled link are navigation chrome, not results.
func (c *Client) parseSearchResults(doc *goquery.Document) []source.Candidate {
	var candidates []source.Candidate

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		songID, ok := row.Find("input.input_check").First().Attr("value")
		if !ok || songID == "" {
			return
		}

		title, ok := row.Find("a.fc_gray").First().Attr("title")
		if !ok || title == "" {
			return
		}

		artist := strings.TrimSpace(row.Find("div#artistName a.fc_mgray").First().Text())

		album := ""
		row.Find("a.fc_mgray").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			if strings.Contains(href, "album") {
				album = strings.TrimSpace(link.Text())
				return false
			}
			return true
		})

		candidates = append(candidates, source.Candidate{
			Artist: artist,
			Title:  title,
			Album:  album,
			ID:     songID,
			// Artwork lives behind the song detail page, not a
			// direct image URL.
			ArtworkRef: c.config.BaseURL + "/song/detail.htm?songId=" + url.QueryEscape(songID),
			Source:     "melon",
		})
	})

	return candidates
}

// FetchDetail implements source.Detailer. The search page omits release
// year and genre; both live in the label/value metadata list of the song
// detail page.
func (c *Client) FetchDetail(ctx context.Context, cand source.Candidate) (source.Candidate, error) {
	if cand.ArtworkRef == "" {
		return cand, source.ErrNotFound
	}

	doc, err := c.fetch(ctx, cand.ArtworkRef)
	if err != nil {
		return cand, err
	}
	return enrichFromDetail(cand, doc), nil
}

// enrichFromDetail fills candidate fields from the dt/dd pairs of a song
// detail page. Fields already present from the search page are kept.
func enrichFromDetail(cand source.Candidate, doc *goquery.Document) source.Candidate {
	labels := doc.Find("div.meta dl.list dt")
	values := doc.Find("div.meta dl.list dd")
	n := labels.Length()
	if values.Length() < n {
		n = values.Length()
	}

	for i := 0; i < n; i++ {
		value := cleanText(values.Eq(i).Text())
		if value == "" {
			continue
		}
		switch cleanText(labels.Eq(i).Text()) {
		case "발매일": // release date, "2007.05.07"
			if yearStr, _, _ := strings.Cut(value, "."); yearStr != "" {
				if year, err := strconv.Atoi(yearStr); err == nil {
					cand.Year = year
				}
			}
		case "장르": // genre
			if cand.Genre == "" {
				cand.Genre = value
			}
		case "앨범": // album
			if cand.Album == "" {
				cand.Album = value
			}
		}
	}
	return cand
}

// cleanText collapses the non-breaking spaces the site pads labels with.
func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, " ", " "))
}

// FetchArtwork implements source.Source. It loads the song detail page
// referenced by the candidate and downloads the full-size cover image.
func (c *Client) FetchArtwork(ctx context.Context, cand source.Candidate) ([]byte, error) {
	if cand.ArtworkRef == "" {
		return nil, source.ErrNotFound
	}

	doc, err := c.fetch(ctx, cand.ArtworkRef)
	if err != nil {
		return nil, err
	}

	imgURL, ok := doc.Find("div#d_song_org img").First().Attr("src")
	if !ok || imgURL == "" {
		return nil, source.ErrNotFound
	}

	return c.fetchBytes(ctx, stripResizeSuffix(imgURL))
}

// stripResizeSuffix rewrites a thumbnail URL back to the original image.
func stripResizeSuffix(imgURL string) string {
	if pos := strings.Index(imgURL, resizeSuffix); pos >= 0 {
		return imgURL[:pos]
	}
	return imgURL
}
