package melon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tagfetch/internal/source"
)

const searchHTML = `<html><body>
<table>
<tr>
  <th>header row without inputs</th>
</tr>
<tr>
  <td><input type="checkbox" class="input_check" value="1631371"></td>
  <td><a class="fc_gray" href="#" title="사랑아">사랑아</a></td>
  <td><div id="artistName"><a class="fc_mgray" href="/artist/123">The One</a></div></td>
  <td><a class="fc_mgray" href="/album/detail.htm?albumId=9">내 남자의 여자 OST</a></td>
</tr>
<tr>
  <td><input type="checkbox" class="input_check" value="2221"></td>
  <td><a class="fc_gray" href="#" title="Untitled Song">Untitled Song</a></td>
  <td><div id="artistName"><a class="fc_mgray" href="/artist/456"> Someone </a></div></td>
</tr>
<tr>
  <td><input type="checkbox" class="input_check" value="9999"></td>
  <td><a class="fc_gray" href="#">link without title attribute</a></td>
</tr>
</table>
</body></html>`

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RateLimit = time.Millisecond
	return NewWithConfig(cfg)
}

func TestSearchParsesSongRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search/song/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "The One 사랑아" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		w.Write([]byte(searchHTML))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	candidates, err := client.Search(context.Background(), source.Query{Artist: "The One", Title: "사랑아"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 (rows without id or title skipped)", len(candidates))
	}

	first := candidates[0]
	if first.Title != "사랑아" || first.Artist != "The One" {
		t.Errorf("unexpected first candidate: %+v", first)
	}
	if first.Album != "내 남자의 여자 OST" {
		t.Errorf("Album = %q", first.Album)
	}
	if first.ID != "1631371" {
		t.Errorf("ID = %q", first.ID)
	}
	if want := srv.URL + "/song/detail.htm?songId=1631371"; first.ArtworkRef != want {
		t.Errorf("ArtworkRef = %q, want %q", first.ArtworkRef, want)
	}
	if first.Source != "melon" {
		t.Errorf("Source = %q", first.Source)
	}

	second := candidates[1]
	if second.Artist != "Someone" {
		t.Errorf("artist not trimmed: %q", second.Artist)
	}
	if second.Album != "" {
		t.Errorf("Album = %q, want empty when no album link", second.Album)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	client := newTestClient("http://unused.invalid")
	_, err := client.Search(context.Background(), source.Query{})
	if !errors.Is(err, source.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestFetchArtworkFollowsDetailPage(t *testing.T) {
	art := []byte{0x89, 0x50, 0x4E, 0x47, 0x01, 0x02, 0x03}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/song/detail.htm"):
			// Thumbnail URL carrying a resize suffix.
			w.Write([]byte(`<html><body><div id="d_song_org"><img src="` +
				srv.URL + `/image/cover.jpg/melon/resize/120/quality/80"></div></body></html>`))
		case r.URL.Path == "/image/cover.jpg":
			w.Write(art)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	data, err := client.FetchArtwork(context.Background(), source.Candidate{
		ArtworkRef: srv.URL + "/song/detail.htm?songId=1631371",
	})
	if err != nil {
		t.Fatalf("FetchArtwork failed: %v", err)
	}
	if len(data) != len(art) {
		t.Errorf("got %d bytes, want %d", len(data), len(art))
	}
}

const detailHTML = `<html><body>
<div class="meta">
  <dl class="list">
    <dt>앨범</dt><dd>내 남자의 여자 OST</dd>
    <dt>발매일</dt><dd>2007.05.07</dd>
    <dt>장르</dt><dd>&nbsp;OST, 발라드&nbsp;</dd>
  </dl>
</div>
<div id="d_song_org"><img src="https://cdn/img/album.jpg/melon/resize/120"></div>
</body></html>`

func TestFetchDetailParsesYearAndGenre(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/song/detail.htm") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(detailHTML))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	got, err := client.FetchDetail(context.Background(), source.Candidate{
		Artist:     "The One",
		Title:      "사랑아",
		ArtworkRef: srv.URL + "/song/detail.htm?songId=1631371",
	})
	if err != nil {
		t.Fatalf("FetchDetail failed: %v", err)
	}
	if got.Year != 2007 {
		t.Errorf("Year = %d, want 2007", got.Year)
	}
	if got.Genre != "OST, 발라드" {
		t.Errorf("Genre = %q", got.Genre)
	}
	// The detail page fills the album only when search left it empty.
	if got.Album != "내 남자의 여자 OST" {
		t.Errorf("Album = %q", got.Album)
	}
	if got.Artist != "The One" || got.Title != "사랑아" {
		t.Errorf("search fields changed: %+v", got)
	}
}

func TestFetchDetailKeepsSearchAlbum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailHTML))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	got, err := client.FetchDetail(context.Background(), source.Candidate{
		Album:      "From Search",
		ArtworkRef: srv.URL + "/song/detail.htm?songId=1",
	})
	if err != nil {
		t.Fatalf("FetchDetail failed: %v", err)
	}
	if got.Album != "From Search" {
		t.Errorf("Album = %q, want the search page value kept", got.Album)
	}
}

func TestFetchDetailMissingRef(t *testing.T) {
	client := newTestClient("http://unused.invalid")
	_, err := client.FetchDetail(context.Background(), source.Candidate{})
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchArtworkMissingImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>no artwork here</p></body></html>`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchArtwork(context.Background(), source.Candidate{ArtworkRef: srv.URL + "/song/detail.htm?songId=1"})
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStripResizeSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn/img/album.jpg/melon/resize/120/quality/80", "https://cdn/img/album.jpg"},
		{"https://cdn/img/album.jpg", "https://cdn/img/album.jpg"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripResizeSuffix(tt.in); got != tt.want {
			t.Errorf("stripResizeSuffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
