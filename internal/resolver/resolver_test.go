package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tagfetch/internal/scanner"
	"tagfetch/internal/source"
	"tagfetch/internal/tags"
)

type fakeSource struct {
	mu         sync.Mutex
	searches   int
	lastQuery  source.Query
	candidates []source.Candidate
	searchErr  error
	artwork    []byte
	artworkErr error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Search(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.lastQuery = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

func (f *fakeSource) FetchArtwork(ctx context.Context, cand source.Candidate) ([]byte, error) {
	if f.artworkErr != nil {
		return nil, f.artworkErr
	}
	return f.artwork, nil
}

func (f *fakeSource) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func incompleteFile(path string) *scanner.AudioFile {
	return &scanner.AudioFile{Path: path, Tag: &tags.Tag{Path: path}, Status: scanner.StatusIncomplete}
}

func TestResolveSkipsCompleteFilesWithoutSearching(t *testing.T) {
	src := &fakeSource{}
	r := New(src)

	file := &scanner.AudioFile{
		Path:   "/music/done.mp3",
		Tag:    &tags.Tag{Title: "T", Artist: "A", Album: "B"},
		Status: scanner.StatusComplete,
	}
	out := r.Resolve(context.Background(), file)
	if out.Kind != OutcomeSkipped || out.Reason != SkipAlreadyTagged {
		t.Fatalf("outcome = %v/%v, want skipped/already tagged", out.Kind, out.Reason)
	}
	if src.searchCount() != 0 {
		t.Errorf("source searched %d times for a complete file, want 0", src.searchCount())
	}
}

func TestResolveSkipsWhenNothingToSearchFor(t *testing.T) {
	src := &fakeSource{}
	r := New(src)

	// A bare track-number stem parses to an empty guess.
	out := r.Resolve(context.Background(), incompleteFile("/music/01-.mp3"))
	if out.Kind != OutcomeSkipped || out.Reason != SkipInvalidQuery {
		t.Fatalf("outcome = %v/%v, want skipped/invalid query", out.Kind, out.Reason)
	}
	if src.searchCount() != 0 {
		t.Errorf("source searched %d times for an empty query, want 0", src.searchCount())
	}
}

func TestResolveSourceErrorIsNotNoMatch(t *testing.T) {
	src := &fakeSource{searchErr: source.ErrUnavailable}
	r := New(src)

	out := r.Resolve(context.Background(), incompleteFile("/music/Artist - Title.mp3"))
	if out.Kind != OutcomeSkipped || out.Reason != SkipSourceError {
		t.Fatalf("outcome = %v/%v, want skipped/source error", out.Kind, out.Reason)
	}
	if !errors.Is(out.Err, source.ErrUnavailable) {
		t.Errorf("Err = %v, want wrapped ErrUnavailable", out.Err)
	}
}

func TestResolveEmptyResultIsNoMatch(t *testing.T) {
	src := &fakeSource{}
	r := New(src)

	out := r.Resolve(context.Background(), incompleteFile("/music/Artist - Title.mp3"))
	if out.Kind != OutcomeSkipped || out.Reason != SkipNoMatch {
		t.Fatalf("outcome = %v/%v, want skipped/no match", out.Kind, out.Reason)
	}
}

func TestResolveAmbiguousWhenScoresTie(t *testing.T) {
	exact := source.Candidate{Artist: "Daft Punk", Title: "One More Time", Album: "Discovery"}
	twin := exact
	twin.Album = "Discovery (Deluxe)"
	src := &fakeSource{candidates: []source.Candidate{exact, twin}}
	r := New(src)

	dir := t.TempDir()
	path := filepath.Join(dir, "Daft Punk - One More Time.mp3")
	body := []byte("pretend audio payload")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	out := r.Resolve(context.Background(), incompleteFile(path))
	if out.Kind != OutcomeAmbiguous {
		t.Fatalf("outcome = %v, want ambiguous for tied scores", out.Kind)
	}
	if len(out.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(out.Candidates))
	}

	// Nothing may be written on an ambiguous outcome.
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Error("file modified despite ambiguous outcome")
	}
}

func TestResolveAmbiguousCapsCandidates(t *testing.T) {
	var cands []source.Candidate
	for i := 0; i < 8; i++ {
		cands = append(cands, source.Candidate{Artist: "Daft Punk", Title: "One More Time"})
	}
	src := &fakeSource{candidates: cands}
	r := New(src)

	out := r.Resolve(context.Background(), incompleteFile("/music/Daft Punk - One More Time.mp3"))
	if out.Kind != OutcomeAmbiguous {
		t.Fatalf("outcome = %v, want ambiguous", out.Kind)
	}
	if len(out.Candidates) != maxAmbiguous {
		t.Errorf("got %d candidates, want cap of %d", len(out.Candidates), maxAmbiguous)
	}
}

func TestResolveAppliesConfidentMatch(t *testing.T) {
	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}
	src := &fakeSource{
		candidates: []source.Candidate{
			{
				Artist: "Daft Punk", Title: "One More Time", Album: "Discovery",
				AlbumArtist: "Daft Punk", TrackNumber: 1, Year: 2001, Genre: "House",
				ArtworkRef: "img-1",
			},
			{Artist: "Unrelated Band", Title: "Something Else Entirely"},
		},
		artwork: pngHeader,
	}
	r := New(src)

	dir := t.TempDir()
	path := filepath.Join(dir, "01 - Daft Punk - One More Time.mp3")
	if err := os.WriteFile(path, []byte("pretend audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := r.Resolve(context.Background(), incompleteFile(path))
	if out.Kind != OutcomeApplied {
		t.Fatalf("outcome = %v (reason %q, err %v), want applied", out.Kind, out.Reason, out.Err)
	}
	if out.Match == nil || out.Match.Candidate.Album != "Discovery" {
		t.Fatalf("unexpected match: %+v", out.Match)
	}

	got, err := tags.Read(path)
	if err != nil {
		t.Fatalf("reading back tags: %v", err)
	}
	if got.Artist != "Daft Punk" || got.Title != "One More Time" || got.Album != "Discovery" {
		t.Errorf("written tag = %+v", got)
	}
	if got.TrackNumber != 1 || got.Year != 2001 || got.Genre != "House" {
		t.Errorf("written tag numbers = track %d year %d genre %q", got.TrackNumber, got.Year, got.Genre)
	}
	if !got.HasArtwork {
		t.Error("artwork not embedded")
	}
}

func TestResolveCorruptFLACSkipsWithoutAbortingBatch(t *testing.T) {
	src := &fakeSource{candidates: []source.Candidate{
		{Artist: "Daft Punk", Title: "One More Time"},
	}}
	r := New(src)

	dir := t.TempDir()

	// A FLAC stream that ends right after its metadata blocks reads
	// fine but cannot be rewritten.
	cut := []byte("fLaC")
	cut = append(cut, 0x80, 0x00, 0x00, 0x22)
	cut = append(cut, make([]byte, 34)...)
	badPath := filepath.Join(dir, "Daft Punk - One More Time.flac")
	goodPath := filepath.Join(dir, "Daft Punk - One More Time.mp3")
	if err := os.WriteFile(badPath, cut, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(goodPath, []byte("pretend audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	files := []*scanner.AudioFile{incompleteFile(badPath), incompleteFile(goodPath)}
	outcomes := r.ResolveAll(context.Background(), files, 2, nil)

	if outcomes[0].Kind != OutcomeSkipped || outcomes[0].Reason != SkipWriteFailed {
		t.Fatalf("corrupt file outcome = %v/%q (err %v), want skipped/write failed",
			outcomes[0].Kind, outcomes[0].Reason, outcomes[0].Err)
	}
	if outcomes[1].Kind != OutcomeApplied {
		t.Fatalf("healthy file outcome = %v (reason %q, err %v), want applied",
			outcomes[1].Kind, outcomes[1].Reason, outcomes[1].Err)
	}
}

// detailerSource is a fakeSource whose search results need a follow-up
// detail lookup for year and genre.
type detailerSource struct {
	fakeSource
	detail    map[string]source.Candidate
	detailErr error
}

func (d *detailerSource) FetchDetail(ctx context.Context, cand source.Candidate) (source.Candidate, error) {
	if d.detailErr != nil {
		return cand, d.detailErr
	}
	if enriched, ok := d.detail[cand.Title]; ok {
		return enriched, nil
	}
	return cand, nil
}

func TestApplyEnrichesFromDetailLookup(t *testing.T) {
	sparse := source.Candidate{Artist: "The One", Title: "사랑아"}
	full := sparse
	full.Album = "내 남자의 여자 OST"
	full.Year = 2007
	full.Genre = "OST"

	src := &detailerSource{
		fakeSource: fakeSource{candidates: []source.Candidate{sparse}},
		detail:     map[string]source.Candidate{"사랑아": full},
	}
	r := New(src)

	path := filepath.Join(t.TempDir(), "The One - 사랑아.mp3")
	if err := os.WriteFile(path, []byte("pretend audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := r.Resolve(context.Background(), incompleteFile(path))
	if out.Kind != OutcomeApplied {
		t.Fatalf("outcome = %v (reason %q, err %v), want applied", out.Kind, out.Reason, out.Err)
	}

	got, err := tags.Read(path)
	if err != nil {
		t.Fatalf("reading back tags: %v", err)
	}
	if got.Year != 2007 || got.Genre != "OST" || got.Album != "내 남자의 여자 OST" {
		t.Errorf("detail fields not written: year %d genre %q album %q", got.Year, got.Genre, got.Album)
	}
}

func TestApplyDetailFailureStillWritesSearchFields(t *testing.T) {
	src := &detailerSource{
		fakeSource: fakeSource{candidates: []source.Candidate{
			{Artist: "Daft Punk", Title: "One More Time"},
		}},
		detailErr: source.ErrUnavailable,
	}
	r := New(src)

	path := filepath.Join(t.TempDir(), "Daft Punk - One More Time.mp3")
	if err := os.WriteFile(path, []byte("pretend audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := r.Resolve(context.Background(), incompleteFile(path))
	if out.Kind != OutcomeApplied {
		t.Fatalf("outcome = %v (reason %q, err %v), want applied", out.Kind, out.Reason, out.Err)
	}

	got, err := tags.Read(path)
	if err != nil {
		t.Fatalf("reading back tags: %v", err)
	}
	if got.Artist != "Daft Punk" || got.Title != "One More Time" {
		t.Errorf("written tag = %+v", got)
	}
}

func TestResolveArtworkFailureStillWritesText(t *testing.T) {
	src := &fakeSource{
		candidates: []source.Candidate{
			{Artist: "Daft Punk", Title: "One More Time", Album: "Discovery", ArtworkRef: "img-1"},
		},
		artworkErr: source.ErrUnavailable,
	}
	r := New(src)

	dir := t.TempDir()
	path := filepath.Join(dir, "Daft Punk - One More Time.mp3")
	if err := os.WriteFile(path, []byte("pretend audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := r.Resolve(context.Background(), incompleteFile(path))
	if out.Kind != OutcomeApplied {
		t.Fatalf("outcome = %v, want applied despite artwork failure", out.Kind)
	}
	got, err := tags.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Album != "Discovery" {
		t.Errorf("Album = %q, want text fields written", got.Album)
	}
	if got.HasArtwork {
		t.Error("artwork should be absent when the fetch failed")
	}
}

func TestResolveDryRunWritesNothing(t *testing.T) {
	src := &fakeSource{candidates: []source.Candidate{{Artist: "Daft Punk", Title: "One More Time"}}}
	r := New(src)
	r.DryRun = true

	dir := t.TempDir()
	path := filepath.Join(dir, "Daft Punk - One More Time.mp3")
	body := []byte("pretend audio payload")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	out := r.Resolve(context.Background(), incompleteFile(path))
	if out.Kind != OutcomeApplied || out.Match == nil {
		t.Fatalf("outcome = %v, want applied with match", out.Kind)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Error("dry run modified the file")
	}
}

func TestResolvePrefersExistingTagFields(t *testing.T) {
	src := &fakeSource{}
	r := New(src)

	file := &scanner.AudioFile{
		Path:   "/music/random-stem.mp3",
		Tag:    &tags.Tag{Artist: "Known Artist", Title: "Known Title"},
		Status: scanner.StatusIncomplete,
	}
	r.Resolve(context.Background(), file)

	if src.lastQuery.Artist != "Known Artist" || src.lastQuery.Title != "Known Title" {
		t.Errorf("query = %+v, want existing tag fields", src.lastQuery)
	}
}

func TestSwappedReadingScoresAsWellAsDirect(t *testing.T) {
	cand := source.Candidate{Artist: "Daft Punk", Title: "One More Time"}

	direct := []source.Query{{Artist: "Daft Punk", Title: "One More Time"}}
	swapped := []source.Query{
		{Artist: "One More Time", Title: "Daft Punk"},
		{Artist: "Daft Punk", Title: "One More Time"},
	}

	if scoreCandidate(swapped, cand) != scoreCandidate(direct, cand) {
		t.Error("swapped filename reading should recover the direct score")
	}
}

func TestScoreMonotonicity(t *testing.T) {
	cand := source.Candidate{Artist: "Daft Punk", Title: "One More Time"}

	full := scoreAgainst(source.Query{Artist: "Daft Punk", Title: "One More Time"}, cand)
	titleOnly := scoreAgainst(source.Query{Title: "One More Time"}, cand)

	if full != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", full)
	}
	if titleOnly >= full {
		t.Errorf("title-only %v must rank below confirmed artist %v", titleOnly, full)
	}
	if titleOnly < DefaultThreshold {
		t.Errorf("exact title-only %v should still clear the threshold %v", titleOnly, DefaultThreshold)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"One More Time", "one more time"},
		{"  Café  del  Mar ", "cafe del mar"},
		{"AC/DC", "ac dc"},
		{"Don't Stop Me Now!", "dont stop me now"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveAllAfterCancelStartsNothing(t *testing.T) {
	src := &fakeSource{}
	r := New(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []*scanner.AudioFile{
		incompleteFile("/music/a - b.mp3"),
		incompleteFile("/music/c - d.mp3"),
	}
	outcomes := r.ResolveAll(ctx, files, 2, nil)

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want one per file", len(outcomes))
	}
	for _, out := range outcomes {
		if out.Kind != OutcomeSkipped || out.Reason != SkipCancelled {
			t.Errorf("outcome = %v/%v, want skipped/cancelled", out.Kind, out.Reason)
		}
	}
	if src.searchCount() != 0 {
		t.Errorf("source searched %d times after cancel, want 0", src.searchCount())
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	src := &fakeSource{candidates: []source.Candidate{{Artist: "Daft Punk", Title: "One More Time"}}}
	r := New(src)
	r.FetchArtwork = false

	dir := t.TempDir()
	var files []*scanner.AudioFile
	names := []string{"Daft Punk - One More Time.mp3", "done.mp3", "01-.mp3"}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("pretend audio payload"), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, incompleteFile(path))
	}
	files[1].Status = scanner.StatusComplete

	outcomes := r.ResolveAll(context.Background(), files, 4, nil)
	if outcomes[0].Kind != OutcomeApplied {
		t.Errorf("outcomes[0] = %v, want applied", outcomes[0].Kind)
	}
	if outcomes[1].Reason != SkipAlreadyTagged {
		t.Errorf("outcomes[1] reason = %v, want already tagged", outcomes[1].Reason)
	}
	if outcomes[2].Reason != SkipInvalidQuery {
		t.Errorf("outcomes[2] reason = %v, want invalid query", outcomes[2].Reason)
	}
}
