// Package resolver matches incompletely tagged files against a catalog
// source and commits confident matches back into the files.
package resolver

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"tagfetch/internal/filename"
	"tagfetch/internal/scanner"
	"tagfetch/internal/shared"
	"tagfetch/internal/source"
	"tagfetch/internal/tags"
)

const (
	// DefaultThreshold is the minimum score a best match needs before it
	// is applied without confirmation.
	DefaultThreshold = 0.65
	// DefaultMargin is the lead the best match needs over the runner-up.
	DefaultMargin = 0.10

	maxAmbiguous = 5
	maxWorkers   = 4
)

// OutcomeKind classifies what the resolver did with one file.
type OutcomeKind int

const (
	// OutcomeSkipped means nothing was written; Reason says why.
	OutcomeSkipped OutcomeKind = iota
	// OutcomeApplied means the best match was written into the file.
	OutcomeApplied
	// OutcomeAmbiguous means no candidate was confident enough to apply
	// automatically; Candidates holds the strongest ones.
	OutcomeAmbiguous
)

// SkipReason explains an OutcomeSkipped.
type SkipReason string

const (
	SkipAlreadyTagged SkipReason = "already tagged"
	SkipUnreadable    SkipReason = "unreadable"
	SkipInvalidQuery  SkipReason = "nothing to search for"
	SkipSourceError   SkipReason = "source error"
	SkipNoMatch       SkipReason = "no match"
	SkipWriteFailed   SkipReason = "write failed"
	SkipCancelled     SkipReason = "cancelled"
)

// Outcome is the result of resolving one file. Exactly one outcome exists
// per input file; a failure never aborts the rest of the batch.
type Outcome struct {
	File       *scanner.AudioFile
	Kind       OutcomeKind
	Reason     SkipReason
	Match      *Scored
	Candidates []Scored
	Err        error
}

// Resolver drives the match pipeline against one catalog source.
type Resolver struct {
	Source    source.Source
	Threshold float64
	Margin    float64
	// FetchArtwork controls whether an applied match also embeds cover
	// art. Artwork failures degrade to a text-only write.
	FetchArtwork bool
	// DryRun reports what would be applied without touching any file.
	DryRun bool
}

// New returns a resolver with the default confidence settings.
func New(src source.Source) *Resolver {
	return &Resolver{
		Source:       src,
		Threshold:    DefaultThreshold,
		Margin:       DefaultMargin,
		FetchArtwork: true,
	}
}

// Resolve runs the full pipeline for one file: decide whether to search,
// search, score, and either apply the winner or report ambiguity.
func (r *Resolver) Resolve(ctx context.Context, file *scanner.AudioFile) Outcome {
	switch file.Status {
	case scanner.StatusComplete:
		// Already tagged files are settled before any network traffic.
		return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipAlreadyTagged}
	case scanner.StatusUnreadable:
		return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipUnreadable}
	}

	readings, query := buildQuery(file)
	if query.Empty() {
		return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipInvalidQuery}
	}

	candidates, err := r.Source.Search(ctx, query)
	if err != nil {
		if errors.Is(err, source.ErrInvalidQuery) {
			return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipInvalidQuery, Err: err}
		}
		// A failing source is not the same as a searched-and-missing
		// track.
		return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipSourceError, Err: err}
	}
	if len(candidates) == 0 {
		return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipNoMatch}
	}

	scored := rank(readings, candidates)
	best := scored[0]

	confident := best.Score >= r.Threshold &&
		(len(scored) == 1 || best.Score-scored[1].Score >= r.Margin)
	if !confident {
		top := scored
		if len(top) > maxAmbiguous {
			top = top[:maxAmbiguous]
		}
		return Outcome{File: file, Kind: OutcomeAmbiguous, Candidates: top}
	}

	if r.DryRun {
		return Outcome{File: file, Kind: OutcomeApplied, Match: &best}
	}
	if err := r.Apply(ctx, file, best.Candidate); err != nil {
		return Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipWriteFailed, Err: err}
	}
	return Outcome{File: file, Kind: OutcomeApplied, Match: &best}
}

// Apply writes one candidate's fields into the file, keeping existing tag
// values the candidate does not cover. Used both for confident matches and
// for a user-confirmed pick out of an ambiguous set.
func (r *Resolver) Apply(ctx context.Context, file *scanner.AudioFile, cand source.Candidate) error {
	// A detail lookup is best effort; the search result alone is enough
	// to tag the file.
	if d, ok := r.Source.(source.Detailer); ok {
		if enriched, err := d.FetchDetail(ctx, cand); err == nil {
			cand = enriched
		}
	}

	update := &tags.Tag{
		Title:       cand.Title,
		Artist:      cand.Artist,
		Album:       cand.Album,
		AlbumArtist: cand.AlbumArtist,
		TrackNumber: cand.TrackNumber,
		Year:        cand.Year,
		Genre:       cand.Genre,
	}

	if r.FetchArtwork && cand.ArtworkRef != "" {
		art, err := r.Source.FetchArtwork(ctx, cand)
		if err != nil {
			shared.ColorWarning.Printf("Could not fetch artwork for %s: %v\n", file.Filename(), err)
		} else {
			update.CoverArt = art
		}
	}

	merged := tags.Merge(file.Tag, update)
	if err := tags.Write(file.Path, merged); err != nil {
		return err
	}
	file.Refresh()
	return nil
}

// buildQuery derives the search query for a file. Existing tag fields win
// over filename guesses; the filename fills whatever is still missing.
// The returned readings include the swapped artist/title interpretation so
// scoring is robust to "Title - Artist" filenames.
func buildQuery(file *scanner.AudioFile) ([]source.Query, source.Query) {
	guess := filename.Parse(file.Path)

	query := source.Query{}
	if file.Tag != nil {
		query.Artist = file.Tag.Artist
		query.Title = file.Tag.Title
	}
	if query.Artist == "" {
		query.Artist = guess.Artist
	}
	if query.Title == "" {
		query.Title = guess.Title
	}

	readings := []source.Query{query}
	if query.Artist != "" && query.Title != "" && query.Artist != query.Title {
		readings = append(readings, query.Swapped())
	}
	return readings, query
}

// ResolveAll resolves a batch with at most workers files in flight.
// Outcomes are returned in input order; onResult fires as each file
// finishes. After ctx is cancelled no new file is started, but a file
// already past its search runs to completion so no write is torn.
func (r *Resolver) ResolveAll(ctx context.Context, files []*scanner.AudioFile, workers int, onResult func(Outcome)) []Outcome {
	if workers < 1 {
		workers = 1
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	sem := semaphore.NewWeighted(int64(workers))
	outcomes := make([]Outcome, len(files))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, file := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{File: file, Kind: OutcomeSkipped, Reason: SkipCancelled, Err: ctx.Err()}
			if onResult != nil {
				onResult(outcomes[i])
			}
			continue
		}

		wg.Add(1)
		go func(i int, file *scanner.AudioFile) {
			defer wg.Done()
			defer sem.Release(1)

			out := r.Resolve(ctx, file)

			mu.Lock()
			outcomes[i] = out
			if onResult != nil {
				onResult(out)
			}
			mu.Unlock()
		}(i, file)
	}

	wg.Wait()
	return outcomes
}
