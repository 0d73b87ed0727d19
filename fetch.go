package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cheggaaa/pb/v3"
	"github.com/jedib0t/go-pretty/v6/table"

	"tagfetch/internal/config"
	"tagfetch/internal/resolver"
	"tagfetch/internal/scanner"
	"tagfetch/internal/shared"
	"tagfetch/internal/source"
	"tagfetch/internal/source/melon"
	"tagfetch/internal/source/spotify"
	"tagfetch/internal/source/subsonic"
)

// buildSource constructs the selected catalog backend. Missing credentials
// fail here, before any file is scanned.
func buildSource(cfg *config.Config, name string) (source.Source, error) {
	switch name {
	case "spotify":
		if !cfg.HasSpotifyCredentials() {
			return nil, fmt.Errorf("spotify credentials are not configured; run 'tagfetch config' first")
		}
		return spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret), nil
	case "melon":
		return melon.New(), nil
	case "subsonic":
		if !cfg.HasSubsonicCredentials() {
			return nil, fmt.Errorf("subsonic server is not configured; run 'tagfetch config' first")
		}
		return subsonic.New(cfg.SubsonicURL, cfg.SubsonicUsername, cfg.SubsonicPassword), nil
	}
	return nil, fmt.Errorf("unknown source %q (want spotify, melon or subsonic)", name)
}

// runFetch resolves every incomplete file under root against the selected
// catalog and reports one outcome per file.
func runFetch(ctx context.Context, root string) error {
	cfg := loadConfig()

	name := sourceName
	if name == "" {
		name = cfg.DefaultSource
	}
	src, err := buildSource(cfg, name)
	if err != nil {
		return err
	}

	files, err := scanner.Collect(root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		shared.ColorInfo.Println("No audio files found under", root)
		return nil
	}

	r := resolver.New(src)
	r.DryRun = dryRun

	parallel := workers
	if parallel <= 0 {
		parallel = cfg.Parallelism
	}

	shared.ColorInfo.Printf("🔎 Checking %d files against %s\n", len(files), src.Name())

	var bar *pb.ProgressBar
	if shared.IsTTY() && len(files) > 1 {
		bar = pb.StartNew(len(files))
	}
	outcomes := r.ResolveAll(ctx, files, parallel, func(out resolver.Outcome) {
		if bar != nil {
			bar.Increment()
		}
	})
	if bar != nil {
		bar.Finish()
	}

	applied, skipped, ambiguous := 0, 0, 0
	for _, out := range outcomes {
		name := out.File.Filename()
		switch out.Kind {
		case resolver.OutcomeApplied:
			applied++
			score := ""
			if verbose {
				score = fmt.Sprintf(" (score %.2f)", out.Match.Score)
			}
			if dryRun {
				shared.ColorInfo.Printf("🔍 Would tag %s as %s%s\n", name, out.Match.Candidate.Summary(), score)
			} else {
				shared.ColorSuccess.Printf("✅ %s → %s%s\n", name, out.Match.Candidate.Summary(), score)
				maybeRename(out.File)
			}

		case resolver.OutcomeAmbiguous:
			if autoYes || dryRun {
				ambiguous++
				shared.ColorWarning.Printf("⚠️ No confident match for %s (%d candidates)\n", name, len(out.Candidates))
				continue
			}
			cand := promptChoice(out)
			if cand == nil {
				ambiguous++
				continue
			}
			if err := r.Apply(ctx, out.File, *cand); err != nil {
				skipped++
				shared.ColorError.Printf("❌ Failed to write %s: %v\n", name, err)
				continue
			}
			applied++
			shared.ColorSuccess.Printf("✅ %s → %s\n", name, cand.Summary())
			maybeRename(out.File)

		case resolver.OutcomeSkipped:
			skipped++
			switch out.Reason {
			case resolver.SkipAlreadyTagged:
				// Quietly counted; already-finished files are not news.
				if verbose {
					shared.ColorInfo.Printf("⏭️  %s: already tagged\n", name)
				}
			case resolver.SkipSourceError, resolver.SkipWriteFailed:
				shared.ColorError.Printf("❌ %s: %s (%v)\n", name, out.Reason, out.Err)
			case resolver.SkipCancelled:
			default:
				shared.ColorWarning.Printf("⚠️ %s: %s\n", name, out.Reason)
			}
		}
	}

	fmt.Println()
	shared.ColorInfo.Printf("📊 %d tagged, %d skipped, %d left ambiguous\n", applied, skipped, ambiguous)
	if ctx.Err() != nil {
		shared.ColorWarning.Println("⚠️ Interrupted; remaining files were not processed.")
	}
	return nil
}

// promptChoice shows the strongest candidates for one file and lets the
// user pick one or skip.
func promptChoice(out resolver.Outcome) *source.Candidate {
	shared.ColorPrompt.Printf("\n❓ %s has no confident match:\n", out.File.Filename())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Artist", "Title", "Album", "Year", "Score"})
	for i, sc := range out.Candidates {
		year := ""
		if sc.Candidate.Year > 0 {
			year = strconv.Itoa(sc.Candidate.Year)
		}
		t.AppendRow(table.Row{
			i + 1,
			shared.TruncateString(sc.Candidate.Artist, columnWidth),
			shared.TruncateString(sc.Candidate.Title, columnWidth),
			shared.TruncateString(sc.Candidate.Album, columnWidth),
			year,
			fmt.Sprintf("%.2f", sc.Score),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	answer := shared.GetUserInput(fmt.Sprintf("Pick 1-%d or s to skip", len(out.Candidates)), "s")
	idx, err := strconv.Atoi(answer)
	if err != nil || idx < 1 || idx > len(out.Candidates) {
		return nil
	}
	return &out.Candidates[idx-1].Candidate
}

// maybeRename applies the --rename flag to a freshly tagged file.
func maybeRename(f *scanner.AudioFile) {
	if !renameToo {
		return
	}
	if newPath, err := renameFromTags(f); err != nil {
		shared.ColorWarning.Printf("⚠️ Could not rename %s: %v\n", f.Filename(), err)
	} else if newPath != "" {
		shared.ColorInfo.Printf("📝 Renamed to %s\n", newPath)
	}
}
