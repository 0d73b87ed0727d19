package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"tagfetch/internal/config"
	"tagfetch/internal/shared"
)

const toolVersion = "1.0.0"

var (
	sourceName string
	autoYes    bool
	workers    int
	renameToo  bool
	dryRun     bool
	verbose    bool

	editTitle       string
	editArtist      string
	editAlbum       string
	editAlbumArtist string
	editTrack       int
	editYear        int
	editGenre       string
	editAlbumArt    string
)

var rootCmd = &cobra.Command{
	Use:     "tagfetch",
	Version: toolVersion,
	Short:   "Fix missing music tags from online catalogs.",
	Long: fmt.Sprintf(`tagfetch (v%s)

Scans a music folder for MP3 and FLAC files with incomplete tags, looks the
tracks up in an online catalog (Spotify, Melon or a personal Subsonic
server), and writes the matched metadata and cover art back into the files.
Files are only ever replaced atomically: an interrupted run never leaves a
half-written file behind.`, toolVersion),
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "List audio files and their tag completeness.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScan(args[0]); err != nil {
			shared.ColorError.Printf("❌ Scan failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [path]",
	Short: "Look up incomplete files in a catalog and write the matches.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runFetch(ctx, path); err != nil {
			shared.ColorError.Printf("❌ Fetch failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Set tag fields on a single file by hand.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runEdit(args[0]); err != nil {
			shared.ColorError.Printf("❌ Edit failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename [path]",
	Short: "Rename tagged files to \"Artist - Title\".",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRename(args[0]); err != nil {
			shared.ColorError.Printf("❌ Rename failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Interactively set up credentials and defaults.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConfig(); err != nil {
			shared.ColorError.Printf("❌ Config failed: %v\n", err)
			os.Exit(1)
		}
	},
}

// loadConfig reads the config file when present and falls back to defaults
// otherwise. A missing file is not an error; fetch checks credentials itself.
func loadConfig() *config.Config {
	cfg := config.DefaultConfig()
	path := config.DefaultPath()
	if shared.FileExists(path) {
		if err := config.LoadConfig(path, cfg); err != nil {
			shared.ColorWarning.Printf("⚠️ Ignoring unreadable config %s: %v\n", path, err)
		}
	}
	return cfg
}

// runConfig walks through every setting with the current value as default
// and saves the result.
func runConfig() error {
	cfg := loadConfig()

	shared.ColorInfo.Println("✨ Setting up tagfetch. Leave a field empty to keep the shown value.")

	cfg.DefaultSource = shared.GetUserInput("Default catalog source (spotify, melon, subsonic)", cfg.DefaultSource)
	cfg.SpotifyClientID = shared.GetUserInput("Spotify client ID", cfg.SpotifyClientID)
	cfg.SpotifyClientSecret = shared.GetUserInput("Spotify client secret", cfg.SpotifyClientSecret)
	cfg.SubsonicURL = shared.GetUserInput("Subsonic server URL", cfg.SubsonicURL)
	cfg.SubsonicUsername = shared.GetUserInput("Subsonic username", cfg.SubsonicUsername)
	cfg.SubsonicPassword = shared.GetUserInput("Subsonic password", cfg.SubsonicPassword)

	parallelism := shared.GetUserInput("Parallel lookups", strconv.Itoa(cfg.Parallelism))
	if p, err := strconv.Atoi(parallelism); err == nil && p > 0 {
		cfg.Parallelism = p
	} else {
		shared.ColorWarning.Printf("⚠️ Invalid parallelism %q, keeping %d.\n", parallelism, cfg.Parallelism)
	}

	path := config.DefaultPath()
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	shared.ColorSuccess.Println("✅ Configuration saved to", path)
	return nil
}

func init() {
	fetchCmd.Flags().StringVar(&sourceName, "source", "", "Catalog source: spotify, melon or subsonic (default from config)")
	fetchCmd.Flags().BoolVarP(&autoYes, "yes", "y", false, "Never prompt; skip files without a confident match")
	fetchCmd.Flags().IntVar(&workers, "workers", 0, "Parallel lookups (default from config)")
	fetchCmd.Flags().BoolVar(&renameToo, "rename", false, "Also rename matched files to \"Artist - Title\"")
	fetchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report matches without writing anything")
	fetchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report every file, including already tagged ones, with match scores")

	editCmd.Flags().StringVar(&editTitle, "title", "", "Track title")
	editCmd.Flags().StringVar(&editArtist, "artist", "", "Artist")
	editCmd.Flags().StringVar(&editAlbum, "album", "", "Album")
	editCmd.Flags().StringVar(&editAlbumArtist, "album-artist", "", "Album artist")
	editCmd.Flags().IntVar(&editTrack, "track", 0, "Track number")
	editCmd.Flags().IntVar(&editYear, "year", 0, "Release year")
	editCmd.Flags().StringVar(&editGenre, "genre", "", "Genre")
	editCmd.Flags().StringVar(&editAlbumArt, "album-art", "", "Path to a cover image to embed")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	shared.InitializeColors()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
