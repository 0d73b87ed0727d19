package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"tagfetch/internal/scanner"
	"tagfetch/internal/shared"
)

const columnWidth = 40

// runScan lists every audio file under root with its tag state.
func runScan(root string) error {
	files, err := scanner.Collect(root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		shared.ColorInfo.Println("No audio files found under", root)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File", "Title", "Artist", "Album", "Status"})

	counts := map[scanner.Status]int{}
	for _, f := range files {
		counts[f.Status]++

		title, artist, album := "", "", ""
		if f.Tag != nil {
			title = shared.TruncateString(f.Tag.Title, columnWidth)
			artist = shared.TruncateString(f.Tag.Artist, columnWidth)
			album = shared.TruncateString(f.Tag.Album, columnWidth)
		}
		t.AppendRow(table.Row{
			shared.TruncateString(f.Filename(), columnWidth),
			title, artist, album, f.Status.String(),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Println()
	shared.ColorInfo.Printf("📊 %d files: ", len(files))
	shared.ColorSuccess.Printf("%d complete", counts[scanner.StatusComplete])
	fmt.Print(", ")
	shared.ColorWarning.Printf("%d incomplete", counts[scanner.StatusIncomplete])
	if n := counts[scanner.StatusUnreadable]; n > 0 {
		fmt.Print(", ")
		shared.ColorError.Printf("%d unreadable", n)
	}
	fmt.Println()
	return nil
}
