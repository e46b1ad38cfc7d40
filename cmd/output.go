package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
)

// imageExtensions lists the file types picked up from directories.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// readImageFiles loads image files given on the command line.
func readImageFiles(paths []string) ([]posts.ImageInput, error) {
	images := make([]posts.ImageInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		images = append(images, posts.ImageInput{Name: filepath.Base(p), Data: data})
	}
	return images, nil
}

// imageFilesIn returns the image files directly inside dir, sorted by name.
func imageFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// newProgressBar creates a progress bar, or nil for JSON output.
func newProgressBar(count int, description, unit string, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// printPost prints one post in human-readable form.
func printPost(p database.Post, m config.MatchingConfig) {
	fmt.Printf("Post %d\n", p.PostID)
	fmt.Printf("  Images: %d\n", len(p.Images))
	for _, img := range p.Images {
		fmt.Printf("    - %s\n", img)
	}
	if len(p.Embedding) == 0 {
		fmt.Println("  Embedding: missing or corrupt")
	} else {
		fmt.Printf("  Embedding: %d dimensions\n", len(p.Embedding))
	}
	if len(p.Matches) == 0 {
		fmt.Println("  Matches: none")
		return
	}
	fmt.Printf("  Matches: %d\n", len(p.Matches))
	for _, match := range p.Matches {
		fmt.Printf("    - post %-8d %.4f  %s\n", match.PostID, match.Similarity,
			facematch.Classify(match.Similarity, m.OutlierHigh, m.OutlierLow))
	}
}

func printRecomputeStats(stats facematch.RecomputeStats) {
	fmt.Printf("Recomputed %d posts (%s mode): %d matches", stats.Posts, stats.Mode, stats.Matches)
	if stats.Corrupt > 0 {
		fmt.Printf(", %d corrupt skipped", stats.Corrupt)
	}
	if stats.IndexFallbacks > 0 {
		fmt.Printf(", %d index fallbacks", stats.IndexFallbacks)
	}
	fmt.Println()
}
