package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>...",
	Short: "Find posts that match the faces in the given images",
	Long: `Extract a face from each image and rank every stored post by its best
similarity to any of them. Only posts at or above the similarity threshold
are listed.

Examples:
  findme search sighting.jpg
  findme search a.jpg b.jpg --limit 10 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("limit", 0, "Show at most this many results (0 = all)")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

// SearchOutput is one ranked post in CLI output.
type SearchOutput struct {
	PostID         int64          `json:"post_id"`
	Similarity     float64        `json:"similarity"`
	BestImageIndex int            `json:"best_image_index"`
	Band           facematch.Band `json:"band"`
	Images         []string       `json:"images"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	limit := mustGetInt(cmd, "limit")

	images, err := readImageFiles(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{extract: true, quiet: jsonOutput})
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.service.Search(ctx, images)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	m := a.cfg.Matching
	out := make([]SearchOutput, len(results))
	for i, res := range results {
		out[i] = SearchOutput{
			PostID:         res.Post.PostID,
			Similarity:     res.Similarity,
			BestImageIndex: res.BestImageIndex,
			Band:           facematch.Classify(res.Similarity, m.OutlierHigh, m.OutlierLow),
			Images:         res.Post.Images,
		}
	}
	if jsonOutput {
		return outputJSON(out)
	}

	if len(out) == 0 {
		fmt.Printf("No posts at or above similarity %.2f\n", m.SimilarityThreshold)
		return nil
	}
	fmt.Printf("%d matching posts\n", len(out))
	for i, res := range out {
		fmt.Printf("%3d. post %-8d %.4f  %-8s (best image %s)\n",
			i+1, res.PostID, res.Similarity, res.Band, args[res.BestImageIndex-1])
	}
	return nil
}
