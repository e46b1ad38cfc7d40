package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute the matches of every post",
	Long: `Rewrite the cached matches of every post from the stored embeddings and
save the store. Use it after changing the similarity threshold.`,
	Args: cobra.NoArgs,
	RunE: runRecompute,
}

func init() {
	rootCmd.AddCommand(recomputeCmd)

	recomputeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRecompute(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: jsonOutput})
	if err != nil {
		return err
	}
	defer a.Close()

	// The bar is created once the total is known; progress runs on the
	// service goroutine, one call at a time.
	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if jsonOutput {
			return
		}
		if bar == nil {
			bar = newProgressBar(total, "Recomputing matches", "posts", false)
		}
		_ = bar.Set(done)
	}

	stats, err := a.service.Recompute(progress).Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(stats)
	}
	if bar != nil {
		fmt.Println()
	}
	printRecomputeStats(stats)
	return nil
}
