package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain the similarity index",
}

var indexCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of indexed posts",
	Args:  cobra.NoArgs,
	RunE:  runIndexCount,
}

var indexIDsCmd = &cobra.Command{
	Use:   "ids",
	Short: "List the index keys",
	Args:  cobra.NoArgs,
	RunE:  runIndexIDs,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Drop the index and re-add every stored post",
	Args:  cobra.NoArgs,
	RunE:  runIndexRebuild,
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare every index vector with the stored embedding",
	Long: `Compare the vector held by the index for every post with the embedding
in the record store. Posts whose similarity falls below the verify threshold
(VERIFY_THRESHOLD, default 0.99) and ids present on only one side are
reported. Exits with an error when the two disagree.`,
	Args: cobra.NoArgs,
	RunE: runIndexVerify,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexCountCmd, indexIDsCmd, indexRebuildCmd, indexVerifyCmd)

	for _, c := range []*cobra.Command{indexCountCmd, indexIDsCmd, indexRebuildCmd, indexVerifyCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

func runIndexCount(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.service.IndexCount().Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(map[string]any{"backend": a.indexBackend(), "count": count})
	}
	fmt.Printf("Index (%s): %d posts\n", a.indexBackend(), count)
	return nil
}

func runIndexIDs(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.service.IndexIDs().Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(ids)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: jsonOutput})
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.service.RebuildIndex().Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(map[string]any{"rebuilt": true, "count": count})
	}
	fmt.Printf("Index rebuilt with %d posts\n", count)
	return nil
}

func runIndexVerify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.VerifyIndex().Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := outputJSON(report); err != nil {
			return err
		}
	} else {
		for _, p := range report.Posts {
			if !p.OK {
				fmt.Printf("Warning: post %d index vector differs from the store (similarity %.4f)\n", p.PostID, p.Similarity)
			}
		}
		for _, id := range report.MissingFromIndex {
			fmt.Printf("Warning: post %d is missing from the index\n", id)
		}
		for _, id := range report.MissingFromStore {
			fmt.Printf("Warning: index holds post %d which is not in the store\n", id)
		}
		fmt.Printf("Verified %d posts against threshold %.2f: %d mismatched\n",
			len(report.Posts), report.Threshold, report.Mismatched)
	}

	if !report.Consistent() {
		return errors.New("index and store disagree; run 'findme index rebuild'")
	}
	return nil
}
