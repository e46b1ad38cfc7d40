package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/database"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/facematch"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Manage missing-person posts",
}

var postAddCmd = &cobra.Command{
	Use:   "add <post-id> <image>...",
	Short: "Add a post from one or more face images",
	Long: `Extract a face from each image, pick the representative embedding,
store the images and recompute the matches of every post.

Examples:
  findme post add 1042 photo1.jpg photo2.jpg
  findme post add 1042 photo1.jpg --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPostAdd,
}

var postGetCmd = &cobra.Command{
	Use:   "get <post-id>",
	Short: "Show one post and its matches",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostGet,
}

var postListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every post, newest id first",
	Args:  cobra.NoArgs,
	RunE:  runPostList,
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete a post, its images and every match pointing at it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostDelete,
}

var postImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Add one post per numeric subdirectory",
	Long: `Walk <dir> and add a post for every subdirectory whose name is a
positive integer, using the images directly inside it. Existing post ids
and folders without a detectable face are reported and skipped.

Example layout:
  posts/1001/a.jpg
  posts/1001/b.png
  posts/1002/front.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runPostImport,
}

func init() {
	rootCmd.AddCommand(postCmd)
	postCmd.AddCommand(postAddCmd, postGetCmd, postListCmd, postDeleteCmd, postImportCmd)

	for _, c := range []*cobra.Command{postAddCmd, postGetCmd, postListCmd, postDeleteCmd, postImportCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

func parsePostID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q: must be a positive integer", raw)
	}
	return id, nil
}

func runPostAdd(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	postID, err := parsePostID(args[0])
	if err != nil {
		return err
	}
	images, err := readImageFiles(args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{extract: true, quiet: jsonOutput})
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.saveIndex()

	req := posts.AddRequest{PostID: postID, Images: images}
	if !jsonOutput {
		req.Progress = func(msg string) { fmt.Printf("  %s\n", msg) }
	}
	res, err := a.service.Add(req).Wait(ctx)
	if err != nil {
		return fmt.Errorf("adding post %d: %w", postID, err)
	}

	if jsonOutput {
		return outputJSON(res)
	}
	fmt.Printf("Added post %d (%s embedding, %d images stored, %d dropped)\n",
		postID, res.Selection.Method, len(res.Post.Images), res.Dropped)
	printPost(res.Post, a.cfg.Matching)
	return nil
}

func runPostGet(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	postID, err := parsePostID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.service.Get(postID).Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(p)
	}
	printPost(p, a.cfg.Matching)
	return nil
}

func runPostList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.service.List().Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(all)
	}

	fmt.Printf("%d posts\n", len(all))
	for _, p := range all {
		fmt.Printf("  %-10d images: %-3d matches: %d\n", p.PostID, len(p.Images), len(p.Matches))
	}
	return nil
}

func runPostDelete(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	postID, err := parsePostID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{quiet: jsonOutput})
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.saveIndex()

	stats, err := a.service.Delete(postID).Wait(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(map[string]any{"deleted": postID, "recompute": stats})
	}
	fmt.Printf("Deleted post %d\n", postID)
	printRecomputeStats(stats)
	return nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Added     []int64           `json:"added"`
	Skipped   map[string]string `json:"skipped"`
	Failed    map[string]string `json:"failed"`
	Directory string            `json:"directory"`
}

// importCandidates returns the numeric subdirectories of dir in ascending id order.
func importCandidates(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := parsePostID(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func runPostImport(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	dir := args[0]

	ids, err := importCandidates(dir)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no numeric post folders found in %s", dir)
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig(cmd), appOptions{extract: true, quiet: jsonOutput})
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.saveIndex()

	if err := a.extractor.Available(); err != nil {
		return err
	}

	result := ImportResult{
		Added:     []int64{},
		Skipped:   map[string]string{},
		Failed:    map[string]string{},
		Directory: dir,
	}
	bar := newProgressBar(len(ids), "Importing posts", "posts", jsonOutput)

	for _, id := range ids {
		key := strconv.FormatInt(id, 10)
		importPost(ctx, a, filepath.Join(dir, key), id, &result)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("\nImported %d posts, skipped %d, failed %d\n", len(result.Added), len(result.Skipped), len(result.Failed))
	for id, reason := range result.Skipped {
		fmt.Printf("  skipped %s: %s\n", id, reason)
	}
	for id, reason := range result.Failed {
		fmt.Printf("  failed %s: %s\n", id, reason)
	}
	return nil
}

// importPost adds one folder and records the outcome. Images beyond the
// configured maximum are ignored.
func importPost(ctx context.Context, a *app, folder string, id int64, result *ImportResult) {
	key := strconv.FormatInt(id, 10)

	files, err := imageFilesIn(folder)
	if err != nil {
		result.Failed[key] = err.Error()
		return
	}
	if len(files) == 0 {
		result.Skipped[key] = "no images"
		return
	}
	if limit := a.cfg.Matching.MaxImages; len(files) > limit {
		files = files[:limit]
	}

	images, err := readImageFiles(files)
	if err != nil {
		result.Failed[key] = err.Error()
		return
	}

	_, err = a.service.Add(posts.AddRequest{PostID: id, Images: images}).Wait(ctx)
	switch {
	case err == nil:
		result.Added = append(result.Added, id)
	case errors.Is(err, database.ErrDuplicatePostID):
		result.Skipped[key] = "already exists"
	case errors.Is(err, facematch.ErrNoFaceDetected):
		result.Skipped[key] = "no face detected"
	default:
		result.Failed[key] = err.Error()
	}
}
