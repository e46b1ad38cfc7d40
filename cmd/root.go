package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "findme",
	Short: "Face matching for missing-person posts",
	Long: `FindMe keeps a store of missing-person posts, each with a representative
face embedding, and links posts whose faces look alike. New photos can be
searched against every stored post.

Configuration comes from the environment (and an optional .env file);
the global flags below override it.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("store", "", "Record store backend: json, sqlite or postgres (env STORE_BACKEND)")
	rootCmd.PersistentFlags().String("index", "", "Similarity index backend: hnsw, qdrant, pgvector or none (env INDEX_BACKEND)")
	rootCmd.PersistentFlags().Float64("threshold", 0, "Minimum cosine similarity for a match (env SIMILARITY_THRESHOLD)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if cmd.Flags().Changed("store") {
		cfg.Store.Backend = mustGetString(cmd, "store")
	}
	if cmd.Flags().Changed("index") {
		cfg.Index.Backend = mustGetString(cmd, "index")
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Matching.SimilarityThreshold = mustGetFloat64(cmd, "threshold")
	}
	return cfg
}
