// Package cli implements the mediserve command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Anonymous1223334444/mediServe/internal/config"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
)

var (
	cfgFile string
	verbose bool

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "mediserve",
	Short: "Per-patient document retrieval and question answering",
	Long: `mediserve indexes a patient's medical documents into a private
hybrid corpus and answers their questions grounded in those documents.

Each patient gets an isolated corpus combining dense embeddings with a
BM25 full-text index; answers are generated in French from retrieved
passages only.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default "+config.DefaultConfigFile+" in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the CLI.
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}
