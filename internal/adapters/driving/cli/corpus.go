package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Administer per-patient corpora",
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patients with a corpus",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		ids, err := rt.corpora.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			cmd.Println("No corpora found.")
			return nil
		}
		for _, id := range ids {
			cmd.Println(id)
		}
		return nil
	},
}

var corpusCheckCmd = &cobra.Command{
	Use:   "check [entity-id]",
	Short: "Verify and repair a corpus index",
	Long: `Checks that the entity's vector index agrees with its chunk
store and rebuilds the index from the store when it does not.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		rebuilt, err := rt.corpora.EnsureConsistency(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("consistency check failed: %w", err)
		}
		if rebuilt {
			cmd.Printf("index for %s rebuilt from the chunk store\n", args[0])
		} else {
			cmd.Printf("index for %s is consistent\n", args[0])
		}
		return nil
	},
}

var corpusPurgeForce bool

var corpusPurgeCmd = &cobra.Command{
	Use:   "purge [entity-id]",
	Short: "Delete a patient's corpus",
	Long: `Removes the entity's corpus directory, including vectors,
chunk metadata and the sparse index. Document files and records are
kept; re-ingesting them rebuilds the corpus.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !corpusPurgeForce {
			return fmt.Errorf("purge is destructive; re-run with --force to confirm")
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.corpora.Purge(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("purging corpus: %w", err)
		}
		cmd.Printf("corpus for %s purged\n", args[0])
		return nil
	},
}

func init() {
	corpusPurgeCmd.Flags().BoolVar(&corpusPurgeForce, "force", false, "confirm deletion")
	corpusCmd.AddCommand(corpusListCmd, corpusCheckCmd, corpusPurgeCmd)
	rootCmd.AddCommand(corpusCmd)
}
