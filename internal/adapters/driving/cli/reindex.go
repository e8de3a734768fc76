package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [entity-id]",
	Short: "Re-ingest all of a patient's documents",
	Long: `Runs every recorded document of the entity back through the
indexing pipeline. Chunk ids are deterministic, so existing chunks are
replaced in place and the corpus never duplicates.`,
	Args: cobra.ExactArgs(1),
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	docs, err := rt.metadata.DocumentStore().ListByEntity(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Printf("no documents recorded for %s\n", args[0])
		return nil
	}

	reqs := make([]driving.IngestRequest, 0, len(docs))
	for _, doc := range docs {
		reqs = append(reqs, driving.IngestRequest{
			DocumentID: doc.ID,
			EntityID:   doc.EntityID,
			FilePath:   doc.FilePath,
			FileType:   doc.FileType,
			FileName:   doc.FileName,
		})
	}

	results, err := rt.pipeline.IngestBatch(cmd.Context(), reqs)
	if err != nil {
		return fmt.Errorf("reindex interrupted: %w", err)
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
			cmd.Printf("failed %s: %s\n", res.DocumentID, res.ErrorMessage)
		}
	}
	cmd.Printf("reindexed %d of %d documents for %s\n", len(results)-failed, len(results), args[0])

	if failed > 0 {
		return fmt.Errorf("%d documents failed", failed)
	}
	return nil
}
