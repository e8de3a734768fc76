package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
)

var (
	ingestEntity string
	ingestDocID  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Index documents into a patient's corpus",
	Long: `Extracts, chunks, embeds and indexes the given files into the
patient's corpus. The file type is taken from the extension. Failures
are reported per file and recorded on the document's status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestEntity, "entity", "e", "", "patient entity id (required)")
	ingestCmd.Flags().StringVar(&ingestDocID, "document-id", "", "document id (single file only, default random)")
	_ = ingestCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestDocID != "" && len(args) > 1 {
		return fmt.Errorf("--document-id only applies to a single file")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	reqs := make([]driving.IngestRequest, 0, len(args))
	for _, path := range args {
		docID := ingestDocID
		if docID == "" {
			docID = uuid.NewString()
		}
		reqs = append(reqs, driving.IngestRequest{
			DocumentID: docID,
			EntityID:   ingestEntity,
			FilePath:   path,
			FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			FileName:   filepath.Base(path),
		})
	}

	results, err := rt.pipeline.IngestBatch(cmd.Context(), reqs)
	if err != nil {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}

	failed := 0
	for i, res := range results {
		if res.Success {
			cmd.Printf("indexed %s: %d chunks (document %s)\n", args[i], res.ChunkCount, res.DocumentID)
		} else {
			failed++
			cmd.Printf("failed  %s: %s\n", args[i], res.ErrorMessage)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}
