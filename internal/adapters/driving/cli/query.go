package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
)

var (
	queryEntity  string
	querySession string
	queryTopK    int
	queryRaw     bool
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question against a patient's corpus",
	Long: `Retrieves grounding passages from the patient's corpus and
generates an answer. With --raw, prints the ranked passages instead of
calling the generation backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryEntity, "entity", "e", "", "patient entity id (required)")
	queryCmd.Flags().StringVar(&querySession, "session", "", "conversation session id")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of passages to retrieve")
	queryCmd.Flags().BoolVar(&queryRaw, "raw", false, "print ranked passages without generation")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	_ = queryCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if queryRaw {
		return runRawQuery(cmd, rt, args[0])
	}

	resp, err := rt.answerer.Answer(cmd.Context(), driving.AnswerRequest{
		EntityID:  queryEntity,
		Query:     args[0],
		SessionID: querySession,
	})
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, resp)
	}
	cmd.Println(resp.Answer)
	return nil
}

func runRawQuery(cmd *cobra.Command, rt *runtime, question string) error {
	opts := retrievalDefaults(rt.cfg)
	if queryTopK > 0 {
		opts.TopK = queryTopK
	}

	resp, err := rt.retriever.Retrieve(cmd.Context(), queryEntity, question, opts)
	if err != nil {
		return fmt.Errorf("retrieving: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, resp)
	}

	if len(resp.Results) == 0 {
		cmd.Println("No passages found.")
		return nil
	}
	for i, r := range resp.Results {
		cmd.Printf("[%d] %s (fused %.3f, dense %.3f, sparse %.3f)\n",
			i+1, r.Chunk.ID, r.FusedScore, r.DenseScore, r.SparseScore)
		if r.Chunk.SourceType != domain.SourceTypeText {
			cmd.Printf("    source: %s\n", r.Chunk.SourceType)
		}
		cmd.Printf("    %s\n\n", r.Chunk.Text)
	}
	if len(resp.Degradations) > 0 {
		cmd.Printf("degradations: %v\n", resp.Degradations)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
