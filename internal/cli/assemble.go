package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csipbllm/backend-go/internal/knowledge"
)

func init() {
	cmd := &cobra.Command{
		Use:   "assemble [question]",
		Short: "Show the context a chat request would receive",
		Long:  "Retrieve chunks for the question and run relevance evaluation exactly as /chat does.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAssemble,
	}
	cmd.Flags().String("mode", knowledge.ModeAccurate, "Assembly mode: accurate or fast")
	cmd.Flags().IntP("top", "k", knowledge.DefaultRetrievalK, "Number of chunks")
	cmd.Flags().Bool("context", false, "Print the assembled context text")
	RootCmd.AddCommand(cmd)
}

func runAssemble(cmd *cobra.Command, args []string) {
	mode, _ := cmd.Flags().GetString("mode")
	k, _ := cmd.Flags().GetInt("top")
	showContext, _ := cmd.Flags().GetBool("context")
	question := strings.Join(args, " ")

	p, err := openPipeline(cmd.Context())
	if err != nil {
		exitErr("open pipeline", err)
	}
	defer p.close()

	if err := p.index.EnsureLoaded(cmd.Context()); err != nil {
		exitErr("build index", err)
	}
	chunks := p.index.Retrieve(cmd.Context(), question, k)
	decision := p.evaluator.Assemble(cmd.Context(), question, chunks, mode)

	printJSON(map[string]interface{}{
		"rag_mode": decision.Outcome,
		"used_rag": decision.UsedRAG,
		"sources":  decision.Sources,
	})
	if showContext {
		fmt.Println()
		fmt.Println(decision.ContextText)
	}
}
