package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csipbllm/backend-go/internal/knowledge"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Retrieve material chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}
	cmd.Flags().IntP("top", "k", knowledge.DefaultRetrievalK, "Number of chunks")
	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("top")
	query := strings.Join(args, " ")

	p, err := openPipeline(cmd.Context())
	if err != nil {
		exitErr("open pipeline", err)
	}
	defer p.close()

	if err := p.index.EnsureLoaded(cmd.Context()); err != nil {
		exitErr("build index", err)
	}
	results := p.index.Retrieve(cmd.Context(), query, k)
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
