package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load or build the material index",
		Long:  "Load the index from the configured cache, or chunk, embed and cache the materials when no usable cache exists.",
		Args:  cobra.NoArgs,
		Run:   runBuild,
	}
	RootCmd.AddCommand(cmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	p, err := openPipeline(cmd.Context())
	if err != nil {
		exitErr("open pipeline", err)
	}
	defer p.close()

	if err := p.index.EnsureLoaded(cmd.Context()); err != nil {
		exitErr("build index", err)
	}
	printJSON(p.index.Stats())
}
