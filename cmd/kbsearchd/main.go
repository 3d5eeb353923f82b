package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/kbsearch/internal/cli"
	"github.com/cloo-solutions/kbsearch/internal/cli/admin"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kbsearchd",
		Short:         "Knowledge search daemon",
		Long:          "kbsearchd serves hybrid lexical and semantic search over the knowledge base and manages its index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.AddHelpJSONFlag(root)
	root.AddCommand(admin.ServeCmd(), admin.ReindexCmd(), admin.MigrateCmd())
	return root
}

func main() {
	root := newRootCmd()

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	if handled, err := cli.HelpJSON(root, args, os.Stdout); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
