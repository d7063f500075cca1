package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	json bool
}

// NewRootCommand builds the odatad command tree. Each call returns a fresh
// tree with its own flag state.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "odatad",
		Short: "odatad serves OData-style entity sets over HTTP",
		Long: `odatad serves the Customers and Orders entity sets from an in-memory store.

Collections support $filter, $orderby, $skip, $top, $count, $select, $expand
and $apply. Entities are created with POST, replaced with PUT, merged with
PATCH and linked through /$ref endpoints.

Configuration can be provided via a file, environment variables (ODATAD_*)
or flags; flags win.`,
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Main()
	}
	root.PersistentFlags().BoolVar(&g.json, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newValidateCmd(),
		newVersionCmd(g),
	)
	return root
}

// Main runs the command line with os.Args and returns the process exit code.
func Main() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
