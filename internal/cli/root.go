package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codr",
		Short: "Index a codebase into queryable function, class, file and call-graph metadata",
		Long: `codr extracts functions, classes, files and a cross-file call graph from
TypeScript, JavaScript and Python sources into .codr/metadata/, answers
context lookups against that index, and edits source files by line range.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("root", "", "Project root (default: working directory)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <root>/.codr.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().Bool("json", false, "Print machine-readable output")

	// Index Commands
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .codr.yaml, ignore the metadata dir in git, and build",
		RunE:  RunInit,
	}
	initCmd.Flags().Bool("no-build", false, "Write files only, skip the initial build")

	buildCmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Build the index and publish a new metadata generation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunBuild,
	}
	buildCmd.Flags().StringSliceP("lang", "l", []string{}, "Languages to include (default: from config)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current generation and files changed since it was built",
		RunE:  RunStatus,
	}

	// Query Commands
	functionCmd := &cobra.Command{
		Use:   "function <name>",
		Short: "Show metadata for a function, arrow function or method",
		Args:  cobra.ExactArgs(1),
		RunE:  RunFunction,
	}
	functionCmd.Flags().Bool("all", false, "Show every function with this name")
	functionCmd.Flags().Bool("source", false, "Include the current source text")

	classCmd := &cobra.Command{
		Use:   "class <name>",
		Short: "Show metadata for a class",
		Args:  cobra.ExactArgs(1),
		RunE:  RunClass,
	}
	classCmd.Flags().Bool("source", false, "Include the current source text")

	fileCmd := &cobra.Command{
		Use:   "file <path-fragment>",
		Short: "Show metadata for the first file whose path contains the fragment",
		Args:  cobra.ExactArgs(1),
		RunE:  RunFile,
	}

	callgraphCmd := &cobra.Command{
		Use:   "callgraph <name|file::name>",
		Short: "Show direct callers and callees of a function",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCallGraph,
	}

	// Edit Commands
	deleteCmd := &cobra.Command{
		Use:   "delete <file> <start> <end>",
		Short: "Delete lines start..end (inclusive) from a file",
		Args:  cobra.ExactArgs(3),
		RunE:  RunDelete,
	}
	deleteCmd.Flags().Bool("diff", false, "Print a unified diff of the change")

	insertCmd := &cobra.Command{
		Use:   "insert <file> <start> <content|->",
		Short: "Insert content before line start (use - to read stdin)",
		Args:  cobra.ExactArgs(3),
		RunE:  RunInsert,
	}
	insertCmd.Flags().Bool("diff", false, "Print a unified diff of the change")

	// Additional Commands
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  RunServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (default: from config)")
	serveCmd.Flags().Bool("watch", false, "Mark files stale as they change on disk")

	installHookCmd := &cobra.Command{
		Use:   "install-hook",
		Short: "Install git pre-commit hook that rebuilds the index",
		RunE:  RunInstallHook,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codr %s\n", version)
		},
	}

	rootCmd.AddCommand(
		initCmd,
		buildCmd,
		statusCmd,
		functionCmd,
		classCmd,
		fileCmd,
		callgraphCmd,
		deleteCmd,
		insertCmd,
		serveCmd,
		installHookCmd,
		versionCmd,
	)

	return rootCmd
}
