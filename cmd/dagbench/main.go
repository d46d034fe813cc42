// dagbench evaluates how well an LLM can answer analytical questions about
// a tabular dataset by building, critiquing, and executing small
// computation DAGs against it.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func rootCmd() *cobra.Command {
	var envPath string

	root := &cobra.Command{
		Use:           "dagbench",
		Short:         "Evaluate LLM-authored DAGs against a dataset",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envPath == "" {
				envPath = filepath.Join(".", ".env")
			}
			if err := godotenv.Load(envPath); err != nil {
				fmt.Fprintf(os.Stderr, "no .env file at %s, continuing with existing environment\n", envPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env-file", "", "path to a .env file (default ./.env)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	return root
}

// Exit codes per the CLI surface's contract: 0 ok, 1 validation failure,
// 2 LLM unreachable, 3 internal error.
const (
	exitOK              = 0
	exitValidationError = 1
	exitLLMUnreachable  = 2
	exitInternalError   = 3
)

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case isValidationError(err):
		return exitValidationError
	case isTransportError(err):
		return exitLLMUnreachable
	default:
		return exitInternalError
	}
}
