// overwatch drives the findings pipeline: it supervises the external scanner and
// turns the findings it writes into tracker issues.
//
// Usage:
//
//	overwatch run "filename:.env DB_PASSWORD" --max-repos 50
//	overwatch notify --stream --input data/findings.jsonl
//	overwatch notify --dry-run
//	overwatch history --limit 10
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Exit codes returned by the commands.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

func execute(args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitFailure
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "overwatch",
		Short: "Turn leaked-secret findings into tracker issues",
		Long: `overwatch follows the findings store written by the scanner and files
one issue per finding on the affected repository.

"run" launches the scanner and a streaming notifier together; "notify" can
also be used alone to process a store in batch mode.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML/JSON config file (also "+configPathEnvHint+")")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "Dotenv file loaded before reading credentials")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging and show scanner output")

	rootCmd.AddCommand(runCmd(opts))
	rootCmd.AddCommand(notifyCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))

	return rootCmd
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
