package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ResumeMatch/internal/logging"
)

const app = "matchctl"

type rootOptions struct {
	debug bool
	json  bool
}

// newRootCmd builds the command tree. It is a constructor rather than a
// package variable so tests get fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           app,
		Short:         app + " submits resumes and a job description to the matching service from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, format := "warn", "text"
			if opts.debug {
				level = "debug"
			}
			if opts.json {
				format = "json"
			}
			// stdout carries only the result table.
			logging.SetupWriter(os.Stderr, level, format)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "verbose/debug output")
	cmd.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "json format for logging")

	cmd.AddCommand(newSubmitCmd())
	return cmd
}
