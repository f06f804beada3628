package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var errInvalidPayload = errors.New("payload is invalid")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	apiURL    string
	userID    string
	userName  string
	userEmail string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "draftctl",
		Short: "Inspect, adapt and compose quote drafts",
		Long: `draftctl works with request and draft payloads.

Local commands (validate, adapt, options) read a JSON or YAML file, or stdin
when the file is "-". Remote commands (show, quote) talk to the draft API at
--api, which defaults to DRAFT_API_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "draft API base URL (default DRAFT_API_URL)")
	root.PersistentFlags().StringVar(&opts.userID, "user-id", "draftctl", "assignee id for adapted forms")
	root.PersistentFlags().StringVar(&opts.userName, "user-name", "", "assignee name for adapted forms")
	root.PersistentFlags().StringVar(&opts.userEmail, "user-email", "", "assignee email for adapted forms")

	root.AddCommand(validateCmd())
	root.AddCommand(adaptCmd(opts))
	root.AddCommand(optionsCmd(opts))
	root.AddCommand(showCmd(opts))
	root.AddCommand(quoteCmd(opts))
	return root
}
