package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and telemetry.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inboxsense",
		Short: "Classifies the latest unread Gmail message with an AI model",
		Long: `inboxsense connects to a Gmail mailbox over OAuth2, fetches the newest
unread inbox message and asks Gemini or OpenAI to classify it and rate its
sentiment.

It can run as:
  - An HTTP server with consent, callback and analysis endpoints (default)
  - One-shot CLI commands for consent and analysis`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate(`{{printf "inboxsense version %s\n" .Version}}`)

	addConfigFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newConsentCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute is the main entry point for the CLI application.
func Execute() {
	// serve is the default command
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
