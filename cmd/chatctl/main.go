package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatctl",
		Short:        "terminal client for long-running agent chats",
		Long:         "chatctl talks to an agent chat server: it submits tasks as background jobs, streams their progress incrementally, pauses for questions and OAuth consent, and survives restarts by re-attaching to in-flight jobs.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
	root.AddCommand(newSendCommand())
	root.AddCommand(newLogoutCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the chatctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("chatctl", version)
		},
	})
	return root
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "discard the cached session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()
			return env.api.InvalidateSession()
		},
	}
}
