package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "corvid-agent",
		Short: "corvid-agent is the always-listening voice assistant orchestrator",
		Long: `corvid-agent runs the wake-word/VAD/STT/LLM/TTS pipeline against the
local microphone and speaker, controllable over a line-delimited JSON
protocol on stdin/stdout.`,
	}

	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the corvid-agent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}
