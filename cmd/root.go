package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	debugMode  bool
)

// rootCmd represents the base command for the outreach application
var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Sends an influencer email campaign and tracks the replies",
	Long: `outreach sends a templated email to every contact in a CSV file and
moves contacts who reply into a separate file, so nobody gets a second
message after answering.

It can run as:
  - A standalone CLI tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "outreach version %s\n" .Version}}`)

	// If no subcommand is provided, show the campaign status
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "status")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./outreach.yaml, then ~/.config/outreach/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newSuggestCmd())
	rootCmd.AddCommand(newSelectCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newTrackCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newCredentialsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
