// Package cli provides the command-line interface for altron.
package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/altron-go/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string

	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "altron",
	Short: "Command-line client for the altron server",
	Long: `altron talks to an altron server: conversation threads, background
jobs and the chat relay.

The server address is taken from --server, then ALTRON_SERVER_URL, then
http://localhost:8484.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default $ALTRON_SERVER_URL or "+client.DefaultURL+")")

	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(usageCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
)
