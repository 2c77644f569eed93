package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	relaySender string
	relayImage  string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Talk to the chat relay",
}

var relayPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the relay is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pong, err := apiClient.RelayPing(cmd.Context())
		if err != nil {
			return fmt.Errorf("relay ping: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), pong)
		return nil
	},
}

var relaySendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message and print the bot's reply",
	Long: `Send a single chat message through the relay.

Examples:
  altron relay send "hello there"
  altron relay send --sender alice --image https://example.com/cat.png "look"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRelaySend,
}

func init() {
	relaySendCmd.Flags().StringVar(&relaySender, "sender", "cli", "sender name")
	relaySendCmd.Flags().StringVar(&relayImage, "image", "", "image URL or base64 payload")

	relayCmd.AddCommand(relayPingCmd)
	relayCmd.AddCommand(relaySendCmd)
}

func runRelaySend(cmd *cobra.Command, args []string) error {
	msg := models.RelayMessage{Sender: relaySender, Text: strings.Join(args, " ")}
	if relayImage != "" {
		msg.Image = &relayImage
	}

	replies, err := apiClient.RelaySend(cmd.Context(), []models.RelayMessage{msg})
	if err != nil {
		return fmt.Errorf("relay send: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, r := range replies {
		fmt.Fprintf(out, "%s %s\n", headerStyle.Render(r.Sender+":"), r.Text)
	}
	return nil
}
