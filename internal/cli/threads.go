package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/raphaelgruber/altron-go/internal/client"
	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	sayRole    string
	sayNoReply bool
)

var threadsCmd = &cobra.Command{
	Use:     "threads",
	Aliases: []string{"thread", "t"},
	Short:   "Manage conversation threads",
	Long: `List, create and inspect conversation threads.

Examples:
  altron threads                      # List threads
  altron threads create "Trip plans"
  altron threads say <id> "Book a hotel"
  altron threads watch <id>`,
	RunE: runThreadsList,
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runThreadsList,
}

var threadsCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create an empty thread",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runThreadsCreate,
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a thread and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsShow,
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Change a thread's title",
	Args:  cobra.ExactArgs(2),
	RunE:  runThreadsRename,
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsDelete,
}

var threadsSayCmd = &cobra.Command{
	Use:   "say <id> <text>",
	Short: "Send a message to a thread and print the assistant's reply",
	Long: `Send a user message to a thread and wait for the assistant's reply.
With --no-reply, or with --role assistant, the message is only appended.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runThreadsSay,
}

var threadsWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Stream new messages of a thread until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsWatch,
}

func init() {
	threadsSayCmd.Flags().StringVarP(&sayRole, "role", "r", string(models.RoleUser), "message role (user or assistant)")
	threadsSayCmd.Flags().BoolVar(&sayNoReply, "no-reply", false, "append without asking for a reply")

	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsCreateCmd)
	threadsCmd.AddCommand(threadsShowCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)
	threadsCmd.AddCommand(threadsSayCmd)
	threadsCmd.AddCommand(threadsWatchCmd)
}

func runThreadsList(cmd *cobra.Command, args []string) error {
	infos, err := apiClient.ListThreads(cmd.Context())
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No threads found")
		return nil
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-36s  %-24s %8s %8s  %s", "ID", "TITLE", "MESSAGES", "TOKENS", "UPDATED")))
	for _, info := range infos {
		fmt.Fprintf(out, "%-36s  %-24s %8d %8s  %s\n",
			info.ID, truncate(info.Title, 24), info.MessageCount,
			humanize.Comma(int64(info.TokenCount)), humanize.Time(info.UpdatedAt))
	}
	return nil
}

func runThreadsCreate(cmd *cobra.Command, args []string) error {
	title := ""
	if len(args) == 1 {
		title = args[0]
	}
	thread, err := apiClient.CreateThread(cmd.Context(), title)
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created thread %s (%q)\n", thread.ID, thread.Title)
	return nil
}

func runThreadsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	thread, err := apiClient.GetThread(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get thread: %w", err)
	}
	info, err := apiClient.ThreadInfo(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get thread info: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render(thread.Title))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s · %d messages · %s tokens · created %s",
		thread.ID, info.MessageCount, humanize.Comma(int64(info.TokenCount)), humanize.Time(info.CreatedAt))))
	for _, m := range thread.Messages {
		fmt.Fprintln(out)
		printMessage(out, m)
	}
	return nil
}

func runThreadsRename(cmd *cobra.Command, args []string) error {
	thread, err := apiClient.RenameThread(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("rename thread: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed thread %s to %q\n", thread.ID, thread.Title)
	return nil
}

func runThreadsDelete(cmd *cobra.Command, args []string) error {
	if err := apiClient.DeleteThread(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %s\n", args[0])
	return nil
}

func runThreadsSay(cmd *cobra.Command, args []string) error {
	msg := client.NewMessage{
		Role:    models.Role(sayRole),
		Content: models.TextContent(args[1]),
	}
	if !sayNoReply && msg.Role == models.RoleUser {
		exchange, err := apiClient.Converse(cmd.Context(), args[0], msg)
		if err != nil {
			return fmt.Errorf("converse: %w", err)
		}
		printMessage(cmd.OutOrStdout(), exchange.Reply)
		return nil
	}

	appended, err := apiClient.AppendMessage(cmd.Context(), args[0], msg)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Appended message %s\n", appended.ID)
	return nil
}

func runThreadsWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, dimStyle.Render("Watching "+args[0]+" (Ctrl+C to stop)"))
	err := apiClient.WatchThread(ctx, args[0], func(ev client.ThreadEvent) error {
		switch ev.Type {
		case "message":
			if ev.Message != nil {
				printMessage(out, *ev.Message)
			}
		case "renamed":
			fmt.Fprintln(out, dimStyle.Render("renamed to "+ev.Title))
		case "deleted":
			fmt.Fprintln(out, dimStyle.Render("thread deleted"))
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printMessage(w io.Writer, m models.Message) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render(string(m.Role)), dimStyle.Render(humanize.Time(m.Timestamp)))
	if m.Content.Text != nil {
		fmt.Fprintln(w, *m.Content.Text)
	}
	if len(m.Content.JSON) > 0 {
		b, _ := json.Marshal(m.Content.JSON)
		fmt.Fprintln(w, dimStyle.Render("json: ")+string(b))
	}
	for _, f := range m.Content.Files {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("[%s, %s]", f.MediaType, humanize.Bytes(uint64(len(f.Data)*3/4)))))
	}
}

// truncate shortens s to n runes, adding "…" if truncated.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
