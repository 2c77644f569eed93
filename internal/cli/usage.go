package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/spf13/cobra"
)

var usageDetailed bool

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show server statistics",
	Long: `Show the server's in-memory runtime statistics.

Examples:
  altron usage
  altron usage --detailed`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().BoolVar(&usageDetailed, "detailed", false, "show timing breakdown per operation")
}

func runUsage(cmd *cobra.Command, args []string) error {
	stats, err := apiClient.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(cmd.OutOrStdout(), stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(out io.Writer, stats *metrics.Snapshot) {
	uptime := time.Duration(stats.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Fprintln(out, headerStyle.Render("Server Statistics (in-memory, since restart)"))
	fmt.Fprintf(out, "Uptime: %s\n", uptime)

	if len(stats.Counters) > 0 {
		fmt.Fprintln(out, "\nCounters:")
		for _, name := range sortedKeys(stats.Counters) {
			fmt.Fprintf(out, "  %-20s %s\n", name, humanize.Comma(stats.Counters[name]))
		}
	}

	if len(stats.Operations) == 0 {
		return
	}
	fmt.Fprintln(out, "\nOperations:")
	for _, name := range sortedKeys(stats.Operations) {
		op := stats.Operations[name]
		fmt.Fprintf(out, "  %-20s %s calls, %s errors\n", name, humanize.Comma(op.Count), humanize.Comma(op.Errors))
		if usageDetailed {
			printOpStats(out, op)
		}
	}
}

func printOpStats(out io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("    time: avg %.1fms, min %dms, max %dms, total %dms",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs, op.TotalTimeMs)))
	if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("    tokens: %s in, %s out",
			humanize.Comma(*op.TotalInputTokens), humanize.Comma(*op.TotalOutputTokens))))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
