package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/raphaelgruber/altron-go/internal/client"
	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	jobDescription string
	jobPriority    int
	jobWatch       bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Submit and inspect background jobs",
	Long: `Submit background jobs and follow their progress.

Examples:
  altron jobs                                  # List all jobs
  altron jobs create "Summarize" -d "..." -p 5 --watch
  altron jobs status <id>
  altron jobs result <id>
  altron jobs terminate <id>`,
	RunE: runJobsList,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Submit a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCreate,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a job's status",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsResultCmd = &cobra.Command{
	Use:   "result <id>",
	Short: "Show a job's result",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsResult,
}

var jobsTerminateCmd = &cobra.Command{
	Use:   "terminate <id>",
	Short: "Stop a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsTerminate,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a job until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsWatch,
}

func init() {
	jobsCreateCmd.Flags().StringVarP(&jobDescription, "description", "d", "", "job description")
	jobsCreateCmd.Flags().IntVarP(&jobPriority, "priority", "p", 0, "priority (higher runs first)")
	jobsCreateCmd.Flags().BoolVarP(&jobWatch, "watch", "w", false, "follow the job until it finishes")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsResultCmd)
	jobsCmd.AddCommand(jobsTerminateCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	jobs, err := apiClient.ListJobs(cmd.Context())
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-36s  %-24s %-11s %s", "ID", "TITLE", "STATUS", "PROGRESS")))
	for _, job := range jobs {
		fmt.Fprintf(out, "%-36s  %-24s %-11s %3d%%\n", job.ID, truncate(job.Title, 24), job.Status, job.Progress)
	}
	return nil
}

func runJobsCreate(cmd *cobra.Command, args []string) error {
	job, err := apiClient.CreateJob(cmd.Context(), args[0], jobDescription, jobPriority)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created job %s (priority %d, created %s)\n", job.ID, job.Priority, formatUnixSeconds(job.CreatedAt))
	if !jobWatch {
		return nil
	}
	return watchJob(cmd, job.ID)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	st, err := apiClient.JobStatus(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s (%d%%)\n", st.ID, st.Status, st.Progress)
	return nil
}

func runJobsResult(cmd *cobra.Command, args []string) error {
	res, err := apiClient.JobResult(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get job result: %w", err)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runJobsTerminate(cmd *cobra.Command, args []string) error {
	st, err := apiClient.TerminateJob(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("terminate job: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", st.ID, st.Status)
	return nil
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
	return watchJob(cmd, args[0])
}

// watchJob shows the interactive progress bar on a terminal and falls back
// to plain polling otherwise.
func watchJob(cmd *cobra.Command, id string) error {
	if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return RunJobProgress(apiClient, id)
	}
	return pollJob(cmd.Context(), cmd.OutOrStdout(), apiClient, id, pollInterval)
}

// pollJob prints status changes until the job reaches a terminal state.
func pollJob(ctx context.Context, out io.Writer, c *client.Client, id string, interval time.Duration) error {
	var last client.JobStatus
	for {
		st, err := c.JobStatus(ctx, id)
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		if st.Status != last.Status || st.Progress != last.Progress {
			fmt.Fprintf(out, "%s %3d%%\n", st.Status, st.Progress)
			last = *st
		}
		if st.Status.Terminal() {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	res, err := c.JobResult(ctx, id)
	if err != nil {
		return fmt.Errorf("get job result: %w", err)
	}
	printResult(out, res)
	if res.Status == models.JobStatusFailed {
		return fmt.Errorf("job %s failed", id)
	}
	return nil
}

func printResult(out io.Writer, res *client.JobResult) {
	fmt.Fprintf(out, "Job %s: %s\n", res.ID, res.Status)
	if res.Error != nil {
		fmt.Fprintf(out, "  Error: %s\n", *res.Error)
	}
	if res.Text != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, res.Text)
	}
	for i, img := range res.Images {
		fmt.Fprintf(out, "  image %d: %s\n", i+1, truncate(img, 60))
	}
}

// formatUnixSeconds renders the server's fractional Unix seconds as local
// time, or returns s unchanged when it does not parse.
func formatUnixSeconds(s string) string {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return time.UnixMicro(int64(secs * 1e6)).Format(time.DateTime)
}
