package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/altron-go/internal/api"
	"github.com/raphaelgruber/altron-go/internal/client"
	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	store := db.NewMemoryStore()
	collector := metrics.NewCollector()
	jobs := service.NewJobManager(store, service.EchoExecutor{}, 1, collector)
	require.NoError(t, jobs.Start(context.Background()))

	srv := httptest.NewServer(api.New(
		service.NewThreadService(store, nil, collector),
		jobs,
		service.NewRelayService("", nil, collector),
		collector,
	).Handler())
	t.Cleanup(func() {
		srv.Close()
		jobs.Stop()
	})
	return srv.URL
}

// run executes the root command against url and returns its output.
func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--server", url}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestThreadsCommands(t *testing.T) {
	url := newTestServer(t)

	out, err := run(t, url, "threads")
	require.NoError(t, err)
	assert.Contains(t, out, "No threads found")

	out, err = run(t, url, "threads", "create", "Planning")
	require.NoError(t, err)
	assert.Contains(t, out, `"Planning"`)

	threads, err := apiClient.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	id := threads[0].ID

	out, err = run(t, url, "threads", "say", id, "hello world")
	require.NoError(t, err)
	assert.Contains(t, out, "assistant")
	assert.Contains(t, out, service.DefaultReply)

	out, err = run(t, url, "threads", "say", "--no-reply", id, "just noting")
	require.NoError(t, err)
	assert.Contains(t, out, "Appended message")
	sayNoReply = false

	out, err = run(t, url, "threads", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Planning")
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "just noting")

	out, err = run(t, url, "threads", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = run(t, url, "threads", "rename", id, "Renamed")
	require.NoError(t, err)

	out, err = run(t, url, "threads", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted thread "+id)

	_, err = run(t, url, "threads", "show", id)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestJobsCommands(t *testing.T) {
	url := newTestServer(t)

	out, err := run(t, url, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs found")

	// Output is a buffer, so --watch falls back to polling.
	out, err = run(t, url, "jobs", "create", "echo", "-d", "payload", "-p", "3", "--watch")
	require.NoError(t, err)
	assert.Contains(t, out, "Created job")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "payload")

	jobs, err := apiClient.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	id := jobs[0].ID

	out, err = run(t, url, "jobs", "status", id)
	require.NoError(t, err)
	assert.Contains(t, out, "completed (100%)")

	_, err = run(t, url, "jobs", "terminate", id)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)
}

func TestPollJobStopsOnTerminalState(t *testing.T) {
	url := newTestServer(t)
	c := client.New(url)
	ctx := context.Background()

	created, err := c.CreateJob(ctx, "quick", "", 0)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, pollJob(ctx, &out, c, created.ID, 10*time.Millisecond))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines, "completed 100%")
	assert.Contains(t, out.String(), "quick")
}

func TestRelayAndUsageCommands(t *testing.T) {
	url := newTestServer(t)

	out, err := run(t, url, "relay", "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong\n", out)

	out, err = run(t, url, "relay", "send", "--sender", "ann", "hi", "there")
	require.NoError(t, err)
	assert.Contains(t, out, service.DefaultBotName+":")
	assert.Contains(t, out, service.DefaultReply)

	out, err = run(t, url, "usage", "--detailed")
	require.NoError(t, err)
	assert.Contains(t, out, metrics.CounterRelayMessages)
	assert.Contains(t, out, "time: avg")
}

func TestFormatUnixSeconds(t *testing.T) {
	assert.Equal(t, "not-a-number", formatUnixSeconds("not-a-number"))
	want := time.Unix(1700000000, 0).Format(time.DateTime)
	assert.Equal(t, want, formatUnixSeconds("1700000000.250000"))
}
