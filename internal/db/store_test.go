package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// store is the method set shared by Client and MemoryStore.
type store interface {
	CreateThread(ctx context.Context, thread models.Thread, createdAt time.Time) error
	GetThread(ctx context.Context, id string) (*StoredThread, error)
	ListThreads(ctx context.Context) ([]StoredThread, error)
	RenameThread(ctx context.Context, id, title string) error
	DeleteThread(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, threadID string, m models.Message) error

	CreateJob(ctx context.Context, job models.Job) error
	UpdateJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	FailIncompleteJobs(ctx context.Context, reason string) (int, error)
}

var (
	_ store = (*Client)(nil)
	_ store = (*MemoryStore)(nil)
)

// forEachStore runs fn against a fresh MemoryStore and, outside -short
// mode, against the SurrealDB container.
func forEachStore(t *testing.T, fn func(t *testing.T, s store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("surreal", func(t *testing.T) {
		if testDB == nil {
			t.Skip("skipping integration test in short mode")
		}
		require.NoError(t, testDB.WipeData(context.Background()))
		fn(t, testDB)
	})
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func textMessage(id string, role models.Role, text string, ts time.Time) models.Message {
	return models.Message{ID: id, Role: role, Content: models.TextContent(text), Timestamp: ts}
}

func TestThreadLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		id := uniqueID("thread")
		createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: id, Title: "Demo"}, createdAt))

		got, err := s.GetThread(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Demo", got.Thread.Title)
		assert.Empty(t, got.Thread.Messages)
		assert.True(t, createdAt.Equal(got.CreatedAt))

		ts := createdAt.Add(time.Minute)
		require.NoError(t, s.AppendMessage(ctx, id, textMessage("m1", models.RoleUser, "hi", ts)))
		require.NoError(t, s.AppendMessage(ctx, id, textMessage("m2", models.RoleAssistant, "hello", ts.Add(time.Second))))

		got, err = s.GetThread(ctx, id)
		require.NoError(t, err)
		require.Len(t, got.Thread.Messages, 2)
		assert.Equal(t, "m1", got.Thread.Messages[0].ID)
		assert.Equal(t, "m2", got.Thread.Messages[1].ID)
		assert.Equal(t, "hello", *got.Thread.Messages[1].Content.Text)

		require.NoError(t, s.RenameThread(ctx, id, "Renamed"))
		got, err = s.GetThread(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Thread.Title)

		require.NoError(t, s.DeleteThread(ctx, id))
		_, err = s.GetThread(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateThreadWithMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		id := uniqueID("import")
		ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		thread := models.Thread{ID: id, Title: "Imported", Messages: []models.Message{
			{ID: "a", Role: models.RoleUser, Content: models.MessageContent{
				JSON: map[string]any{"n": float64(3), "tags": []any{"x"}},
			}, Timestamp: ts},
			{ID: "b", Role: models.RoleAssistant, Content: models.MessageContent{
				Files: []models.File{models.NewFile(models.MediaTypeTextPlain, []byte("hello"))},
			}, Timestamp: ts.Add(time.Second)},
		}}
		require.NoError(t, s.CreateThread(ctx, thread, ts))

		got, err := s.GetThread(ctx, id)
		require.NoError(t, err)
		require.Len(t, got.Thread.Messages, 2)
		assert.Equal(t, "a", got.Thread.Messages[0].ID)
		assert.Contains(t, got.Thread.Messages[0].Content.JSON, "tags")
		require.Len(t, got.Thread.Messages[1].Content.Files, 1)
		assert.Equal(t, models.MediaTypeTextPlain, got.Thread.Messages[1].Content.Files[0].MediaType)
	})
}

func TestCreateThreadDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		id := uniqueID("dup")
		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: id, Title: "one"}, time.Now()))
		err := s.CreateThread(ctx, models.Thread{ID: id, Title: "two"}, time.Now())
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestAppendMessageErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ts := time.Now().UTC()

		err := s.AppendMessage(ctx, "missing", textMessage("m1", models.RoleUser, "x", ts))
		assert.ErrorIs(t, err, ErrNotFound)

		id := uniqueID("append")
		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: id, Title: "t"}, ts))
		require.NoError(t, s.AppendMessage(ctx, id, textMessage("m1", models.RoleUser, "x", ts)))
		err = s.AppendMessage(ctx, id, textMessage("m1", models.RoleAssistant, "y", ts))
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestConcurrentAppendsKeepDistinctPositions(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		id := uniqueID("race")
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: id, Title: "race"}, ts))

		// No service-level lock: writers behave like separate processes.
		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				msg := textMessage(fmt.Sprintf("m%d", i), models.RoleUser, "x", ts.Add(time.Duration(i)*time.Second))
				assert.NoError(t, s.AppendMessage(ctx, id, msg))
			}(i)
		}
		wg.Wait()

		got, err := s.GetThread(ctx, id)
		require.NoError(t, err)
		require.Len(t, got.Thread.Messages, writers)
		seen := make(map[string]bool, writers)
		for _, m := range got.Thread.Messages {
			seen[m.ID] = true
		}
		assert.Len(t, seen, writers)
	})
}

func TestDeleteThreadLeavesNoMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		id := uniqueID("reuse")
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: id, Title: "first"}, ts))
		require.NoError(t, s.AppendMessage(ctx, id, textMessage("old", models.RoleUser, "x", ts)))
		require.NoError(t, s.DeleteThread(ctx, id))

		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: id, Title: "second"}, ts))
		got, err := s.GetThread(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got.Thread.Messages)
		require.NoError(t, s.AppendMessage(ctx, id, textMessage("old", models.RoleUser, "again", ts)))
	})
}

func TestMissingThreadOperations(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		assert.ErrorIs(t, s.RenameThread(ctx, "nope", "x"), ErrNotFound)
		assert.ErrorIs(t, s.DeleteThread(ctx, "nope"), ErrNotFound)
	})
}

func TestListThreads(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		first, second := uniqueID("first"), uniqueID("second")

		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: first, Title: "first"}, base))
		require.NoError(t, s.CreateThread(ctx, models.Thread{ID: second, Title: "second"}, base.Add(time.Hour)))
		require.NoError(t, s.AppendMessage(ctx, second, textMessage("m1", models.RoleUser, "x", base.Add(2*time.Hour))))

		threads, err := s.ListThreads(ctx)
		require.NoError(t, err)
		require.Len(t, threads, 2)
		assert.Equal(t, first, threads[0].Thread.ID)
		assert.Equal(t, second, threads[1].Thread.ID)
		assert.Len(t, threads[1].Thread.Messages, 1)

		info := threads[1].Info(nil)
		assert.Equal(t, 1, info.MessageCount)
		assert.True(t, base.Add(2*time.Hour).Equal(info.UpdatedAt))
	})
}

func TestJobLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		job := models.Job{
			ID:          uniqueID("job"),
			Title:       "Summarize",
			Description: "Summarize the thread",
			Priority:    2,
			Status:      models.JobStatusPending,
			CreatedAt:   created,
		}
		require.NoError(t, s.CreateJob(ctx, job))
		assert.ErrorIs(t, s.CreateJob(ctx, job), ErrAlreadyExists)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, got.Status)
		assert.Equal(t, 2, got.Priority)
		assert.Nil(t, got.CompletedAt)

		done := created.Add(time.Minute)
		job.Status = models.JobStatusCompleted
		job.Progress = 100
		job.Text = "done"
		job.Images = []string{"aGk="}
		job.CompletedAt = &done
		require.NoError(t, s.UpdateJob(ctx, job))

		got, err = s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		assert.Equal(t, "done", got.Text)
		assert.Equal(t, []string{"aGk="}, got.Images)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, done.Equal(*got.CompletedAt))

		_, err = s.GetJob(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateJob(ctx, models.Job{ID: "missing", Status: models.JobStatusFailed}), ErrNotFound)
	})
}

func TestListJobsAndFailIncomplete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		statuses := []models.JobStatus{models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted}

		for i, st := range statuses {
			require.NoError(t, s.CreateJob(ctx, models.Job{
				ID:        fmt.Sprintf("job%d", i),
				Title:     "t",
				Status:    st,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		jobs, err := s.ListJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "job2", jobs[0].ID, "most recent first")

		n, err := s.FailIncompleteJobs(ctx, "interrupted by restart")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.GetJob(ctx, "job1")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Equal(t, "interrupted by restart", *got.Error)

		got, err = s.GetJob(ctx, "job2")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ts := time.Now().UTC()
	require.NoError(t, s.CreateThread(ctx, models.Thread{ID: "t", Title: "x"}, ts))
	require.NoError(t, s.AppendMessage(ctx, "t", textMessage("m1", models.RoleUser, "x", ts)))

	got, err := s.GetThread(ctx, "t")
	require.NoError(t, err)
	got.Thread.Messages[0].ID = "mutated"
	got.Thread.Title = "mutated"

	again, err := s.GetThread(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "m1", again.Thread.Messages[0].ID)
	assert.Equal(t, "x", again.Thread.Title)
}

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record exists", &surrealdb.QueryError{Message: "Database record `thread:a` already exists"}, ErrAlreadyExists},
		{"unique index", &surrealdb.QueryError{Message: "Database index `message_unique_id` already contains ['a', 'm1']"}, ErrAlreadyExists},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: retry"}, ErrTransactionConflict},
		{"seq taken", &surrealdb.QueryError{Message: "Database index `message_seq` already contains ['t1', 3]"}, ErrTransactionConflict},
		{"thrown not found", &surrealdb.QueryError{Message: "An error occurred: thread not found"}, ErrNotFound},
		{
			"failed transaction",
			errors.Join(
				&surrealdb.QueryError{Message: "The query was not executed due to a failed transaction"},
				&surrealdb.QueryError{Message: "An error occurred: thread not found"},
			),
			ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, wrapQueryError(tt.err), tt.want)
		})
	}

	plain := errors.New("network down")
	assert.Equal(t, plain, wrapQueryError(plain))
	assert.NoError(t, wrapQueryError(nil))
}

func TestRecordKey(t *testing.T) {
	key, err := recordKey(surrealmodels.NewRecordID("thread", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", key)

	_, err = recordKey(surrealmodels.NewRecordID("job", 42))
	assert.ErrorContains(t, err, "want string")
}
