package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/altron-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type jobRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    int                    `json:"priority"`
	Status      string                 `json:"status"`
	Progress    int                    `json:"progress"`
	Text        string                 `json:"text"`
	Images      []string               `json:"images"`
	Error       *string                `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

func (r jobRecord) job() (models.Job, error) {
	id, err := recordKey(r.ID)
	if err != nil {
		return models.Job{}, err
	}
	job := models.Job{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      models.JobStatus(r.Status),
		Progress:    r.Progress,
		Text:        r.Text,
		Images:      r.Images,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		job.CompletedAt = &t
	}
	return job, nil
}

// CreateJob persists a new job. Returns ErrAlreadyExists if the id is taken.
func (c *Client) CreateJob(ctx context.Context, job models.Job) error {
	images := job.Images
	if images == nil {
		images = []string{}
	}
	_, err := query[any](ctx, c, `
		CREATE type::record("job", $id) SET
			title = $title,
			description = $description,
			priority = $priority,
			status = $status,
			progress = $progress,
			text = $text,
			images = $images,
			created_at = $created_at
	`, map[string]any{
		"id":          job.ID,
		"title":       job.Title,
		"description": job.Description,
		"priority":    job.Priority,
		"status":      string(job.Status),
		"progress":    job.Progress,
		"text":        job.Text,
		"images":      images,
		"created_at":  job.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// UpdateJob writes the mutable job state: status, progress, result and
// completion fields.
func (c *Client) UpdateJob(ctx context.Context, job models.Job) error {
	images := job.Images
	if images == nil {
		images = []string{}
	}
	sets := []string{
		"status = $status",
		"progress = $progress",
		"text = $text",
		"images = $images",
	}
	vars := map[string]any{
		"id":       job.ID,
		"status":   string(job.Status),
		"progress": job.Progress,
		"text":     job.Text,
		"images":   images,
	}
	// option<> fields accept NONE but not NULL, so only set them when present.
	if job.Error != nil {
		sets = append(sets, "error = $error")
		vars["error"] = *job.Error
	}
	if job.CompletedAt != nil {
		sets = append(sets, "completed_at = $completed_at")
		vars["completed_at"] = job.CompletedAt.UTC()
	}

	sql := fmt.Sprintf(`UPDATE type::record("job", $id) SET %s RETURN AFTER`, strings.Join(sets, ", "))
	results, err := query[[]jobRecord](ctx, c, sql, vars)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if _, ok := first(results); !ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

// GetJob loads a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	results, err := query[[]jobRecord](ctx, c, `SELECT * FROM type::record("job", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	rec, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	job, err := rec.job()
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	results, err := query[[]jobRecord](ctx, c, `SELECT * FROM job ORDER BY created_at DESC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]models.Job, 0, len(rows(results)))
	for _, rec := range rows(results) {
		job, err := rec.job()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// FailIncompleteJobs marks every pending or running job as failed with
// reason and returns how many were changed.
func (c *Client) FailIncompleteJobs(ctx context.Context, reason string) (int, error) {
	results, err := query[[]jobRecord](ctx, c, `
		UPDATE job SET
			status = "failed",
			error = $reason,
			completed_at = time::now()
		WHERE status IN ["pending", "running"]
		RETURN AFTER
	`, map[string]any{"reason": reason})
	if err != nil {
		return 0, fmt.Errorf("fail incomplete jobs: %w", err)
	}
	return len(rows(results)), nil
}
