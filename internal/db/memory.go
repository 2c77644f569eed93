package db

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/altron-go/internal/models"
)

// MemoryStore keeps threads and jobs in process. It offers the same
// methods as Client and is used when no database is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*StoredThread
	order   []string // thread ids in creation order
	jobs    map[string]models.Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*StoredThread),
		jobs:    make(map[string]models.Job),
	}
}

func cloneThread(st *StoredThread) StoredThread {
	out := *st
	out.Thread.Messages = slices.Clone(st.Thread.Messages)
	if out.Thread.Messages == nil {
		out.Thread.Messages = []models.Message{}
	}
	return out
}

// CreateThread stores a thread and any messages it already carries.
func (s *MemoryStore) CreateThread(_ context.Context, thread models.Thread, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[thread.ID]; ok {
		return fmt.Errorf("thread %s: %w", thread.ID, ErrAlreadyExists)
	}
	st := &StoredThread{Thread: thread, CreatedAt: createdAt.UTC()}
	st.Thread.Messages = slices.Clone(thread.Messages)
	s.threads[thread.ID] = st
	s.order = append(s.order, thread.ID)
	return nil
}

// GetThread returns a copy of the thread.
func (s *MemoryStore) GetThread(_ context.Context, id string) (*StoredThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	out := cloneThread(st)
	return &out, nil
}

// ListThreads returns copies of all threads in creation order.
func (s *MemoryStore) ListThreads(_ context.Context) ([]StoredThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredThread, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneThread(s.threads[id]))
	}
	return out, nil
}

// RenameThread sets a new title.
func (s *MemoryStore) RenameThread(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.threads[id]
	if !ok {
		return fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	st.Thread.Title = title
	return nil
}

// DeleteThread removes a thread and its messages.
func (s *MemoryStore) DeleteThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	delete(s.threads, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// AppendMessage adds m at the end of the thread.
func (s *MemoryStore) AppendMessage(_ context.Context, threadID string, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	if st.Thread.HasMessage(m.ID) {
		return fmt.Errorf("message %s: %w", m.ID, ErrAlreadyExists)
	}
	st.Thread.Messages = append(st.Thread.Messages, m)
	return nil
}

// CreateJob stores a new job.
func (s *MemoryStore) CreateJob(_ context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}
	job.Images = slices.Clone(job.Images)
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob replaces the stored job state.
func (s *MemoryStore) UpdateJob(_ context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	job.Images = slices.Clone(job.Images)
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns a copy of the job.
func (s *MemoryStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	job.Images = slices.Clone(job.Images)
	return &job, nil
}

// ListJobs returns all jobs, most recent first.
func (s *MemoryStore) ListJobs(_ context.Context) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		job.Images = slices.Clone(job.Images)
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b models.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return jobs, nil
}

// FailIncompleteJobs marks every pending or running job as failed.
func (s *MemoryStore) FailIncompleteJobs(_ context.Context, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() {
			continue
		}
		job.Status = models.JobStatusFailed
		msg := reason
		job.Error = &msg
		job.CompletedAt = &now
		s.jobs[id] = job
		n++
	}
	return n, nil
}
