package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// JobStore persists jobs. Implemented by db.Client and db.MemoryStore.
type JobStore interface {
	CreateJob(ctx context.Context, job models.Job) error
	UpdateJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	FailIncompleteJobs(ctx context.Context, reason string) (int, error)
}

// Store is everything the services persist. Implemented by db.Client and
// db.MemoryStore.
type Store interface {
	ThreadStore
	JobStore
}

// JobRequest is the input for creating a job.
type JobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// Validate requires a non-blank title.
func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &models.ValidationError{Field: "title", Reason: "is required", Err: models.ErrRequired}
	}
	return nil
}

// restartReason is recorded on jobs a previous process left unfinished.
const restartReason = "interrupted by restart"

// progressPersistInterval debounces progress writes to the store.
const progressPersistInterval = 5 * time.Second

// jobState is the live state of a job that has not yet been retired.
// version counts changes to job; written is the version last stored.
// Writes are ordered by writeMu so an older copy never overwrites a newer one.
type jobState struct {
	mu          sync.RWMutex
	job         models.Job
	version     uint64
	cancel      context.CancelFunc
	lastPersist time.Time

	writeMu sync.Mutex
	written uint64
}

func (s *jobState) snapshot() models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// copyLocked returns a copy of the job. Caller must hold mu.
func (s *jobState) copyLocked() models.Job {
	j := s.job
	j.Images = slices.Clone(s.job.Images)
	return j
}

// changedLocked bumps the version after a mutation and returns a copy to
// store. Caller must hold mu for writing.
func (s *jobState) changedLocked() (models.Job, uint64) {
	s.version++
	return s.copyLocked(), s.version
}

// JobManager queues jobs and runs them on a bounded worker pool.
type JobManager struct {
	store       JobStore
	exec        Executor
	metrics     *metrics.Collector
	concurrency int
	now         func() time.Time

	mu    sync.RWMutex
	jobs  map[string]*jobState
	queue *jobQueue

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewJobManager creates a job manager. Call Start to begin processing.
func NewJobManager(store JobStore, exec Executor, concurrency int, collector *metrics.Collector) *JobManager {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &JobManager{
		store:       store,
		exec:        exec,
		metrics:     collector,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
		jobs:        make(map[string]*jobState),
		queue:       newJobQueue(),
	}
}

// Concurrency returns the configured worker count.
func (m *JobManager) Concurrency() int {
	return m.concurrency
}

// Start fails jobs a previous process left pending or running, then
// launches the workers.
func (m *JobManager) Start(ctx context.Context) error {
	n, err := m.store.FailIncompleteJobs(ctx, restartReason)
	if err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	if n > 0 {
		slog.Warn("marked interrupted jobs as failed", "count", n)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go m.worker(workerCtx)
	}
	slog.Info("job workers started", "concurrency", m.concurrency)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit.
func (m *JobManager) Stop() {
	if m.stop != nil {
		m.stop()
	}
	m.wg.Wait()
}

// Create validates and persists a job, then queues it.
func (m *JobManager) Create(ctx context.Context, req JobRequest) (models.Job, error) {
	if err := req.Validate(); err != nil {
		return models.Job{}, err
	}

	job := models.Job{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      models.JobStatusPending,
		CreatedAt:   m.now(),
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return models.Job{}, err
	}

	m.mu.Lock()
	m.jobs[job.ID] = &jobState{job: job}
	m.mu.Unlock()

	m.queue.push(job.ID, job.Priority)
	m.metrics.Inc(metrics.CounterJobsCreated)
	slog.Info("job created", "job_id", job.ID, "title", job.Title, "priority", job.Priority)
	return job, nil
}

func (m *JobManager) state(id string) *jobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Get returns the current state of a job.
func (m *JobManager) Get(ctx context.Context, id string) (models.Job, error) {
	if st := m.state(id); st != nil {
		return st.snapshot(), nil
	}
	job, err := m.store.GetJob(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return models.Job{}, err
	}
	return *job, nil
}

// List returns all jobs, most recent first.
func (m *JobManager) List(ctx context.Context) ([]models.Job, error) {
	jobs, err := m.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i, job := range jobs {
		if st := m.state(job.ID); st != nil {
			jobs[i] = st.snapshot()
		}
	}
	return jobs, nil
}

// Terminate stops a pending or running job. Terminating a terminated job
// succeeds without change; a completed or failed job yields ErrJobFinished.
func (m *JobManager) Terminate(ctx context.Context, id string) (models.Job, error) {
	st := m.state(id)
	if st == nil {
		job, err := m.Get(ctx, id)
		if err != nil {
			return models.Job{}, err
		}
		st = &jobState{job: job}
	}

	st.mu.Lock()
	switch st.job.Status {
	case models.JobStatusTerminated:
		job := st.copyLocked()
		st.mu.Unlock()
		return job, nil
	case models.JobStatusCompleted, models.JobStatusFailed:
		job := st.copyLocked()
		st.mu.Unlock()
		return job, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrJobFinished)
	}

	now := m.now()
	st.job.Status = models.JobStatusTerminated
	st.job.CompletedAt = &now
	if st.cancel != nil {
		st.cancel()
	}
	job, version := st.changedLocked()
	st.mu.Unlock()

	if err := m.write(ctx, st, job, version); err != nil {
		return job, fmt.Errorf("persist termination: %w", err)
	}
	m.retire(st)
	m.metrics.Inc(metrics.CounterJobsTerminated)
	slog.Info("job terminated", "job_id", id)
	return job, nil
}

func (m *JobManager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		id, ok := m.queue.pop(ctx)
		if !ok {
			return
		}
		m.run(ctx, id)
	}
}

func (m *JobManager) run(parent context.Context, id string) {
	st := m.state(id)
	if st == nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	st.mu.Lock()
	if st.job.Status != models.JobStatusPending {
		// Terminated while queued.
		st.mu.Unlock()
		return
	}
	st.job.Status = models.JobStatusRunning
	st.cancel = cancel
	st.lastPersist = time.Now()
	job, version := st.changedLocked()
	st.mu.Unlock()

	m.persist(st, job, version)
	slog.Info("job running", "job_id", id)

	start := time.Now()
	result, err := m.execute(ctx, job, st)
	m.finish(st, result, err, time.Since(start))
}

func (m *JobManager) execute(ctx context.Context, job models.Job, st *jobState) (result models.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job executor panicked", "job_id", job.ID, "panic", r)
			err = fmt.Errorf("internal panic: %v", r)
		}
	}()
	return m.exec.Execute(ctx, job, func(percent int) { m.updateProgress(st, percent) })
}

// updateProgress records progress, persisting at most every
// progressPersistInterval.
func (m *JobManager) updateProgress(st *jobState, percent int) {
	percent = min(max(percent, 0), 100)

	st.mu.Lock()
	if st.job.Status != models.JobStatusRunning {
		st.mu.Unlock()
		return
	}
	st.job.Progress = percent
	shouldPersist := time.Since(st.lastPersist) > progressPersistInterval
	if shouldPersist {
		st.lastPersist = time.Now()
	}
	job, version := st.changedLocked()
	st.mu.Unlock()

	if shouldPersist {
		m.persist(st, job, version)
	}
}

func (m *JobManager) finish(st *jobState, result models.JobResult, err error, duration time.Duration) {
	st.mu.Lock()
	st.cancel = nil
	if st.job.Status == models.JobStatusTerminated {
		st.mu.Unlock()
		m.retire(st)
		m.metrics.Record(metrics.OpJobRun, duration, nil)
		return
	}

	now := m.now()
	st.job.CompletedAt = &now
	if err != nil {
		msg := err.Error()
		st.job.Status = models.JobStatusFailed
		st.job.Error = &msg
	} else {
		st.job.Status = models.JobStatusCompleted
		st.job.Progress = 100
		st.job.Text = result.Text
		st.job.Images = slices.Clone(result.Images)
	}
	job, version := st.changedLocked()
	st.mu.Unlock()

	m.persist(st, job, version)
	m.retire(st)
	m.metrics.Record(metrics.OpJobRun, duration, err)

	if err != nil {
		slog.Error("job failed", "job_id", job.ID, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	slog.Info("job completed", "job_id", job.ID, "duration_ms", duration.Milliseconds())
}

// write stores job unless a newer version of it is already stored.
func (m *JobManager) write(ctx context.Context, st *jobState, job models.Job, version uint64) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	if version <= st.written {
		return nil
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	st.written = version
	return nil
}

// persist writes job state outside any request context.
func (m *JobManager) persist(st *jobState, job models.Job, version uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.write(ctx, st, job, version); err != nil {
		slog.Warn("failed to persist job state", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

// retire drops a finished job from memory once its final state is stored.
// Later lookups read it from the store. A job whose last write failed stays
// in memory so its state is not lost.
func (m *JobManager) retire(st *jobState) {
	st.mu.RLock()
	id, terminal, version := st.job.ID, st.job.Status.Terminal(), st.version
	st.mu.RUnlock()
	if !terminal {
		return
	}

	st.writeMu.Lock()
	stored := st.written >= version
	st.writeMu.Unlock()
	if !stored {
		return
	}

	m.mu.Lock()
	if m.jobs[id] == st {
		delete(m.jobs, id)
	}
	m.mu.Unlock()
}
