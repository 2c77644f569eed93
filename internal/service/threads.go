// Package service provides business logic for threads, jobs and the chat
// relay.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// ThreadStore persists threads. Implemented by db.Client and db.MemoryStore.
type ThreadStore interface {
	CreateThread(ctx context.Context, thread models.Thread, createdAt time.Time) error
	GetThread(ctx context.Context, id string) (*db.StoredThread, error)
	ListThreads(ctx context.Context) ([]db.StoredThread, error)
	RenameThread(ctx context.Context, id, title string) error
	DeleteThread(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, threadID string, m models.Message) error
}

// ThreadService manages conversation threads.
type ThreadService struct {
	store      ThreadStore
	counter    models.TokenCounter
	metrics    *metrics.Collector
	events     *hub
	conversant Conversant
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-thread append locks
}

// NewThreadService creates a thread service. counter and collector may be nil.
// Converse answers with a canned reply until WithConversant is called.
func NewThreadService(store ThreadStore, counter models.TokenCounter, collector *metrics.Collector) *ThreadService {
	return &ThreadService{
		store:      store,
		counter:    counter,
		metrics:    collector,
		events:     newHub(),
		conversant: CannedConversant{},
		now:        func() time.Time { return time.Now().UTC() },
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *ThreadService) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create starts an empty thread. An empty title becomes "New Thread".
func (s *ThreadService) Create(ctx context.Context, title string) (*models.Thread, error) {
	if title == "" {
		title = models.DefaultThreadTitle
	}
	thread := models.Thread{ID: uuid.NewString(), Title: title, Messages: []models.Message{}}
	if err := s.store.CreateThread(ctx, thread, s.now()); err != nil {
		return nil, err
	}
	s.metrics.Inc(metrics.CounterThreadsCreated)
	slog.Info("thread created", "thread_id", thread.ID, "title", title)
	return &thread, nil
}

// Import stores a complete thread, messages included. The thread is
// recorded as created at its earliest message, or now if that is earlier,
// so its summary keeps the last message's timestamp as updatedAt.
func (s *ThreadService) Import(ctx context.Context, thread models.Thread) (*models.Thread, error) {
	if err := thread.Validate(); err != nil {
		return nil, err
	}
	if thread.Messages == nil {
		thread.Messages = []models.Message{}
	}
	createdAt := s.now()
	for _, m := range thread.Messages {
		if m.Timestamp.Before(createdAt) {
			createdAt = m.Timestamp
		}
	}
	if err := s.store.CreateThread(ctx, thread, createdAt); err != nil {
		return nil, err
	}
	s.metrics.Inc(metrics.CounterThreadsCreated)
	slog.Info("thread imported", "thread_id", thread.ID, "messages", len(thread.Messages))
	return &thread, nil
}

// Get returns the full thread.
func (s *ThreadService) Get(ctx context.Context, id string) (*models.Thread, error) {
	st, err := s.store.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	return &st.Thread, nil
}

// Info derives the thread summary.
func (s *ThreadService) Info(ctx context.Context, id string) (*models.ThreadInfo, error) {
	st, err := s.store.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	info := st.Info(s.counter)
	return &info, nil
}

// List returns summaries of all threads, most recently updated first.
func (s *ThreadService) List(ctx context.Context) ([]models.ThreadInfo, error) {
	threads, err := s.store.ListThreads(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]models.ThreadInfo, 0, len(threads))
	for _, st := range threads {
		infos = append(infos, st.Info(s.counter))
	}
	slices.SortStableFunc(infos, func(a, b models.ThreadInfo) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return infos, nil
}

// Rename changes a thread's title.
func (s *ThreadService) Rename(ctx context.Context, id, title string) (*models.Thread, error) {
	if err := s.store.RenameThread(ctx, id, title); err != nil {
		return nil, err
	}
	s.events.publish(ThreadEvent{Type: EventRenamed, ThreadID: id, Title: title})
	return s.Get(ctx, id)
}

// Delete removes a thread and ends its subscriptions.
func (s *ThreadService) Delete(ctx context.Context, id string) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if err := s.store.DeleteThread(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()

	s.events.publish(ThreadEvent{Type: EventDeleted, ThreadID: id})
	s.events.closeThread(id)
	s.metrics.Inc(metrics.CounterThreadsDeleted)
	slog.Info("thread deleted", "thread_id", id)
	return nil
}

// Append validates m and adds it to the end of the thread. A missing id
// or timestamp is filled in. Appends to the same thread are serialized.
func (s *ThreadService) Append(ctx context.Context, threadID string, m models.Message) (*models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	l := s.lockFor(threadID)
	l.Lock()
	defer l.Unlock()

	if err := s.store.AppendMessage(ctx, threadID, m); err != nil {
		return nil, fmt.Errorf("append to thread %s: %w", threadID, err)
	}

	s.metrics.Inc(metrics.CounterMessagesAppended)
	s.events.publish(ThreadEvent{Type: EventMessage, ThreadID: threadID, Message: &m})
	slog.Debug("message appended", "thread_id", threadID, "message_id", m.ID, "role", m.Role)
	return &m, nil
}

// Subscribe streams events for one thread until cancel is called or the
// thread is deleted. Events are dropped for a subscriber whose buffer is full.
func (s *ThreadService) Subscribe(ctx context.Context, threadID string) (<-chan ThreadEvent, func(), error) {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.events.subscribe(threadID)
	return ch, cancel, nil
}
