package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/altron-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// recordKey returns the key part of a record id. Threads, messages and jobs
// are always written with string keys.
func recordKey(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("record %s has %T key, want string", id.Table, id.ID)
	}
	return s, nil
}

// StoredThread is a thread together with the bookkeeping the store keeps
// for it.
type StoredThread struct {
	Thread    models.Thread
	CreatedAt time.Time
}

// Info derives the thread summary using counter for tokens.
func (s StoredThread) Info(counter models.TokenCounter) models.ThreadInfo {
	return models.DeriveThreadInfo(s.Thread, s.CreatedAt, counter)
}

type threadRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
}

type messageRecord struct {
	Thread    string    `json:"thread"`
	Seq       int       `json:"seq"`
	MsgID     string    `json:"msg_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessageRecord(threadID string, seq int, m models.Message) (map[string]any, error) {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return map[string]any{
		"thread":    threadID,
		"seq":       seq,
		"msg_id":    m.ID,
		"role":      string(m.Role),
		"content":   string(content),
		"timestamp": m.Timestamp.UTC(),
	}, nil
}

func (r messageRecord) message() (models.Message, error) {
	content, err := models.DecodeMessageContent([]byte(r.Content))
	if err != nil {
		return models.Message{}, fmt.Errorf("decode message %s: %w", r.MsgID, err)
	}
	return models.Message{
		ID:        r.MsgID,
		Role:      models.Role(r.Role),
		Content:   content,
		Timestamp: r.Timestamp.UTC(),
	}, nil
}

// CreateThread stores a thread and any messages it already carries.
// Returns ErrAlreadyExists if the id is taken.
func (c *Client) CreateThread(ctx context.Context, thread models.Thread, createdAt time.Time) error {
	msgs := make([]map[string]any, 0, len(thread.Messages))
	for i, m := range thread.Messages {
		rec, err := newMessageRecord(thread.ID, i, m)
		if err != nil {
			return err
		}
		msgs = append(msgs, rec)
	}

	sql := `
		BEGIN TRANSACTION;
		CREATE type::record("thread", $id) SET title = $title, created_at = $created_at;
		IF array::len($messages) > 0 { INSERT INTO message $messages; };
		COMMIT TRANSACTION;
	`
	_, err := query[any](ctx, c, sql, map[string]any{
		"id":         thread.ID,
		"title":      thread.Title,
		"created_at": createdAt.UTC(),
		"messages":   msgs,
	})
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

// GetThread loads a thread with its messages in conversation order.
func (c *Client) GetThread(ctx context.Context, id string) (*StoredThread, error) {
	results, err := query[[]threadRecord](ctx, c, `SELECT * FROM type::record("thread", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	rec, ok := first(results)
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}

	msgResults, err := query[[]messageRecord](ctx, c,
		`SELECT * FROM message WHERE thread = $id ORDER BY seq ASC`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	return buildThread(rec, rows(msgResults))
}

// ListThreads loads every thread with its messages.
func (c *Client) ListThreads(ctx context.Context) ([]StoredThread, error) {
	results, err := query[[]threadRecord](ctx, c, `SELECT * FROM thread ORDER BY created_at ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	msgResults, err := query[[]messageRecord](ctx, c, `SELECT * FROM message ORDER BY thread, seq ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	byThread := make(map[string][]messageRecord)
	for _, m := range rows(msgResults) {
		byThread[m.Thread] = append(byThread[m.Thread], m)
	}

	threads := make([]StoredThread, 0, len(rows(results)))
	for _, rec := range rows(results) {
		id, err := recordKey(rec.ID)
		if err != nil {
			return nil, err
		}
		st, err := buildThread(rec, byThread[id])
		if err != nil {
			return nil, err
		}
		threads = append(threads, *st)
	}
	return threads, nil
}

func buildThread(rec threadRecord, msgs []messageRecord) (*StoredThread, error) {
	id, err := recordKey(rec.ID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(msgs, func(a, b messageRecord) int { return a.Seq - b.Seq })

	thread := models.Thread{ID: id, Title: rec.Title, Messages: make([]models.Message, 0, len(msgs))}
	for _, r := range msgs {
		m, err := r.message()
		if err != nil {
			return nil, err
		}
		thread.Messages = append(thread.Messages, m)
	}
	return &StoredThread{Thread: thread, CreatedAt: rec.CreatedAt.UTC()}, nil
}

// RenameThread sets a new title.
func (c *Client) RenameThread(ctx context.Context, id, title string) error {
	results, err := query[[]threadRecord](ctx, c, `
		UPDATE type::record("thread", $id) SET title = $title RETURN AFTER
	`, map[string]any{"id": id, "title": title})
	if err != nil {
		return fmt.Errorf("rename thread: %w", err)
	}
	if _, ok := first(results); !ok {
		return fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteThread removes a thread and its messages in one transaction.
func (c *Client) DeleteThread(ctx context.Context, id string) error {
	results, err := query[[]threadRecord](ctx, c, `
		BEGIN TRANSACTION;
		DELETE type::record("thread", $id) RETURN BEFORE;
		DELETE message WHERE thread = $id;
		COMMIT TRANSACTION;
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if _, ok := first(results); !ok {
		return fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	return nil
}

// appendSQL checks the thread, takes the next seq and creates the message
// in one transaction. The unique (thread, seq) index rejects a concurrent
// writer that read the same count.
const appendSQL = `
	BEGIN TRANSACTION;
	IF array::len(SELECT VALUE id FROM type::record("thread", $id)) == 0 {
		THROW "thread not found";
	};
	LET $seq = (SELECT count() AS c FROM message WHERE thread = $id GROUP ALL)[0].c ?? 0;
	CREATE message SET
		thread = $id,
		seq = $seq,
		msg_id = $rec.msg_id,
		role = $rec.role,
		content = $rec.content,
		timestamp = $rec.timestamp;
	COMMIT TRANSACTION;
`

// appendRetries bounds retries after losing a seq race to another process.
const appendRetries = 10

// AppendMessage adds m at the end of the thread. Returns ErrNotFound for an
// unknown thread and ErrAlreadyExists if the message id is already used in
// it. Conflicting appends from other processes are retried.
func (c *Client) AppendMessage(ctx context.Context, threadID string, m models.Message) error {
	rec, err := newMessageRecord(threadID, 0, m)
	if err != nil {
		return err
	}
	delete(rec, "seq")
	vars := map[string]any{"id": threadID, "rec": rec}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond
	attempt := 0

	err = backoff.Retry(func() error {
		attempt++
		_, err := query[any](ctx, c, appendSQL, vars)
		if errors.Is(err, ErrTransactionConflict) {
			slog.Debug("append conflict, retrying", "thread_id", threadID, "attempt", attempt)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, appendRetries), ctx))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
