package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueueOrder(t *testing.T) {
	q := newJobQueue()
	q.push("a", 0)
	q.push("b", 5)
	q.push("c", 5)
	q.push("d", -1)
	q.push("e", 10)
	require.Equal(t, 5, q.len())

	ctx := context.Background()
	var got []string
	for q.len() > 0 {
		id, ok := q.pop(ctx)
		require.True(t, ok)
		got = append(got, id)
	}
	assert.Equal(t, []string{"e", "b", "c", "a", "d"}, got)
}

func TestJobQueuePopBlocksUntilPush(t *testing.T) {
	q := newJobQueue()
	result := make(chan string, 1)
	go func() {
		id, _ := q.pop(context.Background())
		result <- id
	}()

	select {
	case <-result:
		t.Fatal("pop returned on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.push("late", 0)
	select {
	case id := <-result:
		assert.Equal(t, "late", id)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestJobQueuePopCancelled(t *testing.T) {
	q := newJobQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.pop(ctx)
	assert.False(t, ok)
}

func TestJobQueueWakesEveryWaiter(t *testing.T) {
	q := newJobQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const waiters = 3
	results := make(chan string, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			id, ok := q.pop(ctx)
			if ok {
				results <- id
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.push("x", 0)
	q.push("y", 0)
	q.push("z", 0)

	seen := map[string]bool{}
	for i := 0; i < waiters; i++ {
		select {
		case id := <-results:
			seen[id] = true
		case <-ctx.Done():
			t.Fatalf("only %d of %d waiters woke", i, waiters)
		}
	}
	assert.Len(t, seen, waiters)
}
