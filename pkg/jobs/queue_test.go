package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make([]string, 0)
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(_ context.Context, task Task) error {
		mu.Lock()
		seen = append(seen, task.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Options{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "a", Kind: "export"}))
	require.NoError(t, q.Enqueue(Task{ID: "b", Kind: "export"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	dropped := make(chan Task, 1)

	q := NewQueue("test", func(_ context.Context, _ Task) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("boom")
	}, Options{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		OnDrop: func(task Task, _ error) {
			dropped <- task
		},
	})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "fail", Kind: "export"}))

	select {
	case task := <-dropped:
		assert.Equal(t, "fail", task.ID)
		assert.Equal(t, 3, task.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(_ context.Context, _ Task) error { return nil }, Options{})
	assert.Error(t, q.Enqueue(Task{ID: "early"}))
}
