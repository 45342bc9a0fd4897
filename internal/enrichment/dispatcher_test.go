package enrichment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingEnricher struct {
	mu    sync.Mutex
	calls []Request
	block chan struct{}
}

func (r *recordingEnricher) Enrich(ctx context.Context, path string, urls []string, ack *Ack) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Request{NotePath: path, URLs: urls, Ack: ack})
	return nil
}

func (r *recordingEnricher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestDispatcher_RunsRequests(t *testing.T) {
	enricher := &recordingEnricher{}
	d := NewDispatcher(enricher, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))

	id, err := d.Dispatch("/vault/a.md", []string{"https://a"}, &Ack{ChatID: 1, MessageID: 2})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	_, err = d.Dispatch("/vault/b.md", nil, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return enricher.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int64(0), d.Pending())

	enricher.mu.Lock()
	defer enricher.mu.Unlock()
	byPath := map[string]Request{}
	for _, c := range enricher.calls {
		byPath[c.NotePath] = c
	}
	assert.Equal(t, []string{"https://a"}, byPath["/vault/a.md"].URLs)
	assert.Equal(t, &Ack{ChatID: 1, MessageID: 2}, byPath["/vault/a.md"].Ack)
	assert.Nil(t, byPath["/vault/b.md"].Ack)
}

func TestDispatcher_NotStarted(t *testing.T) {
	d := NewDispatcher(&recordingEnricher{}, zap.NewNop())
	_, err := d.Dispatch("/x.md", nil, nil)
	assert.Error(t, err)
}

func TestDispatcher_CloseWaitsForRuns(t *testing.T) {
	enricher := &recordingEnricher{block: make(chan struct{})}
	d := NewDispatcher(enricher, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))

	_, err := d.Dispatch("/x.md", nil, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.Pending() == 1 }, time.Second, 10*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(enricher.block)
	}()
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, enricher.count())
}

func TestDispatcher_CloseTimeoutCancelsRuns(t *testing.T) {
	enricher := &recordingEnricher{block: make(chan struct{})}
	d := NewDispatcher(enricher, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))

	_, err := d.Dispatch("/x.md", nil, nil)
	require.NoError(t, err)

	// Wait until the run is in flight.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, enricher.count())
	assert.Equal(t, int64(0), d.Pending())
}
