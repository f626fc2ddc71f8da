package broadcaster

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergc/infra/journal"
)

type fakePublisher struct {
	mu     sync.Mutex
	fail   int
	keys   []string
	values []string
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, string(value))
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.values)
}

func setup(t *testing.T, pub *fakePublisher, maxRetries int) (*journal.Journal, *Broadcaster) {
	t.Helper()
	j, err := journal.Open("journal", journal.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	b := New(j, pub, Config{
		Interval:   time.Millisecond,
		MaxRetries: maxRetries,
		Logger:     log.New(io.Discard, "", 0),
	})
	return j, b
}

func TestDrainOncePublishesAndAcks(t *testing.T) {
	pub := &fakePublisher{}
	j, b := setup(t, pub, 0)

	for _, p := range []string{"a", "b", "c"} {
		_, err := j.Append([]byte(p))
		require.NoError(t, err)
	}

	res, err := b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Published: 3}, res)
	assert.Equal(t, []string{"a", "b", "c"}, pub.values)
	assert.Equal(t, []string{"1", "2", "3"}, pub.keys)

	counts, err := j.Counts()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[journal.StateAcked])

	res, err = b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestDrainOnceRetriesThenFails(t *testing.T) {
	pub := &fakePublisher{fail: 3}
	j, b := setup(t, pub, 2)

	seq, err := j.Append([]byte("x"))
	require.NoError(t, err)

	res, err := b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Retried: 1}, res)

	e, err := j.Get(seq)
	require.NoError(t, err)
	assert.Equal(t, journal.StateNew, e.State)
	assert.Equal(t, uint32(1), e.Retries)

	res, err = b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	e, err = j.Get(seq)
	require.NoError(t, err)
	assert.Equal(t, journal.StateFailed, e.State)
	assert.Zero(t, pub.published())
}

func TestRecoverRequeuesSent(t *testing.T) {
	pub := &fakePublisher{}
	j, b := setup(t, pub, 0)

	seq, err := j.Append([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, j.MarkSent(seq))

	n, err := b.Recover()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := j.Get(seq)
	require.NoError(t, err)
	assert.Equal(t, journal.StateNew, e.State)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	pub := &fakePublisher{}
	j, b := setup(t, pub, 0)
	_, err := j.Append([]byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.published() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	require.NoError(t, b.Close())
	assert.True(t, pub.closed)
}
