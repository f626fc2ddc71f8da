package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("journal", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndGet(t *testing.T) {
	j := openMem(t)

	s1, err := j.Append([]byte(`{"kind":"registered"}`))
	require.NoError(t, err)
	s2, err := j.Append([]byte(`{"kind":"destroyed"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s1)
	assert.Equal(t, uint64(2), s2)

	e, err := j.Get(s2)
	require.NoError(t, err)
	assert.Equal(t, StateNew, e.State)
	assert.Equal(t, `{"kind":"destroyed"}`, string(e.Payload))
}

func TestStateTransitions(t *testing.T) {
	j := openMem(t)
	seq, err := j.Append([]byte("x"))
	require.NoError(t, err)

	require.NoError(t, j.MarkSent(seq))
	e, _ := j.Get(seq)
	assert.Equal(t, StateSent, e.State)
	assert.NotZero(t, e.LastAttempt)

	require.NoError(t, j.MarkRetry(seq))
	e, _ = j.Get(seq)
	assert.Equal(t, StateNew, e.State)
	assert.Equal(t, uint32(1), e.Retries)

	require.NoError(t, j.MarkAcked(seq))
	e, _ = j.Get(seq)
	assert.Equal(t, StateAcked, e.State)
	assert.Equal(t, []byte("x"), e.Payload)
}

func TestScanByStateAndPrune(t *testing.T) {
	j := openMem(t)
	for i := 0; i < 5; i++ {
		_, err := j.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, j.MarkAcked(2))
	require.NoError(t, j.MarkAcked(4))
	require.NoError(t, j.MarkFailed(5))

	var pending []uint64
	require.NoError(t, j.ScanByState(StateNew, func(e Entry) error {
		pending = append(pending, e.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 3}, pending)

	counts, err := j.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StateNew])
	assert.Equal(t, 2, counts[StateAcked])
	assert.Equal(t, 1, counts[StateFailed])

	n, err := j.PruneAcked()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, _ = j.Counts()
	assert.Equal(t, 0, counts[StateAcked])
}

func TestReopenResumesSequence(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, Options{NoSync: true})
	require.NoError(t, err)
	_, _ = j.Append([]byte("a"))
	_, _ = j.Append([]byte("b"))
	require.NoError(t, j.Close())

	j, err = Open(dir, Options{NoSync: true})
	require.NoError(t, err)
	defer j.Close()

	seq, err := j.Append([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestDecodeRejectsShortEntry(t *testing.T) {
	_, err := decodeEntry(1, []byte{1, 2})
	assert.ErrorIs(t, err, ErrBadEntry)
}
