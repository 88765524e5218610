package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline_RunsSynchronously(t *testing.T) {
	e := NewInline()
	ran := false
	err := e.Schedule(func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestInline_RejectsAfterClose(t *testing.T) {
	e := NewInline()
	require.NoError(t, e.Close())
	err := e.Schedule(func() {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_PreservesSubmissionOrder(t *testing.T) {
	p := NewPool()
	defer p.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, p.Schedule(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := range order {
		assert.Equal(t, i, order[i])
	}
}

func TestPool_ScheduleDoesNotBlockCaller(t *testing.T) {
	p := NewPool()
	defer p.Close()

	block := make(chan struct{})
	require.NoError(t, p.Schedule(func() { <-block }))

	done := make(chan struct{})
	go func() {
		_ = p.Schedule(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule blocked on a busy worker")
	}
	close(block)
}

func TestPool_DrainsOnClose(t *testing.T) {
	p := NewPool()
	var ran bool
	require.NoError(t, p.Schedule(func() { ran = true }))
	require.NoError(t, p.Close())
	assert.True(t, ran)
}

func TestPool_RejectsAfterClose(t *testing.T) {
	p := NewPool()
	require.NoError(t, p.Close())
	err := p.Schedule(func() {})
	assert.ErrorIs(t, err, ErrClosed)
}
