package frameio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflow/lccstack/internal/canframe"
)

func TestLoopback_SendThenReceive(t *testing.T) {
	l := NewLoopback()
	f := canframe.New(0x19100333, []byte{1, 2, 3})
	require.NoError(t, l.Send(f))

	got, err := l.Receive()
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestLoopback_ReceiveBlocksUntilSend(t *testing.T) {
	l := NewLoopback()
	done := make(chan canframe.Frame, 1)
	go func() {
		f, err := l.Receive()
		if err == nil {
			done <- f
		}
	}()

	time.Sleep(10 * time.Millisecond)
	f := canframe.New(0x19100333, nil)
	require.NoError(t, l.Send(f))

	select {
	case got := <-done:
		assert.Equal(t, f, got)
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Send")
	}
}

func TestLoopback_CloseUnblocksReceive(t *testing.T) {
	l := NewLoopback()
	errc := make(chan error, 1)
	go func() {
		_, err := l.Receive()
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Receive")
	}
}

func TestLoopback_SendAfterCloseFails(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Close())
	err := l.Send(canframe.New(0, nil))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopback_CloseIsIdempotent(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}
