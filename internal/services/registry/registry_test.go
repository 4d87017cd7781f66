package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerrelay/internal/dependencies/mocks"
	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/testutil"
)

func newTestRegistry() (*Registry, *mocks.MockClock) {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(clk, testutil.NopLogger()), clk
}

func TestConnection_StateMachine(t *testing.T) {
	reg, _ := newTestRegistry()

	closed := 0
	conn := reg.NewConnection(ConnectionOptions{
		Kind:   KindWebSocket,
		Closer: func() error { closed++; return nil },
	})
	assert.Equal(t, StateConnecting, conn.State())
	assert.NotEmpty(t, conn.ID())

	require.NoError(t, reg.Add(conn))
	assert.Equal(t, StateOpen, conn.State())

	assert.True(t, reg.Remove(conn.ID()))
	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, 1, closed)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done() not closed after removal")
	}

	// Closed is terminal
	assert.ErrorIs(t, reg.Add(conn), ErrNotConnecting)
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnection_StampedWithClock(t *testing.T) {
	reg, clk := newTestRegistry()
	conn := reg.NewConnection(ConnectionOptions{Kind: KindSSE, RemoteAddr: "10.0.0.1:5000"})

	assert.Equal(t, clk.Now(), conn.ConnectedAt())
	assert.Equal(t, KindSSE, conn.Kind())
	assert.Equal(t, "10.0.0.1:5000", conn.RemoteAddr())
}

func TestConnection_SendRequiresOpen(t *testing.T) {
	reg, _ := newTestRegistry()
	conn := reg.NewConnection(ConnectionOptions{Kind: KindWebSocket})

	err := conn.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, model.ErrSendFailure)
	assert.ErrorIs(t, err, model.ErrConnectionClosed)

	require.NoError(t, reg.Add(conn))
	require.NoError(t, conn.Send(context.Background(), []byte("x")))
	assert.Equal(t, []byte("x"), <-conn.Outbound())

	reg.Remove(conn.ID())
	err = conn.Send(context.Background(), []byte("y"))
	assert.ErrorIs(t, err, model.ErrConnectionClosed)
}

func TestConnection_SendTimesOutWhenQueueFull(t *testing.T) {
	reg, _ := newTestRegistry()
	conn := reg.NewConnection(ConnectionOptions{Kind: KindWebSocket, BufferSize: 1})
	require.NoError(t, reg.Add(conn))

	require.NoError(t, conn.Send(context.Background(), []byte("first")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := conn.Send(ctx, []byte("second"))
	assert.ErrorIs(t, err, model.ErrSendFailure)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConnection_SendPrefersFreeSlotOverDoneContext(t *testing.T) {
	reg, _ := newTestRegistry()
	conn := reg.NewConnection(ConnectionOptions{Kind: KindWebSocket, BufferSize: 64})
	require.NoError(t, reg.Add(conn))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 64; i++ {
		require.NoError(t, conn.Send(ctx, []byte("x")))
	}

	err := conn.Send(ctx, []byte("overflow"))
	assert.ErrorIs(t, err, model.ErrSendFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_AddRejectsDuplicateID(t *testing.T) {
	reg, clk := newTestRegistry()
	first := NewConnection("same", clk.Now(), ConnectionOptions{Kind: KindWebSocket})
	second := NewConnection("same", clk.Now(), ConnectionOptions{Kind: KindWebSocket})

	require.NoError(t, reg.Add(first))
	assert.ErrorIs(t, reg.Add(second), ErrDuplicateConnection)
	assert.Equal(t, StateConnecting, second.State())
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()

	calls := 0
	conn := reg.NewConnection(ConnectionOptions{
		Kind:   KindWebSocket,
		Closer: func() error { calls++; return errors.New("already closed") },
	})
	require.NoError(t, reg.Add(conn))

	assert.True(t, reg.Remove(conn.ID()))
	assert.False(t, reg.Remove(conn.ID()))
	assert.False(t, reg.Remove("unknown"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, reg.Count())

	_, ok := reg.Get(conn.ID())
	assert.False(t, ok)
}

func TestRegistry_ForEachLiveSkipsRemoved(t *testing.T) {
	reg, _ := newTestRegistry()

	var ids []string
	for i := 0; i < 3; i++ {
		conn := reg.NewConnection(ConnectionOptions{Kind: KindWebSocket})
		require.NoError(t, reg.Add(conn))
		ids = append(ids, conn.ID())
	}
	reg.Remove(ids[1])

	seen := map[string]bool{}
	reg.ForEachLive(func(c *Connection) {
		seen[c.ID()] = true
		// Removing during iteration must be safe
		reg.Remove(c.ID())
	})

	assert.Equal(t, map[string]bool{ids[0]: true, ids[2]: true}, seen)
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	reg, _ := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := reg.NewConnection(ConnectionOptions{Kind: KindWebSocket})
			if err := reg.Add(conn); err != nil {
				t.Errorf("Add() error = %v", err)
				return
			}
			reg.ForEachLive(func(*Connection) {})
			reg.Remove(conn.ID())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_CloseAll(t *testing.T) {
	reg, _ := newTestRegistry()

	var conns []*Connection
	for i := 0; i < 3; i++ {
		conn := reg.NewConnection(ConnectionOptions{Kind: KindSSE})
		require.NoError(t, reg.Add(conn))
		conns = append(conns, conn)
	}

	assert.Equal(t, 3, reg.CloseAll())
	assert.Equal(t, 0, reg.Count())
	for _, c := range conns {
		assert.Equal(t, StateClosed, c.State())
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
}
