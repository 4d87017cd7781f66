package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/playerrelay/internal/model"
)

// State is a connection's position in its lifecycle:
// Connecting -> Open -> Closing -> Closed.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Kind identifies the transport behind a connection
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindSSE       Kind = "sse"
)

// DefaultBufferSize is the outbound queue length used when none is configured
const DefaultBufferSize = 16

// ConnectionOptions describes the transport a connection wraps
type ConnectionOptions struct {
	Kind       Kind
	RemoteAddr string
	// BufferSize bounds the outbound queue
	BufferSize int
	// Closer tears down the underlying transport. Called once.
	Closer func() error
}

// Connection is a live transport channel with a bounded outbound queue.
// The transport's writer drains Outbound() until Done() is closed.
type Connection struct {
	id          string
	kind        Kind
	remoteAddr  string
	connectedAt time.Time

	state     atomic.Int32
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closer    func() error
}

// NewConnection creates a connection in the Connecting state
func NewConnection(id string, connectedAt time.Time, opts ConnectionOptions) *Connection {
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Connection{
		id:          id,
		kind:        opts.Kind,
		remoteAddr:  opts.RemoteAddr,
		connectedAt: connectedAt,
		send:        make(chan []byte, bufferSize),
		done:        make(chan struct{}),
		closer:      opts.Closer,
	}
}

func (c *Connection) ID() string             { return c.id }
func (c *Connection) Kind() Kind             { return c.kind }
func (c *Connection) RemoteAddr() string     { return c.remoteAddr }
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// State returns the current lifecycle state
func (c *Connection) State() State {
	return State(c.state.Load())
}

// IsOpen reports whether the connection is eligible for delivery
func (c *Connection) IsOpen() bool {
	return c.State() == StateOpen
}

// Outbound returns the queue the transport writer drains
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Done is closed once the connection starts closing
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Send enqueues a complete payload for the writer. It fails with
// model.ErrSendFailure if the connection is not open or the queue stays full
// until ctx expires.
func (c *Connection) Send(ctx context.Context, payload []byte) error {
	if !c.IsOpen() {
		return fmt.Errorf("%w: %w", model.ErrSendFailure, model.ErrConnectionClosed)
	}

	// A free slot always wins, even against an expired ctx
	select {
	case c.send <- payload:
		return nil
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %w", model.ErrSendFailure, model.ErrConnectionClosed)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", model.ErrSendFailure, ctx.Err())
	}
}

func (c *Connection) open() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// close moves the connection through Closing to Closed and tears down the
// transport. Only the first call has any effect.
func (c *Connection) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		close(c.done)
		if c.closer != nil {
			err = c.closer()
		}
		c.state.Store(int32(StateClosed))
	})
	return err
}
