package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/services/registry"
)

const (
	DefaultSendTimeout = 5 * time.Second
	DefaultConcurrency = 32
)

// SnapshotSource provides the player list to broadcast
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]model.Player, error)
}

// Config holds engine tuning
type Config struct {
	SendTimeout time.Duration
	Concurrency int
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		SendTimeout: DefaultSendTimeout,
		Concurrency: DefaultConcurrency,
	}
}

// Result summarises one broadcast
type Result struct {
	Attempted int
	Delivered int
	Failed    int
}

// Engine pushes payloads to every live connection in the registry
type Engine struct {
	registry *registry.Registry
	players  SnapshotSource
	config   Config
	logger   *slog.Logger

	// mu serializes broadcasts so every queue sees snapshots in order
	mu sync.Mutex
}

// New creates a broadcast engine
func New(reg *registry.Registry, players SnapshotSource, cfg Config, logger *slog.Logger) *Engine {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Engine{
		registry: reg,
		players:  players,
		config:   cfg,
		logger:   logger.With(slog.String("component", "broadcast")),
	}
}

// BroadcastAll serializes payload once and delivers it to every connection
// live at the start of the call. A connection whose send fails is removed
// from the registry; delivery to the others carries on.
func (e *Engine) BroadcastAll(ctx context.Context, payload any) (Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to serialize broadcast: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deliver(ctx, data), nil
}

// BroadcastPlayers snapshots the player list and broadcasts it. The snapshot
// is taken inside the broadcast lock so later snapshots are never delivered
// ahead of earlier ones.
func (e *Engine) BroadcastPlayers(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.players.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to snapshot players: %w", err)
	}
	if snapshot == nil {
		snapshot = []model.Player{}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("failed to serialize players: %w", err)
	}

	result := e.deliver(ctx, data)
	e.logger.Debug("players broadcast",
		slog.Int("players", len(snapshot)),
		slog.Int("delivered", result.Delivered))
	return result, nil
}

// deliver fans data out to the live set. Callers hold e.mu.
// deliver bounds every send by SendTimeout alone; cancelling the caller's
// ctx never counts as a failed send.
func (e *Engine) deliver(ctx context.Context, data []byte) Result {
	ctx = context.WithoutCancel(ctx)
	var attempted int
	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(e.config.Concurrency)

	e.registry.ForEachLive(func(conn *registry.Connection) {
		attempted++
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, e.config.SendTimeout)
			defer cancel()

			if err := conn.Send(sendCtx, data); err != nil {
				failed.Add(1)
				e.logger.Warn("send failed, removing connection",
					slog.String("connection_id", conn.ID()),
					slog.Any("error", err))
				e.registry.Remove(conn.ID())
			}
			// One connection failing never cancels the others
			return nil
		})
	})
	_ = g.Wait()

	result := Result{Attempted: attempted, Failed: int(failed.Load())}
	result.Delivered = result.Attempted - result.Failed
	if result.Failed > 0 {
		e.logger.Warn("broadcast partially failed",
			slog.Int("attempted", result.Attempted),
			slog.Int("failed", result.Failed))
	}
	return result
}
