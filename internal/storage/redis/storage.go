package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/storage"
)

// Storage is a Redis-backed implementation of the player store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.PlayerStore = (*Storage)(nil)

func (s *Storage) keys() []string {
	return []string{playersKey(s.cfg.KeyPrefix), playersIndexKey(s.cfg.KeyPrefix)}
}

// ttlMillis rounds a positive TTL up to whole milliseconds so it never
// collapses to 0, which the scripts read as no expiry
func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

func (s *Storage) run(ctx context.Context, script *redis.Script, player *model.Player) (int64, error) {
	return script.Run(ctx, s.client, s.keys(), string(player.ID), string(player.Data), ttlMillis(s.cfg.PlayerTTL)).Int64()
}

func (s *Storage) Append(ctx context.Context, player *model.Player) error {
	_, err := s.run(ctx, appendScript, player)
	return err
}

func (s *Storage) AppendUnique(ctx context.Context, player *model.Player) error {
	added, err := s.run(ctx, appendUniqueScript, player)
	if err != nil {
		return err
	}
	if added == 0 {
		return model.ErrDuplicatePlayer
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, player *model.Player) (bool, error) {
	replaced, err := s.run(ctx, upsertScript, player)
	if err != nil {
		return false, err
	}
	return replaced == 1, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	posStr, err := s.client.HGet(ctx, playersIndexKey(s.cfg.KeyPrefix), string(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	pos, err := strconv.ParseInt(posStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt index entry for %s: %w", id, err)
	}

	data, err := s.client.LIndex(ctx, playersKey(s.cfg.KeyPrefix), pos).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) Snapshot(ctx context.Context) ([]model.Player, error) {
	values, err := s.client.LRange(ctx, playersKey(s.cfg.KeyPrefix), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	players := make([]model.Player, 0, len(values))
	for i, val := range values {
		var player model.Player
		if err := json.Unmarshal([]byte(val), &player); err != nil {
			return nil, fmt.Errorf("corrupt player entry at %d: %w", i, err)
		}
		players = append(players, player)
	}
	return players, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, playersKey(s.cfg.KeyPrefix)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
