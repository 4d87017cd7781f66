package factory

import (
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerrelay/internal/config"
	"github.com/mcoot/playerrelay/internal/services/players"
	"github.com/mcoot/playerrelay/internal/services/registry"
	"github.com/mcoot/playerrelay/internal/storage/memory"
	redisstorage "github.com/mcoot/playerrelay/internal/storage/redis"
	"github.com/mcoot/playerrelay/internal/testutil"
)

func TestNew_DefaultsToMemory(t *testing.T) {
	app, err := New(Config{})
	require.NoError(t, err)
	defer app.Close()

	_, ok := app.Storage.(*memory.Storage)
	assert.True(t, ok)
	assert.Equal(t, players.PolicyAppend, app.Players.Policy())
}

func TestNew_Redis(t *testing.T) {
	mini := miniredis.RunT(t)
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = "redis://" + mini.Addr()

	app, err := New(Config{StorageType: config.StorageTypeRedis, RedisConfig: &redisCfg})
	require.NoError(t, err)
	defer app.Close()

	_, ok := app.Storage.(*redisstorage.Storage)
	assert.True(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{StorageType: config.StorageTypeRedis})
	assert.Error(t, err)

	_, err = New(Config{StorageType: "sqlite"})
	assert.Error(t, err)

	unreachable := redisstorage.DefaultConfig()
	unreachable.URL = "redis://127.0.0.1:1"
	_, err = New(Config{StorageType: config.StorageTypeRedis, RedisConfig: &unreachable})
	assert.Error(t, err)
}

func TestConfigFromSettings(t *testing.T) {
	s := config.Default()
	s.StorageType = config.StorageTypeRedis
	s.RedisURL = "redis://cache:6379/2"
	s.RedisKeyPrefix = "room1"
	s.RedisTTL = time.Hour
	s.DuplicatePolicy = players.PolicyReplace
	s.SendTimeout = time.Second
	s.SendBufferSize = 4
	s.BroadcastConcurrency = 2
	s.AllowedOrigins = []string{"https://a.example"}
	s.RateLimitPerSecond = 3
	s.RateLimitBurst = 6

	logger := testutil.NopLogger()
	cfg := ConfigFromSettings(s, logger)

	assert.Same(t, logger, cfg.Logger)
	require.NotNil(t, cfg.RedisConfig)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisConfig.URL)
	assert.Equal(t, "room1", cfg.RedisConfig.KeyPrefix)
	assert.Equal(t, time.Hour, cfg.RedisConfig.PlayerTTL)
	assert.Equal(t, players.PolicyReplace, cfg.DuplicatePolicy)
	assert.Equal(t, time.Second, cfg.Broadcast.SendTimeout)
	assert.Equal(t, 2, cfg.Broadcast.Concurrency)
	assert.Equal(t, 4, cfg.WebSocket.BufferSize)
	assert.Equal(t, 4, cfg.Events.BufferSize)
	assert.Equal(t, []string{"https://a.example"}, cfg.WebSocket.AllowedOrigins)
	assert.InDelta(t, 3.0, cfg.WebSocket.RatePerSecond, 0.001)
	assert.Equal(t, 6, cfg.WebSocket.RateBurst)

	s.StorageType = config.StorageTypeMemory
	assert.Nil(t, ConfigFromSettings(s, slog.Default()).RedisConfig)
}

func TestNewTestApp_UsesMockClock(t *testing.T) {
	app := NewTestApp()
	conn := app.Registry.NewConnection(registry.ConnectionOptions{Kind: registry.KindWebSocket})
	assert.Equal(t, app.MockClock.Now(), conn.ConnectedAt())
}
