package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/playerrelay/internal/api"
	"github.com/mcoot/playerrelay/internal/config"
	"github.com/mcoot/playerrelay/internal/dependencies/clock"
	"github.com/mcoot/playerrelay/internal/services/broadcast"
	"github.com/mcoot/playerrelay/internal/services/dispatcher"
	"github.com/mcoot/playerrelay/internal/services/players"
	"github.com/mcoot/playerrelay/internal/services/registry"
	"github.com/mcoot/playerrelay/internal/storage"
	"github.com/mcoot/playerrelay/internal/storage/memory"
	redisstorage "github.com/mcoot/playerrelay/internal/storage/redis"
	"github.com/mcoot/playerrelay/internal/web"
	"github.com/mcoot/playerrelay/internal/web/sse"
	"github.com/mcoot/playerrelay/internal/web/ws"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.PlayerStore

	// External dependencies
	Clock clock.Clock

	// Services
	Registry   *registry.Registry
	Players    *players.Service
	Broadcast  *broadcast.Engine
	Dispatcher *dispatcher.Dispatcher

	// Transports
	WebSocket *ws.Handler
	Events    *sse.Handler

	logger          *slog.Logger
	maxCommandBytes int64
	closeStorage    func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// DuplicatePolicy decides what a repeated REGISTER does; defaults to append
	DuplicatePolicy players.DuplicatePolicy

	Broadcast broadcast.Config
	WebSocket ws.Config
	Events    sse.Config
}

// ConfigFromSettings maps the environment configuration onto the factory
func ConfigFromSettings(s config.Config, logger *slog.Logger) Config {
	cfg := Config{
		Logger:          logger,
		StorageType:     s.StorageType,
		DuplicatePolicy: s.DuplicatePolicy,
		Broadcast: broadcast.Config{
			SendTimeout: s.SendTimeout,
			Concurrency: s.BroadcastConcurrency,
		},
		WebSocket: ws.Config{
			MaxMessageSize: s.MaxMessageSize,
			AllowedOrigins: s.AllowedOrigins,
			BufferSize:     s.SendBufferSize,
			RatePerSecond:  s.RateLimitPerSecond,
			RateBurst:      s.RateLimitBurst,
		},
		Events: sse.Config{
			BufferSize: s.SendBufferSize,
		},
	}

	if s.StorageType == config.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = s.RedisURL
		redisCfg.KeyPrefix = s.RedisKeyPrefix
		redisCfg.PlayerTTL = s.RedisTTL
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.PlayerStore
	closeStorage := func() error { return nil }
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageTypeMemory
	}

	switch storageType {
	case config.StorageTypeMemory:
		store = memory.New()
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = redisStore
		closeStorage = redisStore.Close
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	app := newWithDependencies(store, clock.New(), cfg, logger)
	app.closeStorage = closeStorage
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.PlayerStore, clk clock.Clock, cfg Config, logger *slog.Logger) *App {
	reg := registry.New(clk, logger)
	playerService := players.New(store, cfg.DuplicatePolicy, logger)
	engine := broadcast.New(reg, playerService, cfg.Broadcast, logger)
	d := dispatcher.New(playerService, engine, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Registry:        reg,
		Players:         playerService,
		Broadcast:       engine,
		Dispatcher:      d,
		WebSocket:       ws.NewHandler(reg, d, cfg.WebSocket, logger),
		Events:          sse.NewHandler(reg, cfg.Events, logger),
		logger:          logger,
		maxCommandBytes: cfg.WebSocket.MaxMessageSize,
		closeStorage:    func() error { return nil },
	}
}

// Handler combines the API and relay routers
func (a *App) Handler() http.Handler {
	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:          a.logger,
		Players:         a.Players,
		Registry:        a.Registry,
		Dispatcher:      a.Dispatcher,
		MaxCommandBytes: a.maxCommandBytes,
	})
	webRouter := web.NewRouter(web.RouterConfig{
		Logger:    a.logger,
		WebSocket: a.WebSocket,
		Events:    a.Events,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)
	return mux
}

// Close disconnects every client and releases storage
func (a *App) Close() error {
	a.Registry.CloseAll()
	return a.closeStorage()
}
