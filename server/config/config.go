package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path"
	"slices"
	"strings"

	"game-bid-war/server/constant"
	"game-bid-war/server/db"
	"game-bid-war/server/ledger"
	"game-bid-war/server/service"
	"game-bid-war/server/utils"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	CounterDatabase = "database"
	CounterRedis    = "redis"
	EnvPrefix       = "BIDWAR"
)

type ServerConfig struct {
	Config    Configuration
	WebSocket websocket.Upgrader
	Registry  *service.Registry
	Hub       *service.Hub
	Verifier  *utils.TokenVerifier
	Dashboard *service.DashboardService
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

func NewConfiguration() Configuration {

	// Get the current working directory
	dir, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	var configDir string
	flag.StringVar(&configDir, "config", dir, "config yml dir")
	flag.Parse()

	config, err := LoadConfiguration(configDir)
	if err != nil {
		panic(err)
	}
	return config
}

// LoadConfiguration reads configuration.yml from configDir when present.
// BIDWAR_ prefixed environment variables override file values.
func LoadConfiguration(configDir string) (Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path.Join(configDir, "configuration.yml")
	if _, err := os.Stat(file); err == nil {
		v.SetConfigType("yaml")
		v.SetConfigFile(file)
		if errs := v.ReadInConfig(); errs != nil {
			return Configuration{}, fmt.Errorf("read %s: %w", file, errs)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return Configuration{}, err
	}
	if config.Redis == nil {
		config.Redis = &RedisConfiguration{}
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.write_wait", "10s")
	v.SetDefault("server.send_queue_size", 64)
	v.SetDefault("server.persist_timeout", "5s")
	v.SetDefault("server.read_limit", 64*1024)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "bid-war")
	v.SetDefault("database.driver", db.DriverSqlite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database_index", 0)
	v.SetDefault("game.platform_fee_percent", constant.DefaultPlatformFeePercent)
	v.SetDefault("game.safety_threshold", constant.DefaultSafetyThreshold)
	v.SetDefault("game.counter", CounterDatabase)
	v.SetDefault("game.ledger_poll_interval", "5s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// NewLogger builds a JSON production logger, or a console logger when
// server.debug is set.
func NewLogger(c Configuration) (*zap.Logger, error) {
	if c.Server.Debug {
		return zap.NewDevelopment()
	}

	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}

func NewGameDB(c Configuration, logger *zap.Logger) (*gorm.DB, error) {
	gameDB, err := db.NewGameDB(c.Database.Driver, c.Database.Dsn, c.Server.Debug)
	if err != nil {
		return nil, err
	}
	logger.Info("database ready", zap.String("driver", c.Database.Driver))
	return gameDB, nil
}

// NewRedisClient returns nil when redis is disabled.
func NewRedisClient(lifecycle fx.Lifecycle, c Configuration) *redis.Client {
	if c.Redis == nil || !c.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port),
		Password: c.Redis.Password,
		DB:       c.Redis.DatabaseIndex,
	})
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewWebSocket(c Configuration) websocket.Upgrader {
	origins := c.Server.AllowedOrigins
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

func NewTokenVerifier(c Configuration) (*utils.TokenVerifier, error) {
	return utils.NewTokenVerifier(c.Auth.JwtSecret, c.Auth.Issuer)
}

func NewGameStore(gameDB *gorm.DB) *db.GameStore {
	return db.NewGameStore(gameDB)
}

func NewCounter(c Configuration, gameDB *gorm.DB, redisClient *redis.Client) (service.Counter, error) {
	switch c.Game.Counter {
	case CounterRedis:
		if redisClient == nil {
			return nil, errors.New("game.counter is redis but redis is disabled")
		}
		return db.NewRedisCounter(redisClient), nil
	case CounterDatabase, "":
		return db.NewCounterDB(gameDB), nil
	}
	return nil, fmt.Errorf("unknown game counter backend %q", c.Game.Counter)
}

func NewLedgerClient(redisClient *redis.Client) ledger.Client {
	if redisClient == nil {
		return ledger.Nop{}
	}
	return ledger.NewRedisFlags(redisClient)
}

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func NewMetrics(registry *prometheus.Registry) *service.Metrics {
	return service.NewMetrics(registry)
}

func NewHub(c Configuration, metrics *service.Metrics, logger *zap.Logger) *service.Hub {
	return service.NewHub(c.Server.SendQueueSize, c.Server.WriteWait, metrics, logger.Named("fanout"))
}

// NewRegistry builds the game registry. On start it loads live games and
// begins polling the ledger for games that ended on-chain.
func NewRegistry(lifecycle fx.Lifecycle, c Configuration, store *db.GameStore, counter service.Counter, ledgerClient ledger.Client, hub *service.Hub, metrics *service.Metrics, logger *zap.Logger) *service.Registry {
	registry := service.NewRegistry(service.RegistryOptions{
		Store:              store,
		Counter:            counter,
		Ledger:             ledgerClient,
		Publisher:          hub,
		Settlement:         service.NewSettlement(c.Game.SafetyThreshold),
		PlatformFeePercent: c.Game.PlatformFeePercent,
		PersistTimeout:     c.Server.PersistTimeout,
		Metrics:            metrics,
		Logger:             logger.Named("registry"),
	})

	watch, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := registry.Warm(ctx); err != nil {
				return err
			}
			go func() {
				defer close(done)
				registry.WatchLedger(watch, c.Game.LedgerPollInterval)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stop()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return registry
}

func NewDashboardService(store *db.GameStore) *service.DashboardService {
	return service.NewDashboardService(store)
}

func NewServerConfig(config Configuration, webSocket websocket.Upgrader, registry *service.Registry, hub *service.Hub, verifier *utils.TokenVerifier, dashboard *service.DashboardService, metricsRegistry *prometheus.Registry, logger *zap.Logger) *ServerConfig {
	return &ServerConfig{
		Config:    config,
		WebSocket: webSocket,
		Registry:  registry,
		Hub:       hub,
		Verifier:  verifier,
		Dashboard: dashboard,
		Gatherer:  metricsRegistry,
		Logger:    logger,
	}
}
