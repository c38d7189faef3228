package config

import (
	"context"
	"os"
	"path"
	"sync"
	"testing"
	"time"

	"game-bid-war/server/constant"
	"game-bid-war/server/db"
	"game-bid-war/server/ledger"
	"game-bid-war/server/model"
	"game-bid-war/server/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestLoadConfiguration_Defaults(t *testing.T) {
	config, err := LoadConfiguration(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 10*time.Second, config.Server.WriteWait)
	assert.Equal(t, 5*time.Second, config.Server.PersistTimeout)
	assert.Equal(t, []string{"*"}, config.Server.AllowedOrigins)
	assert.Equal(t, constant.DefaultSafetyThreshold, config.Game.SafetyThreshold)
	assert.Equal(t, constant.DefaultPlatformFeePercent, config.Game.PlatformFeePercent)
	assert.Equal(t, CounterDatabase, config.Game.Counter)
	assert.Equal(t, 5*time.Second, config.Game.LedgerPollInterval)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	require.NotNil(t, config.Redis)
	assert.False(t, config.Redis.Enabled)
}

func TestLoadConfiguration_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: 9000
  persist_timeout: 2s
auth:
  jwt_secret: from-file
game:
  safety_threshold: 7
  counter: redis
redis:
  enabled: true
  host: cache
`
	require.NoError(t, os.WriteFile(path.Join(dir, "configuration.yml"), []byte(yml), 0600))
	t.Setenv("BIDWAR_SERVER_PORT", "9090")
	t.Setenv("BIDWAR_AUTH_JWT_SECRET", "from-env")

	config, err := LoadConfiguration(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 2*time.Second, config.Server.PersistTimeout)
	assert.Equal(t, "from-env", config.Auth.JwtSecret)
	assert.Equal(t, 7, config.Game.SafetyThreshold)
	assert.Equal(t, CounterRedis, config.Game.Counter)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "cache", config.Redis.Host)
	assert.Equal(t, 6379, config.Redis.Port)
}

func TestNewCounter_RedisRequiresClient(t *testing.T) {
	_, err := NewCounter(Configuration{Game: Game{Counter: CounterRedis}}, nil, nil)
	assert.Error(t, err)

	_, err = NewCounter(Configuration{Game: Game{Counter: "etcd"}}, nil, nil)
	assert.Error(t, err)
}

func TestNewLedgerClient_WithoutRedis(t *testing.T) {
	assert.IsType(t, ledger.Nop{}, NewLedgerClient(nil))
}

type endedFlags struct {
	mu    sync.Mutex
	ended map[int64]bool
}

func (f *endedFlags) GameEnded(_ context.Context, gameID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended[gameID], nil
}

func (f *endedFlags) markEnded(gameID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended[gameID] = true
}

func TestNewRegistry_WatchesLedger(t *testing.T) {
	gameDB, err := db.NewGameDB(db.DriverSqlite, "file:watch_ledger?mode=memory&cache=shared", false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, errs := gameDB.DB(); errs == nil {
			sqlDB.Close()
		}
	})

	var c Configuration
	c.Game.LedgerPollInterval = 5 * time.Millisecond
	flags := &endedFlags{ended: make(map[int64]bool)}
	logger := zap.NewNop()
	hub := service.NewHub(16, time.Second, nil, logger)

	lc := fxtest.NewLifecycle(t)
	registry := NewRegistry(lc, c, db.NewGameStore(gameDB), db.NewCounterDB(gameDB), flags, hub, nil, logger)

	_, err = registry.CreateGame(context.Background(), model.CreateGameAttrs{
		GameID:       1,
		UserID:       "alice",
		PlayerPubkey: "alice-wallet",
		Amount:       20,
		TxID:         "open-1",
	})
	require.NoError(t, err)

	lc.RequireStart()
	require.Len(t, registry.ListActive(), 1)

	flags.markEnded(1)
	require.Eventually(t, func() bool {
		return len(registry.ListActive()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	game, err := registry.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, game.Ended)

	lc.RequireStop()
}
