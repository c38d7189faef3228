// Package ledger answers whether a game has ended on-chain. The flags are
// written by an external chain watcher; this server only reads them.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client interface {
	GameEnded(ctx context.Context, gameID int64) (bool, error)
}

// Nop reports every game as live.
type Nop struct{}

func (Nop) GameEnded(context.Context, int64) (bool, error) {
	return false, nil
}

// RedisFlags reads ended flags stored as plain redis keys.
type RedisFlags struct {
	client *redis.Client
}

func NewRedisFlags(client *redis.Client) *RedisFlags {
	return &RedisFlags{client: client}
}

func EndedKey(gameID int64) string {
	return fmt.Sprintf("bidwar:game:%d:ended", gameID)
}

func (f *RedisFlags) GameEnded(ctx context.Context, gameID int64) (bool, error) {
	value, err := f.client.Get(ctx, EndedKey(gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1" || value == "true", nil
}

// MarkEnded sets the flag. The chain watcher normally does this; tests and
// operator tooling use it too.
func (f *RedisFlags) MarkEnded(ctx context.Context, gameID int64) error {
	return f.client.Set(ctx, EndedKey(gameID), "1", 0).Err()
}
