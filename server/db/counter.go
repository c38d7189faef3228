package db

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	counterRowID    = 1
	firstGameID     = 1
	RedisCounterKey = "bidwar:curr_game_id"
)

// CounterDB keeps the next game id in the game_counter table.
type CounterDB struct {
	db *gorm.DB
}

func NewCounterDB(db *gorm.DB) *CounterDB {
	return &CounterDB{db: db}
}

func (c *CounterDB) Current(ctx context.Context) (int64, error) {
	row, err := c.ensure(c.db.WithContext(ctx))
	return row.CurrGameID, err
}

// Next advances the counter and returns the new value.
func (c *CounterDB) Next(ctx context.Context) (int64, error) {
	var next int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := c.ensure(tx); err != nil {
			return err
		}
		if err := tx.Model(&GameCounter{}).
			Where("id = ?", counterRowID).
			UpdateColumn("curr_game_id", gorm.Expr("curr_game_id + 1")).Error; err != nil {
			return err
		}

		var row GameCounter
		if err := tx.First(&row, "id = ?", counterRowID).Error; err != nil {
			return err
		}
		next = row.CurrGameID
		return nil
	})
	return next, err
}

func (c *CounterDB) ensure(tx *gorm.DB) (GameCounter, error) {
	var row GameCounter
	err := tx.Where(GameCounter{ID: counterRowID}).
		Attrs(GameCounter{CurrGameID: firstGameID}).
		FirstOrCreate(&row).Error
	return row, err
}

// RedisCounter keeps the next game id in a redis key.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Current(ctx context.Context) (int64, error) {
	if err := c.client.SetNX(ctx, RedisCounterKey, firstGameID, 0).Err(); err != nil {
		return 0, err
	}
	value, err := c.client.Get(ctx, RedisCounterKey).Int64()
	if errors.Is(err, redis.Nil) {
		return firstGameID, nil
	}
	return value, err
}

func (c *RedisCounter) Next(ctx context.Context) (int64, error) {
	if err := c.client.SetNX(ctx, RedisCounterKey, firstGameID, 0).Err(); err != nil {
		return 0, err
	}
	return c.client.Incr(ctx, RedisCounterKey).Result()
}
