package service

import (
	"context"

	"game-bid-war/server/model"
)

// GameStore is the persistence gateway: the relational record of truth
// for games, players and bids. Each method is one atomic group.
type GameStore interface {
	// CreateGame writes the game row, its opening player and opening bid.
	CreateGame(ctx context.Context, game *model.Game) error
	// RecordBid upserts the bidder, credits royalties, appends the bid and
	// updates the game aggregate fields.
	RecordBid(ctx context.Context, delta model.GameDelta) error
	// RecordLateBid ends the game and records participation only.
	RecordLateBid(ctx context.Context, delta model.GameDelta) error
	EndGame(ctx context.Context, gameID int64) error
	// LoadGame returns the game with nested players and bids, or
	// constant.GameNotFoundError.
	LoadGame(ctx context.Context, gameID int64) (*model.Game, error)
	ListLiveGames(ctx context.Context) ([]*model.Game, error)
}

// Counter hands out the global next-game-id. It is independent of any
// per-game state.
type Counter interface {
	Current(ctx context.Context) (int64, error)
	Next(ctx context.Context) (int64, error)
}

// Publisher receives every event the registry accepts, in acceptance order
// per game. Publish must not block.
type Publisher interface {
	Publish(event Event)
}
