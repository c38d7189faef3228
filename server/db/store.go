package db

import (
	"context"
	"errors"
	"strings"

	"game-bid-war/server/constant"
	"game-bid-war/server/model"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recentTransactionLimit = 20

type GameStore struct {
	db *gorm.DB
}

func NewGameStore(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

// CreateGame writes the game, its opening player and its opening bid in one
// transaction.
func (s *GameStore) CreateGame(ctx context.Context, game *model.Game) error {
	row, err := toRow(game)
	if err != nil {
		return err
	}

	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errs := tx.Model(&Game{}).Where("id = ?", game.ID).Count(&count).Error; errs != nil {
			return errs
		}
		if count > 0 {
			return constant.NewError(constant.GameExistsError, "game %d", game.ID)
		}

		if errs := tx.Omit(clause.Associations).Create(row).Error; errs != nil {
			return errs
		}
		if len(row.Players) > 0 {
			if errs := tx.Create(&row.Players).Error; errs != nil {
				return errs
			}
		}
		if len(row.Bids) > 0 {
			if errs := tx.Create(&row.Bids).Error; errs != nil {
				return errs
			}
		}
		return nil
	}))
}

// RecordBid persists an accepted bid: player upsert, royalty increments,
// the bid row and the game aggregate fields.
func (s *GameStore) RecordBid(ctx context.Context, delta model.GameDelta) error {
	if delta.Player == nil || delta.Bid == nil {
		return constant.NewError(constant.ValidationError, "bid delta without player or bid")
	}

	gameID := delta.Game.ID
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertPlayer(tx, gameID, delta, delta.Bid.Amount); err != nil {
			return err
		}

		for _, credit := range delta.Royalties {
			if err := creditRoyalty(tx, gameID, credit); err != nil {
				return err
			}
		}

		if err := insertBid(tx, delta.Bid); err != nil {
			return err
		}

		summary := delta.Game
		return updateGame(tx, gameID, map[string]any{
			"highest_bid":    summary.HighestBid,
			"total_bids":     summary.TotalBids,
			"last_bid_time":  summary.LastBidTime,
			"last_bidder_id": summary.LastBidderID,
			"prize_pool":     summary.PrizePool,
			"version":        summary.Version,
		})
	}))
}

// RecordLateBid records participation and carries the delta's ended flag.
// Highest bid, totals and prize pool stay as they are.
func (s *GameStore) RecordLateBid(ctx context.Context, delta model.GameDelta) error {
	if delta.Player == nil || delta.Bid == nil {
		return constant.NewError(constant.ValidationError, "bid delta without player or bid")
	}

	gameID := delta.Game.ID
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateGame(tx, gameID, map[string]any{
			"ended":   delta.Game.Ended,
			"version": delta.Game.Version,
		}); err != nil {
			return err
		}
		if err := upsertPlayer(tx, gameID, delta, 0); err != nil {
			return err
		}
		return insertBid(tx, delta.Bid)
	}))
}

func (s *GameStore) EndGame(ctx context.Context, gameID int64) error {
	return translate(updateGame(s.db.WithContext(ctx), gameID, map[string]any{
		"ended":   true,
		"version": gorm.Expr("version + 1"),
	}))
}

func (s *GameStore) LoadGame(ctx context.Context, gameID int64) (*model.Game, error) {
	var row Game
	err := preloadHistory(s.db.WithContext(ctx)).First(&row, "id = ?", gameID).Error
	if err != nil {
		return nil, translate(err)
	}
	return toModel(&row)
}

// ListGames returns live or ended games with their history, by id.
func (s *GameStore) ListGames(ctx context.Context, live bool) ([]*model.Game, error) {
	var rows []Game
	err := preloadHistory(s.db.WithContext(ctx)).
		Where("ended = ?", !live).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	games := make([]*model.Game, 0, len(rows))
	for index := range rows {
		game, errs := toModel(&rows[index])
		if errs != nil {
			return nil, errs
		}
		games = append(games, game)
	}
	return games, nil
}

func (s *GameStore) ListLiveGames(ctx context.Context) ([]*model.Game, error) {
	return s.ListGames(ctx, true)
}

// UserDashboard aggregates a user's participation across every game.
func (s *GameStore) UserDashboard(ctx context.Context, userID string) (*model.Dashboard, error) {
	tx := s.db.WithContext(ctx)
	dashboard := &model.Dashboard{
		RecentTransactions: make([]model.RecentTransaction, 0),
		LiveGames:          make([]model.LiveGame, 0),
		PastGames:          make([]model.PastGame, 0),
	}

	var players []Player
	if err := tx.Where("user_id = ?", userID).Order("game_id desc").Find(&players).Error; err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return dashboard, nil
	}

	gameIDs := make([]int64, 0, len(players))
	for _, player := range players {
		gameIDs = append(gameIDs, player.GameID)
		dashboard.Metrics.TotalBids += player.BidCount
		dashboard.Metrics.TotalAmount += player.TotalBidAmount
		dashboard.Metrics.TotalRoyalties += player.RoyaltyEarned
	}

	if err := tx.Model(&Bid{}).
		Select("COALESCE(MAX(amount), 0)").
		Where("user_id = ? AND late = ?", userID, false).
		Scan(&dashboard.Metrics.HighestBid).Error; err != nil {
		return nil, err
	}

	var bids []Bid
	if err := tx.Where("user_id = ?", userID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "timestamp"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Limit(recentTransactionLimit).
		Find(&bids).Error; err != nil {
		return nil, err
	}
	if err := copier.Copy(&dashboard.RecentTransactions, &bids); err != nil {
		return nil, err
	}

	var games []Game
	if err := tx.Where("id IN ?", gameIDs).Find(&games).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]Game, len(games))
	for _, game := range games {
		byID[game.ID] = game
	}

	for _, player := range players {
		game, ok := byID[player.GameID]
		if !ok {
			continue
		}
		if game.Ended {
			dashboard.PastGames = append(dashboard.PastGames, model.PastGame{
				GameID:       game.ID,
				TotalAmount:  player.TotalBidAmount,
				TotalRoyalty: player.RoyaltyEarned,
				EndTime:      game.UpdatedAt,
			})
			continue
		}
		dashboard.LiveGames = append(dashboard.LiveGames, model.LiveGame{
			GameID:        game.ID,
			HighestBid:    game.HighestBid,
			TotalBids:     game.TotalBids,
			LastBidTime:   game.LastBidTime,
			PrizePool:     game.PrizePool,
			UserBidAmount: player.TotalBidAmount,
			UserBidCount:  player.BidCount,
		})
	}
	return dashboard, nil
}

func preloadHistory(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Bids", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "timestamp"}},
				{Column: clause.Column{Name: "seq"}},
			}})
		})
}

func upsertPlayer(tx *gorm.DB, gameID int64, delta model.GameDelta, amount int64) error {
	if delta.NewPlayer {
		var row Player
		if err := copier.Copy(&row, delta.Player); err != nil {
			return err
		}
		row.GameID = gameID
		return tx.Create(&row).Error
	}

	result := tx.Model(&Player{}).
		Where("game_id = ? AND user_id = ?", gameID, delta.Player.UserID).
		UpdateColumns(map[string]any{
			"total_bid_amount": gorm.Expr("total_bid_amount + ?", amount),
			"bid_count":        gorm.Expr("bid_count + ?", 1),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return constant.NewError(constant.ValidationError, "player %s not found in game %d", delta.Player.UserID, gameID)
	}
	return nil
}

// creditRoyalty pays the earliest player of the game holding the wallet,
// the same row the registry credits in memory.
func creditRoyalty(tx *gorm.DB, gameID int64, credit model.RoyaltyCredit) error {
	var recipient Player
	if err := tx.Select("id").
		Where("game_id = ? AND player_pubkey = ?", gameID, credit.PlayerPubkey).
		Order("id").
		First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return constant.NewError(constant.ValidationError, "royalty recipient %s not found in game %d", credit.PlayerPubkey, gameID)
		}
		return err
	}

	return tx.Model(&Player{}).
		Where("id = ?", recipient.ID).
		UpdateColumn("royalty_earned", gorm.Expr("royalty_earned + ?", credit.Amount)).Error
}

func insertBid(tx *gorm.DB, bid *model.Bid) error {
	var row Bid
	if err := copier.Copy(&row, bid); err != nil {
		return err
	}
	return tx.Create(&row).Error
}

func updateGame(tx *gorm.DB, gameID int64, values map[string]any) error {
	result := tx.Model(&Game{}).Where("id = ?", gameID).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return constant.NewError(constant.GameNotFoundError, "game %d", gameID)
	}
	return nil
}

func toRow(game *model.Game) (*Game, error) {
	row := &Game{}
	if err := copier.Copy(row, game); err != nil {
		return nil, err
	}
	row.Players = make([]Player, 0, len(game.Players))
	if err := copier.Copy(&row.Players, &game.Players); err != nil {
		return nil, err
	}
	row.Bids = make([]Bid, 0, len(game.Bids))
	if err := copier.Copy(&row.Bids, &game.Bids); err != nil {
		return nil, err
	}
	return row, nil
}

func toModel(row *Game) (*model.Game, error) {
	game := &model.Game{}
	if err := copier.Copy(game, row); err != nil {
		return nil, err
	}
	game.Players = make([]model.Player, 0, len(row.Players))
	if err := copier.Copy(&game.Players, &row.Players); err != nil {
		return nil, err
	}
	game.Bids = make([]model.Bid, 0, len(row.Bids))
	if err := copier.Copy(&game.Bids, &row.Bids); err != nil {
		return nil, err
	}
	game.SortBids()
	return game, nil
}

// translate maps driver errors onto the error taxonomy. Taxonomy errors
// pass through unchanged.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return constant.GameNotFoundError
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return constant.NewError(constant.DuplicateTransactionError, "%v", err)
	}
	return err
}
