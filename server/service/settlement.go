package service

import (
	"math"

	"game-bid-war/server/constant"
	"game-bid-war/server/model"
)

// Decision is the validator's verdict on a bid that passed the doubling
// rule or was routed around it.
type Decision int

const (
	DecisionAccept Decision = iota + 1 // counts toward highest bid and prize pool
	DecisionLate                       // game ended, participation only
)

// Settlement computes the next state of a game from a validated bid. It is
// pure: it never touches the registry, the store or the clock.
type Settlement struct {
	SafetyThreshold int
}

func NewSettlement(safetyThreshold int) Settlement {
	if safetyThreshold <= 0 {
		safetyThreshold = constant.DefaultSafetyThreshold
	}
	return Settlement{SafetyThreshold: safetyThreshold}
}

// MinimumNextBid is the smallest amount the doubling rule accepts.
func MinimumNextBid(game *model.Game) int64 {
	if game.HighestBid > math.MaxInt64/2 {
		return math.MaxInt64
	}
	return game.HighestBid * 2
}

// ValidateOpening checks the create-game attributes.
func ValidateOpening(attrs model.CreateGameAttrs) error {
	switch {
	case attrs.GameID <= 0:
		return constant.NewError(constant.ValidationError, "game id must be positive")
	case attrs.Amount <= 0:
		return constant.NewError(constant.ValidationError, "initial bid must be positive")
	case attrs.UserID == "":
		return constant.NewError(constant.ValidationError, "missing user")
	case attrs.TxID == "":
		return constant.NewError(constant.ValidationError, "missing transaction id")
	case attrs.PlatformFeePercent < 0 || attrs.PlatformFeePercent > 100:
		return constant.NewError(constant.ValidationError, "platform fee %d%% out of range", attrs.PlatformFeePercent)
	}
	return nil
}

// ValidateBid checks the bid attributes that do not depend on game state.
func ValidateBid(attrs model.BidAttrs) error {
	switch {
	case attrs.Amount <= 0:
		return constant.NewError(constant.ValidationError, "bid amount must be positive")
	case attrs.UserID == "":
		return constant.NewError(constant.ValidationError, "missing user")
	case attrs.TxID == "":
		return constant.NewError(constant.ValidationError, "missing transaction id")
	}

	var total int64
	for _, credit := range attrs.Royalties {
		if credit.PlayerPubkey == "" || credit.Amount < 0 {
			return constant.NewError(constant.ValidationError, "malformed royalty credit")
		}
		total += credit.Amount
	}
	if total > attrs.Amount {
		return constant.NewError(constant.ValidationError, "royalties %d exceed bid amount %d", total, attrs.Amount)
	}
	return nil
}

// Decide evaluates attrs against the current state of game. Callers must
// hold the game's exclusive section so that game is not stale.
func (s Settlement) Decide(game *model.Game, attrs model.BidAttrs) (Decision, error) {
	if game.HasTransaction(attrs.TxID) {
		return 0, constant.NewError(constant.DuplicateTransactionError, "%s", attrs.TxID)
	}
	if game.Ended || attrs.GameEnded {
		return DecisionLate, nil
	}

	if minimum := MinimumNextBid(game); attrs.Amount < minimum {
		return 0, constant.NewError(constant.StaleBidError, "minimum bid is %d, got %d", minimum, attrs.Amount)
	}

	for _, credit := range attrs.Royalties {
		if game.PlayerByPubkey(credit.PlayerPubkey) < 0 {
			return 0, constant.NewError(constant.ValidationError, "royalty recipient %s has no bids in game %d", credit.PlayerPubkey, game.ID)
		}
	}
	return DecisionAccept, nil
}

// Open builds the aggregate for a new game from its opening bid.
func (s Settlement) Open(attrs model.CreateGameAttrs) (*model.Game, model.GameDelta) {
	player := model.Player{
		GameID:         attrs.GameID,
		UserID:         attrs.UserID,
		PlayerPubkey:   attrs.PlayerPubkey,
		PlayerPDA:      attrs.PlayerPDA,
		TotalBidAmount: attrs.Amount,
		BidCount:       1,
	}
	bid := model.Bid{
		GameID:    attrs.GameID,
		UserID:    attrs.UserID,
		Seq:       1,
		Amount:    attrs.Amount,
		Timestamp: attrs.Timestamp,
		TxID:      attrs.TxID,
		BidPDA:    attrs.BidPDA,
	}

	game := &model.Game{
		ID:                 attrs.GameID,
		GamePDA:            attrs.GamePDA,
		InitialBidAmount:   attrs.Amount,
		HighestBid:         attrs.Amount,
		TotalBids:          1,
		LastBidTime:        attrs.Timestamp,
		LastBidderID:       attrs.UserID,
		PrizePool:          attrs.Amount,
		PlatformFeePercent: attrs.PlatformFeePercent,
		Version:            1,
		CreatedAt:          attrs.Timestamp,
		Players:            []model.Player{player},
		Bids:               []model.Bid{bid},
	}
	return game, s.delta(constant.OutcomeCreated, game, player, bid, nil, true)
}

// Settle applies an accepted bid to a copy of game.
func (s Settlement) Settle(game *model.Game, attrs model.BidAttrs) (*model.Game, model.GameDelta) {
	next := game.Clone()
	bid := appendBid(next, attrs, false)

	var royalties int64
	for _, credit := range attrs.Royalties {
		index := next.PlayerByPubkey(credit.PlayerPubkey)
		next.Players[index].RoyaltyEarned += credit.Amount
		royalties += credit.Amount
	}

	next.HighestBid = attrs.Amount
	next.TotalBids++
	next.LastBidTime = bid.Timestamp
	next.LastBidderID = attrs.UserID
	next.PrizePool += attrs.Amount - royalties
	next.Version++

	player, isNew := upsertPlayer(next, attrs, attrs.Amount)
	return next, s.delta(constant.OutcomeAccepted, next, player, bid, attrs.Royalties, isNew)
}

// SettleLate records participation for a bid that arrived after the game
// ended. Highest bid, totals and prize pool are left untouched. The game is
// marked ended only when end is set, i.e. the ledger confirmed it.
func (s Settlement) SettleLate(game *model.Game, attrs model.BidAttrs, end bool) (*model.Game, model.GameDelta) {
	next := game.Clone()
	next.Ended = game.Ended || end
	bid := appendBid(next, attrs, true)
	next.Version++

	player, isNew := upsertPlayer(next, attrs, 0)
	return next, s.delta(constant.OutcomeLate, next, player, bid, nil, isNew)
}

// End marks a copy of game as ended.
func (s Settlement) End(game *model.Game) (*model.Game, model.GameDelta) {
	next := game.Clone()
	next.Ended = true
	next.Version++

	delta := model.GameDelta{
		Outcome: constant.OutcomeEnded,
		Game:    next.Summary(),
		Safe:    s.IsSafe(next),
	}
	return next, delta
}

// IsSafe reports whether the game reached the safety threshold.
func (s Settlement) IsSafe(game *model.Game) bool {
	return game.TotalBids >= s.SafetyThreshold
}

func (s Settlement) delta(outcome string, game *model.Game, player model.Player, bid model.Bid, royalties []model.RoyaltyCredit, isNew bool) model.GameDelta {
	return model.GameDelta{
		Outcome:   outcome,
		Game:      game.Summary(),
		Player:    &player,
		Bid:       &bid,
		Royalties: royalties,
		Safe:      s.IsSafe(game),
		NewPlayer: isNew,
	}
}

func appendBid(game *model.Game, attrs model.BidAttrs, late bool) model.Bid {
	bid := model.Bid{
		GameID:    game.ID,
		UserID:    attrs.UserID,
		Seq:       len(game.Bids) + 1,
		Amount:    attrs.Amount,
		Timestamp: attrs.Timestamp,
		TxID:      attrs.TxID,
		BidPDA:    attrs.BidPDA,
		Late:      late,
	}
	game.Bids = append(game.Bids, bid)
	return bid
}

// upsertPlayer bumps the user's bid count and adds amount to their total.
func upsertPlayer(game *model.Game, attrs model.BidAttrs, amount int64) (model.Player, bool) {
	index := game.PlayerIndex(attrs.UserID)
	created := index < 0
	if created {
		game.Players = append(game.Players, model.Player{
			GameID:       game.ID,
			UserID:       attrs.UserID,
			PlayerPubkey: attrs.PlayerPubkey,
			PlayerPDA:    attrs.PlayerPDA,
		})
		index = len(game.Players) - 1
	}

	player := &game.Players[index]
	player.TotalBidAmount += amount
	player.BidCount++
	return *player, created
}
