package service

import (
	"math"
	"testing"
	"time"

	"game-bid-war/server/constant"
	"game-bid-war/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openGame(t *testing.T, s Settlement, amount int64) *model.Game {
	t.Helper()
	game, delta := s.Open(model.CreateGameAttrs{
		GameID:             7,
		UserID:             "alice",
		PlayerPubkey:       "alice-wallet",
		Amount:             amount,
		TxID:               "tx-open",
		PlatformFeePercent: 10,
		Timestamp:          epoch,
	})
	require.Equal(t, constant.OutcomeCreated, delta.Outcome)
	return game
}

func TestSettlement_Open(t *testing.T) {
	s := NewSettlement(0)
	game := openGame(t, s, 20)

	assert.Equal(t, int64(20), game.HighestBid)
	assert.Equal(t, int64(20), game.PrizePool)
	assert.Equal(t, int64(20), game.InitialBidAmount)
	assert.Equal(t, 1, game.TotalBids)
	assert.Equal(t, "alice", game.LastBidderID)
	require.Len(t, game.Players, 1)
	assert.Equal(t, 1, game.Players[0].BidCount)
	require.Len(t, game.Bids, 1)
	assert.Equal(t, 1, game.Bids[0].Seq)
	assert.Equal(t, constant.DefaultSafetyThreshold, s.SafetyThreshold)
}

func TestSettlement_DecideDoublingRule(t *testing.T) {
	s := NewSettlement(5)
	game := openGame(t, s, 20)

	_, err := s.Decide(game, model.BidAttrs{UserID: "bob", Amount: 39, TxID: "tx-1"})
	assert.ErrorIs(t, err, constant.StaleBidError)

	decision, err := s.Decide(game, model.BidAttrs{UserID: "bob", Amount: 40, TxID: "tx-1"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAccept, decision)
}

func TestSettlement_DecideLateAndDuplicate(t *testing.T) {
	s := NewSettlement(5)
	game := openGame(t, s, 20)

	_, err := s.Decide(game, model.BidAttrs{UserID: "bob", Amount: 100, TxID: "tx-open"})
	assert.ErrorIs(t, err, constant.DuplicateTransactionError)

	// below the doubling minimum, yet routed to the late path
	decision, err := s.Decide(game, model.BidAttrs{UserID: "bob", Amount: 1, TxID: "tx-2", GameEnded: true})
	require.NoError(t, err)
	assert.Equal(t, DecisionLate, decision)
}

func TestSettlement_DecideUnknownRoyaltyRecipient(t *testing.T) {
	s := NewSettlement(5)
	game := openGame(t, s, 20)

	_, err := s.Decide(game, model.BidAttrs{
		UserID: "bob", Amount: 40, TxID: "tx-1",
		Royalties: []model.RoyaltyCredit{{PlayerPubkey: "nobody", Amount: 4}},
	})
	assert.ErrorIs(t, err, constant.ValidationError)
}

func TestSettlement_Settle(t *testing.T) {
	s := NewSettlement(2)
	game := openGame(t, s, 20)

	next, delta := s.Settle(game, model.BidAttrs{
		UserID:       "bob",
		PlayerPubkey: "bob-wallet",
		Amount:       40,
		TxID:         "tx-1",
		Royalties:    []model.RoyaltyCredit{{PlayerPubkey: "alice-wallet", Amount: 4}},
		Timestamp:    epoch.Add(time.Minute),
	})

	assert.Equal(t, int64(40), next.HighestBid)
	assert.Equal(t, 2, next.TotalBids)
	assert.Equal(t, int64(56), next.PrizePool)
	assert.Equal(t, "bob", next.LastBidderID)
	assert.Equal(t, epoch.Add(time.Minute), next.LastBidTime)
	assert.Equal(t, game.Version+1, next.Version)
	require.Len(t, next.Players, 2)
	assert.Equal(t, int64(4), next.Players[0].RoyaltyEarned)
	assert.Equal(t, int64(40), next.Players[1].TotalBidAmount)

	assert.True(t, delta.NewPlayer)
	assert.True(t, delta.Safe)
	assert.Equal(t, constant.OutcomeAccepted, delta.Outcome)
	assert.Equal(t, 2, delta.Bid.Seq)

	// the input is left untouched
	assert.Equal(t, int64(20), game.HighestBid)
	assert.Len(t, game.Players, 1)
	assert.Len(t, game.Bids, 1)
	assert.Zero(t, game.Players[0].RoyaltyEarned)
}

func TestSettlement_SettleExistingPlayer(t *testing.T) {
	s := NewSettlement(5)
	game := openGame(t, s, 20)

	next, delta := s.Settle(game, model.BidAttrs{UserID: "alice", PlayerPubkey: "alice-wallet", Amount: 40, TxID: "tx-1"})

	assert.False(t, delta.NewPlayer)
	require.Len(t, next.Players, 1)
	assert.Equal(t, int64(60), next.Players[0].TotalBidAmount)
	assert.Equal(t, 2, next.Players[0].BidCount)
	assert.False(t, delta.Safe)
}

func TestSettlement_SettleLate(t *testing.T) {
	s := NewSettlement(5)
	game := openGame(t, s, 20)

	next, delta := s.SettleLate(game, model.BidAttrs{UserID: "bob", PlayerPubkey: "bob-wallet", Amount: 5, TxID: "tx-late"}, true)

	assert.True(t, next.Ended)
	assert.Equal(t, int64(20), next.HighestBid)
	assert.Equal(t, int64(20), next.PrizePool)
	assert.Equal(t, 1, next.TotalBids)
	require.Len(t, next.Players, 2)
	assert.Equal(t, 1, next.Players[1].BidCount)
	assert.Zero(t, next.Players[1].TotalBidAmount)
	require.Len(t, next.Bids, 2)
	assert.True(t, next.Bids[1].Late)
	assert.Equal(t, constant.OutcomeLate, delta.Outcome)
	assert.True(t, delta.Game.Ended)
}

func TestSettlement_SettleLateUnconfirmed(t *testing.T) {
	s := NewSettlement(5)
	game := openGame(t, s, 20)

	next, delta := s.SettleLate(game, model.BidAttrs{UserID: "bob", PlayerPubkey: "bob-wallet", Amount: 5, TxID: "tx-late"}, false)
	assert.False(t, next.Ended)
	assert.False(t, delta.Game.Ended)
	assert.Equal(t, constant.OutcomeLate, delta.Outcome)
	assert.Equal(t, int64(20), next.HighestBid)
	assert.Equal(t, game.Version+1, next.Version)

	ended, _ := s.End(game)
	again, _ := s.SettleLate(ended, model.BidAttrs{UserID: "carol", PlayerPubkey: "carol-wallet", Amount: 5, TxID: "tx-late-2"}, false)
	assert.True(t, again.Ended)
}

func TestValidateBid(t *testing.T) {
	tests := []struct {
		name  string
		attrs model.BidAttrs
		ok    bool
	}{
		{"valid", model.BidAttrs{UserID: "u", Amount: 10, TxID: "t"}, true},
		{"zero amount", model.BidAttrs{UserID: "u", TxID: "t"}, false},
		{"missing user", model.BidAttrs{Amount: 10, TxID: "t"}, false},
		{"missing tx", model.BidAttrs{UserID: "u", Amount: 10}, false},
		{"royalties exceed amount", model.BidAttrs{UserID: "u", Amount: 10, TxID: "t",
			Royalties: []model.RoyaltyCredit{{PlayerPubkey: "a", Amount: 6}, {PlayerPubkey: "b", Amount: 5}}}, false},
		{"negative royalty", model.BidAttrs{UserID: "u", Amount: 10, TxID: "t",
			Royalties: []model.RoyaltyCredit{{PlayerPubkey: "a", Amount: -1}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBid(tt.attrs)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, constant.ValidationError)
			}
		})
	}
}

func TestValidateOpening(t *testing.T) {
	valid := model.CreateGameAttrs{GameID: 1, UserID: "u", Amount: 10, TxID: "t", PlatformFeePercent: 10}
	assert.NoError(t, ValidateOpening(valid))

	bad := valid
	bad.PlatformFeePercent = 101
	assert.ErrorIs(t, ValidateOpening(bad), constant.ValidationError)

	bad = valid
	bad.GameID = 0
	assert.ErrorIs(t, ValidateOpening(bad), constant.ValidationError)
}

func TestMinimumNextBidOverflow(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), MinimumNextBid(&model.Game{HighestBid: math.MaxInt64/2 + 1}))
	assert.Equal(t, int64(40), MinimumNextBid(&model.Game{HighestBid: 20}))
}
