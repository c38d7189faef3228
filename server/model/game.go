package model

import (
	"slices"
	"time"

	"github.com/jinzhu/copier"
)

// Game is the aggregate for one auction. Values held by the registry are
// never mutated in place; writers work on a Clone.
type Game struct {
	ID                 int64     `json:"gameId"`
	GamePDA            string    `json:"pda,omitempty"`
	InitialBidAmount   int64     `json:"initialBidAmount"`
	HighestBid         int64     `json:"highestBid"`
	TotalBids          int       `json:"totalBids"`
	LastBidTime        time.Time `json:"lastBidTime"`
	LastBidderID       string    `json:"lastBidderId"`
	PrizePool          int64     `json:"prizePool"`
	PlatformFeePercent int       `json:"platformFeePercent"`
	Ended              bool      `json:"gameEnded"`
	Version            uint64    `json:"version"`
	CreatedAt          time.Time `json:"createdAt"`
	Players            []Player  `json:"players"`
	Bids               []Bid     `json:"bids"`
}

// GameSummary is the scalar part of a Game sent on every broadcast.
type GameSummary struct {
	ID                 int64     `json:"gameId"`
	InitialBidAmount   int64     `json:"initialBidAmount"`
	HighestBid         int64     `json:"highestBid"`
	TotalBids          int       `json:"totalBids"`
	LastBidTime        time.Time `json:"lastBidTime"`
	LastBidderID       string    `json:"lastBidderId"`
	PrizePool          int64     `json:"prizePool"`
	PlatformFeePercent int       `json:"platformFeePercent"`
	Ended              bool      `json:"gameEnded"`
	Version            uint64    `json:"version"`
}

// Player is one user's participation in one game.
type Player struct {
	GameID         int64  `json:"gameId"`
	UserID         string `json:"userId"`
	PlayerPubkey   string `json:"playerPubkey"`
	PlayerPDA      string `json:"pda,omitempty"`
	TotalBidAmount int64  `json:"totalBidAmount"`
	BidCount       int    `json:"bidCount"`
	RoyaltyEarned  int64  `json:"royaltyEarned"`
}

// Bid is append-only. Seq is the arrival order at the registry and breaks
// timestamp ties.
type Bid struct {
	GameID    int64     `json:"gameId"`
	UserID    string    `json:"userId"`
	Seq       int       `json:"seq"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	TxID      string    `json:"txId"`
	BidPDA    string    `json:"pda,omitempty"`
	Late      bool      `json:"late"`
}

// Clone returns a copy that shares no slices with g.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = slices.Clone(g.Players)
	c.Bids = slices.Clone(g.Bids)
	return &c
}

// Summary drops the nested players and bids.
func (g *Game) Summary() GameSummary {
	var summary GameSummary
	copier.Copy(&summary, g)
	return summary
}

// PlayerIndex returns the index of the user's player row, or -1.
func (g *Game) PlayerIndex(userID string) int {
	return slices.IndexFunc(g.Players, func(p Player) bool { return p.UserID == userID })
}

// PlayerByPubkey returns the index of the earliest player holding the
// wallet, or -1.
func (g *Game) PlayerByPubkey(pubkey string) int {
	return slices.IndexFunc(g.Players, func(p Player) bool { return p.PlayerPubkey == pubkey })
}

// HasTransaction reports whether txID is already part of the bid history.
func (g *Game) HasTransaction(txID string) bool {
	return slices.ContainsFunc(g.Bids, func(b Bid) bool { return b.TxID == txID })
}

// SortBids orders the history by timestamp, then arrival order.
func (g *Game) SortBids() {
	slices.SortStableFunc(g.Bids, func(a, b Bid) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return a.Seq - b.Seq
	})
}
