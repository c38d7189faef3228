package db

import (
	"time"
)

type Game struct {
	ID                 int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	GamePDA            string    `json:"pda"`
	InitialBidAmount   int64     `json:"initialBidAmount" gorm:"not null"`
	HighestBid         int64     `json:"highestBid" gorm:"not null"`
	TotalBids          int       `json:"totalBids" gorm:"not null"`
	LastBidTime        time.Time `json:"lastBidTime"`
	LastBidderID       string    `json:"lastBidderId"`
	PrizePool          int64     `json:"prizePool" gorm:"not null"`
	PlatformFeePercent int       `json:"platformFeePercent" gorm:"not null"`
	Ended              bool      `json:"gameEnded" gorm:"index;not null;default:false"`
	Version            uint64    `json:"version"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	Players            []Player  `json:"players" gorm:"foreignKey:GameID"`
	Bids               []Bid     `json:"bids" gorm:"foreignKey:GameID"`
}

type Player struct {
	ID             int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	GameID         int64  `json:"gameId" gorm:"uniqueIndex:idx_player_game_user;not null"`
	UserID         string `json:"userId" gorm:"uniqueIndex:idx_player_game_user;index;not null"`
	PlayerPubkey   string `json:"playerPubkey" gorm:"index"`
	PlayerPDA      string `json:"pda"`
	TotalBidAmount int64  `json:"totalBidAmount" gorm:"not null"`
	BidCount       int    `json:"bidCount" gorm:"not null"`
	RoyaltyEarned  int64  `json:"royaltyEarned" gorm:"not null;default:0"`
}

// Bid rows are never updated. TxID is globally unique.
type Bid struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	GameID    int64     `json:"gameId" gorm:"index;not null"`
	UserID    string    `json:"userId" gorm:"index;not null"`
	Seq       int       `json:"seq" gorm:"not null"`
	Amount    int64     `json:"amount" gorm:"not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
	TxID      string    `json:"txId" gorm:"uniqueIndex;not null"`
	BidPDA    string    `json:"pda"`
	Late      bool      `json:"late" gorm:"not null;default:false"`
}

// GameCounter is a single row holding the next game id.
type GameCounter struct {
	ID         int   `gorm:"primaryKey;autoIncrement:false"`
	CurrGameID int64 `gorm:"not null"`
}
