package model

import "time"

type DashboardMetrics struct {
	TotalBids      int   `json:"totalBids"`
	HighestBid     int64 `json:"highestBid"`
	TotalRoyalties int64 `json:"totalRoyalties"`
	TotalAmount    int64 `json:"totalAmount"`
}

type RecentTransaction struct {
	GameID    int64     `json:"gameId"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	TxID      string    `json:"txId"`
	Late      bool      `json:"late"`
}

type LiveGame struct {
	GameID        int64     `json:"gameId"`
	HighestBid    int64     `json:"highestBid"`
	TotalBids     int       `json:"totalBids"`
	LastBidTime   time.Time `json:"lastBidTime"`
	PrizePool     int64     `json:"prizePool"`
	UserBidAmount int64     `json:"userBidAmount"`
	UserBidCount  int       `json:"userBidCount"`
}

type PastGame struct {
	GameID       int64     `json:"gameId"`
	TotalAmount  int64     `json:"totalAmount"`
	TotalRoyalty int64     `json:"totalRoyalty"`
	EndTime      time.Time `json:"endTime"`
}

// Dashboard is one user's participation across all games.
type Dashboard struct {
	Metrics            DashboardMetrics    `json:"metrics"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
	LiveGames          []LiveGame          `json:"liveGames"`
	PastGames          []PastGame          `json:"pastGames"`
}
