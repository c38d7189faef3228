package model

import "time"

// CreateGameAttrs describes the opening bid of a game whose on-chain
// creation has already been confirmed.
type CreateGameAttrs struct {
	GameID             int64
	UserID             string
	PlayerPubkey       string
	GamePDA            string
	PlayerPDA          string
	BidPDA             string
	Amount             int64
	TxID               string
	PlatformFeePercent int
	Timestamp          time.Time
}

// RoyaltyCredit is a payout decided on-chain for a prior participant,
// identified by wallet.
type RoyaltyCredit struct {
	PlayerPubkey string `json:"playerPubkey"`
	Amount       int64  `json:"amount"`
}

// BidAttrs describes a bid whose on-chain transaction has settled.
// GameEnded is the caller's view of the ledger's game-end flag.
type BidAttrs struct {
	UserID       string
	PlayerPubkey string
	PlayerPDA    string
	BidPDA       string
	Amount       int64
	TxID         string
	Royalties    []RoyaltyCredit
	GameEnded    bool
	Timestamp    time.Time
}

// GameDelta lists exactly what one mutation changed. It is written to the
// store and broadcast to viewers.
type GameDelta struct {
	Outcome   string          `json:"outcome"`
	Game      GameSummary     `json:"game"`
	Player    *Player         `json:"player,omitempty"`
	Bid       *Bid            `json:"bid,omitempty"`
	Royalties []RoyaltyCredit `json:"royalties,omitempty"`
	Safe      bool            `json:"safe"`
	NewPlayer bool            `json:"newPlayer"`
}
