package server

import (
	"net/http"
	"strconv"

	"game-bid-war/server/config"
	"game-bid-war/server/constant"
	"game-bid-war/server/model"
	"game-bid-war/server/response"
	"game-bid-war/server/service"
)

// CreateGameReq is sent once the on-chain game creation has settled.
type CreateGameReq struct {
	Token            string `json:"token,omitempty"`
	GameID           int64  `json:"gameId" valid:"required"`
	InitialBidAmount int64  `json:"initialBidAmount" valid:"required"`
	CreatorPublicKey string `json:"creatorPublicKey" valid:"pubkey,required"`
	GamePDA          string `json:"gamePda" valid:"pubkey,optional"`
	PlayerPDA        string `json:"playerPda" valid:"pubkey,optional"`
	BidPDA           string `json:"bidPda" valid:"pubkey,optional"`
	TxID             string `json:"txId" valid:"txid,required"`
}

func (req CreateGameReq) attrs(userID string) model.CreateGameAttrs {
	return model.CreateGameAttrs{
		GameID:       req.GameID,
		UserID:       userID,
		PlayerPubkey: req.CreatorPublicKey,
		GamePDA:      req.GamePDA,
		PlayerPDA:    req.PlayerPDA,
		BidPDA:       req.BidPDA,
		Amount:       req.InitialBidAmount,
		TxID:         req.TxID,
	}
}

// PlaceBidReq is sent once the bid transaction has settled. GameEnded is
// the client's view of the on-chain game state.
type PlaceBidReq struct {
	Token            string                `json:"token,omitempty"`
	GameID           int64                 `json:"gameId" valid:"required"`
	Amount           int64                 `json:"amount" valid:"required"`
	CreatorPublicKey string                `json:"creatorPublicKey" valid:"pubkey,required"`
	PlayerPDA        string                `json:"playerPda" valid:"pubkey,optional"`
	BidPDA           string                `json:"bidPda" valid:"pubkey,optional"`
	TxID             string                `json:"txId" valid:"txid,required"`
	Royalties        []model.RoyaltyCredit `json:"royalties" valid:"-"`
	GameEnded        bool                  `json:"gameEnded"`
}

func (req PlaceBidReq) attrs(userID string) model.BidAttrs {
	return model.BidAttrs{
		UserID:       userID,
		PlayerPubkey: req.CreatorPublicKey,
		PlayerPDA:    req.PlayerPDA,
		BidPDA:       req.BidPDA,
		Amount:       req.Amount,
		TxID:         req.TxID,
		Royalties:    req.Royalties,
		GameEnded:    req.GameEnded,
	}
}

type SyncGameReq struct {
	Token  string `json:"token,omitempty"`
	GameID int64  `json:"gameId" valid:"required"`
}

// EndGameReq asks the server to end a game the ledger reports as ended.
type EndGameReq struct {
	GameID int64 `json:"gameId" valid:"required"`
}

type GameIDResp struct {
	CurrGameID int64 `json:"currGameId"`
}

func handlerCreateGame(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	var req CreateGameReq
	if err := ParseBody(r.Body, &req); err != nil {
		response.Error(err, w)
		return
	}

	delta, err := c.Registry.CreateGame(r.Context(), req.attrs(r.Header.Get(constant.HeaderCustomSubject)))
	if err != nil {
		response.Error(err, w)
		return
	}
	response.SuccessWithData(service.NewBidResult(delta), w)
}

func handlerGetGame(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || gameID <= 0 {
		response.ParamError(w)
		return
	}

	game, err := c.Registry.Snapshot(r.Context(), gameID)
	if err != nil {
		response.Error(err, w)
		return
	}
	response.SuccessWithData(game, w)
}

func handlerEndGame(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	var req EndGameReq
	if err := ParseBody(r.Body, &req); err != nil {
		response.Error(err, w)
		return
	}

	delta, err := c.Registry.ConfirmEnded(r.Context(), req.GameID)
	if err != nil {
		response.Error(err, w)
		return
	}
	response.SuccessWithData(delta, w)
}

func handlerListGames(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	response.SuccessWithData(c.Registry.ListActive(), w)
}

func handlerPlaceBid(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	placeBid(c, w, r, false)
}

// handlerLateBid records a bid the client saw land after the game ended.
func handlerLateBid(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	placeBid(c, w, r, true)
}

func placeBid(c *config.ServerConfig, w http.ResponseWriter, r *http.Request, ended bool) {
	var req PlaceBidReq
	if err := ParseBody(r.Body, &req); err != nil {
		response.Error(err, w)
		return
	}

	attrs := req.attrs(r.Header.Get(constant.HeaderCustomSubject))
	attrs.GameEnded = attrs.GameEnded || ended

	delta, err := c.Registry.ApplyBid(r.Context(), req.GameID, attrs)
	if err != nil {
		response.Error(err, w)
		return
	}

	result := service.NewBidResult(delta)
	response.SuccessWithDataMsg(result, result.Message, w)
}

func handlerGameID(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	current, err := c.Registry.CurrentGameID(r.Context())
	if err != nil {
		c.Logger.Sugar().Errorw("read game counter", "error", err)
		response.SystemError(w)
		return
	}
	response.SuccessWithData(GameIDResp{CurrGameID: current}, w)
}
