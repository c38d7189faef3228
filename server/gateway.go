package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"game-bid-war/server/config"
	"game-bid-war/server/constant"
	"game-bid-war/server/service"
	"game-bid-war/server/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// InboundMessage is the envelope of every client frame. Data always
// carries the token next to the type specific fields.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type tokenData struct {
	Token string `json:"token"`
}

var errInternal = errors.New("internal error")

// Gateway maps websocket connections to viewers and hands their messages,
// once authenticated, to the registry.
type Gateway struct {
	registry  *service.Registry
	hub       *service.Hub
	verifier  *utils.TokenVerifier
	readLimit int64
	logger    *zap.Logger
}

func NewGateway(c *config.ServerConfig) *Gateway {
	return &Gateway{
		registry:  c.Registry,
		hub:       c.Hub,
		verifier:  c.Verifier,
		readLimit: c.Config.Server.ReadLimit,
		logger:    c.Logger.Named("gateway"),
	}
}

// Register starts delivering broadcasts to conn.
func (g *Gateway) Register(conn service.Conn) service.ViewerHandle {
	return g.hub.Register(conn).Handle
}

func (g *Gateway) Unregister(handle service.ViewerHandle) {
	g.hub.Unregister(handle)
}

// CloseAll disconnects every viewer; used on shutdown.
func (g *Gateway) CloseAll() {
	g.hub.CloseAll()
}

func (g *Gateway) handlerSocketConnection(c *config.ServerConfig, w http.ResponseWriter, r *http.Request) {
	conn, err := c.WebSocket.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Info("upgrade", zap.Error(err))
		return
	}
	g.Serve(r.Context(), conn)
}

// Serve reads conn until it fails or is rejected. Messages of one
// connection are handled strictly in order.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn) {
	if g.readLimit > 0 {
		conn.SetReadLimit(g.readLimit)
	}

	handle := g.Register(conn)
	defer g.Unregister(handle)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("read", zap.String("viewer", string(handle)), zap.Error(err))
			}
			return
		}
		if len(raw) == 0 {
			continue
		}
		if !g.OnMessage(ctx, handle, raw) {
			return
		}
	}
}

// OnMessage authenticates and handles one frame. It returns false when
// the connection was closed as unauthorized.
func (g *Gateway) OnMessage(ctx context.Context, handle service.ViewerHandle, raw []byte) (open bool) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("message handler panic",
				zap.String("viewer", string(handle)),
				zap.Any("panic", p),
				zap.Stack("stack"))
			g.reply(handle, service.NewErrorEvent(errInternal))
			open = true
		}
	}()

	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.reply(handle, service.NewErrorEvent(constant.NewError(constant.ValidationError, "failed to process message")))
		return true
	}

	var auth tokenData
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &auth)
	}
	claims, err := g.verifier.Verify(auth.Token)
	if err != nil {
		reason := constant.Unauthorized
		if errors.Is(err, constant.TokenNotFoundError) {
			reason = constant.TokenNotFoundError.Error()
		}
		g.logger.Info("closing unauthorized viewer", zap.String("viewer", string(handle)), zap.Error(err))
		g.hub.Reject(handle, service.NewUnauthorizedEvent(reason), websocket.ClosePolicyViolation, constant.Unauthorized)
		return false
	}

	event, err := g.dispatch(ctx, claims.Subject, msg)
	if err != nil {
		event = service.NewErrorEvent(err)
	}
	g.reply(handle, event)
	return true
}

func (g *Gateway) dispatch(ctx context.Context, userID string, msg InboundMessage) (service.Event, error) {
	switch msg.Type {
	case constant.MsgCreateGame:
		var req CreateGameReq
		if err := decode(msg.Data, &req); err != nil {
			return service.Event{}, err
		}
		delta, err := g.registry.CreateGame(ctx, req.attrs(userID))
		if err != nil {
			return service.Event{}, err
		}
		return service.NewEvent(constant.EventBidResult, service.NewBidResult(delta)), nil

	case constant.MsgPlaceBid:
		var req PlaceBidReq
		if err := decode(msg.Data, &req); err != nil {
			return service.Event{}, err
		}
		delta, err := g.registry.ApplyBid(ctx, req.GameID, req.attrs(userID))
		if err != nil {
			return service.Event{}, err
		}
		return service.NewEvent(constant.EventBidResult, service.NewBidResult(delta)), nil

	case constant.MsgSyncGame:
		var req SyncGameReq
		if err := decode(msg.Data, &req); err != nil {
			return service.Event{}, err
		}
		game, err := g.registry.Snapshot(ctx, req.GameID)
		if err != nil {
			return service.Event{}, err
		}
		event := service.NewEvent(constant.EventGameSnapshot, game)
		event.GameID = game.ID
		return event, nil
	}
	return service.Event{}, constant.NewError(constant.UnknownTypeError, "%q", msg.Type)
}

func (g *Gateway) reply(handle service.ViewerHandle, event service.Event) {
	if err := g.hub.Send(handle, event); err != nil {
		g.logger.Debug("reply dropped", zap.String("viewer", string(handle)), zap.Error(err))
	}
}

func decode(data json.RawMessage, value any) error {
	if err := json.Unmarshal(data, value); err != nil {
		return constant.NewError(constant.ValidationError, "unable to parse data: %v", err)
	}
	return Validate(value)
}
