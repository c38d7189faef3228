package service

import (
	"encoding/json"
	"strings"

	"game-bid-war/server/constant"
	"game-bid-war/server/model"
	"github.com/google/uuid"
)

type Message struct {
	Type  string `json:"type"`  // message type
	MsgId string `json:"msgId"` // unique per frame
}

// Event is the envelope of every outbound frame.
type Event struct {
	Message
	GameID int64 `json:"-"`
	Data   any   `json:"data"`
}

func NewEvent(msgType string, data any) Event {
	return Event{
		Message: Message{Type: msgType, MsgId: strings.ReplaceAll(uuid.New().String(), "-", "")},
		Data:    data,
	}
}

// NewGameEvent wraps a registry delta for broadcast.
func NewGameEvent(delta model.GameDelta) Event {
	msgType := constant.EventGameUpdate
	if delta.Outcome == constant.OutcomeCreated {
		msgType = constant.EventNewGame
	}
	event := NewEvent(msgType, delta)
	event.GameID = delta.Game.ID
	return event
}

func (e Event) ToJson() ([]byte, error) {
	return json.Marshal(e)
}

type ErrorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func NewErrorEvent(err error) Event {
	return NewEvent(constant.EventError, ErrorMessage{
		Code:    constant.CodeOf(err),
		Message: err.Error(),
		Retry:   constant.IsRetryable(err),
	})
}

func NewUnauthorizedEvent(reason string) Event {
	return NewEvent(constant.EventUnauthorized, ErrorMessage{
		Code:    constant.Code10012,
		Message: reason,
	})
}

// BidResult is the acknowledgment sent to the submitter only.
type BidResult struct {
	Outcome string          `json:"outcome"`
	GameID  int64           `json:"gameId"`
	Message string          `json:"message"`
	Delta   model.GameDelta `json:"delta"`
}

func NewBidResult(delta model.GameDelta) BidResult {
	message := constant.OK
	if delta.Outcome == constant.OutcomeLate {
		message = constant.LateBidMessage
	}
	return BidResult{
		Outcome: delta.Outcome,
		GameID:  delta.Game.ID,
		Message: message,
		Delta:   delta,
	}
}
