package constant

const (
	HeaderCustomSubject = "X-Custom-Subject"
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

// Inbound message types
const (
	MsgCreateGame = "create-game"
	MsgPlaceBid   = "place-bid"
	MsgSyncGame   = "sync-game"
)

// Outbound message types
const (
	EventNewGame      = "new-game"
	EventGameUpdate   = "game-update"
	EventBidResult    = "bid-result"
	EventGameSnapshot = "game-snapshot"
	EventError        = "error"
	EventUnauthorized = "unauthorized"
)

// Bid outcomes reported to the submitter and carried on broadcasts
const (
	OutcomeCreated  = "created"
	OutcomeAccepted = "accepted"
	OutcomeLate     = "late"
	OutcomeEnded    = "ended"
)

const (
	DefaultPlatformFeePercent = 10
	DefaultSafetyThreshold    = 5
	LateBidMessage            = "recorded, but the game had already ended"
)

// Response codes
const (
	Code10000 = 10000 // OK
	Code10001 = 10001 // invalid payload
	Code10012 = 10012 // unauthorized
	Code10014 = 10014 // unknown message type
	Code20001 = 20001 // game not found
	Code20002 = 20002 // stale bid
	Code20003 = 20003 // game already exists
	Code20004 = 20004 // game already ended
	Code20005 = 20005 // duplicate transaction
	Code99997 = 99997 // ledger unavailable
	Code99998 = 99998 // persistence failure
	Code99999 = 99999 // system error
)

// Response messages
const (
	OK           = "OK"
	ParamError   = "invalid payload"
	Unauthorized = "unauthorized"
	Error        = "system error"
)
