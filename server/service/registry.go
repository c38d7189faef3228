package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"game-bid-war/server/constant"
	"game-bid-war/server/ledger"
	"game-bid-war/server/model"
	"go.uber.org/zap"
)

const defaultPersistTimeout = 5 * time.Second

// gameEntry is one game's slot in the registry. The section serializes
// writers; readers only load state.
type gameEntry struct {
	section sync.Mutex
	state   atomic.Pointer[model.Game]
	refs    int // guarded by Registry.mu
}

type RegistryOptions struct {
	Store              GameStore
	Counter            Counter
	Ledger             ledger.Client
	Publisher          Publisher
	Settlement         Settlement
	PlatformFeePercent int
	PersistTimeout     time.Duration
	Metrics            *Metrics
	Logger             *zap.Logger
	Clock              func() time.Time
}

// Registry holds the live state of every game. Mutations of one game are
// serialized and written through to the store before they become visible;
// mutations of different games proceed in parallel.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*gameEntry

	store          GameStore
	counter        Counter
	ledger         ledger.Client
	hasLedger      bool
	publisher      Publisher
	settlement     Settlement
	feePercent     int
	persistTimeout time.Duration
	metrics        *Metrics
	logger         *zap.Logger
	now            func() time.Time
}

func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		entries:        make(map[int64]*gameEntry),
		store:          opts.Store,
		counter:        opts.Counter,
		ledger:         opts.Ledger,
		publisher:      opts.Publisher,
		settlement:     opts.Settlement,
		feePercent:     opts.PlatformFeePercent,
		persistTimeout: opts.PersistTimeout,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		now:            opts.Clock,
	}
	if r.ledger == nil {
		r.ledger = ledger.Nop{}
	}
	_, nop := r.ledger.(ledger.Nop)
	r.hasLedger = !nop
	if r.settlement.SafetyThreshold <= 0 {
		r.settlement = NewSettlement(0)
	}
	if r.feePercent <= 0 {
		r.feePercent = constant.DefaultPlatformFeePercent
	}
	if r.persistTimeout <= 0 {
		r.persistTimeout = defaultPersistTimeout
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// CreateGame registers a game from its confirmed opening bid.
func (r *Registry) CreateGame(ctx context.Context, attrs model.CreateGameAttrs) (model.GameDelta, error) {
	if attrs.PlatformFeePercent == 0 {
		attrs.PlatformFeePercent = r.feePercent
	}
	if attrs.Timestamp.IsZero() {
		attrs.Timestamp = r.now()
	}
	if err := ValidateOpening(attrs); err != nil {
		return model.GameDelta{}, err
	}

	delta, err := r.createGame(ctx, attrs)
	if err != nil {
		return delta, err
	}

	if r.counter != nil {
		if _, errs := r.counter.Next(ctx); errs != nil {
			r.logger.Error("advance game counter", zap.Int64("gameId", attrs.GameID), zap.Error(errs))
		}
	}
	return delta, nil
}

func (r *Registry) createGame(ctx context.Context, attrs model.CreateGameAttrs) (model.GameDelta, error) {
	entry := r.retain(attrs.GameID)
	defer r.release(attrs.GameID, entry)

	if err := r.ensureLoaded(ctx, attrs.GameID, entry); err != nil && !errors.Is(err, constant.GameNotFoundError) {
		return model.GameDelta{}, err
	}

	entry.section.Lock()
	defer entry.section.Unlock()

	if entry.state.Load() != nil {
		return model.GameDelta{}, constant.NewError(constant.GameExistsError, "game %d", attrs.GameID)
	}

	game, delta := r.settlement.Open(attrs)
	if err := r.persist(ctx, attrs.GameID, func(ctx context.Context) error {
		return r.store.CreateGame(ctx, game)
	}); err != nil {
		r.logger.Warn("create game rolled back", zap.Int64("gameId", attrs.GameID), zap.Error(err))
		return model.GameDelta{}, err
	}

	entry.state.Store(game)
	r.publish(delta)
	r.metrics.BidOutcome(delta.Outcome)
	r.logger.Info("game created",
		zap.Int64("gameId", game.ID),
		zap.String("userId", attrs.UserID),
		zap.Int64("amount", attrs.Amount))
	return delta, nil
}

// ApplyBid validates and applies a settled bid. A bid for an ended game is
// recorded as late participation instead of being rejected.
func (r *Registry) ApplyBid(ctx context.Context, gameID int64, attrs model.BidAttrs) (model.GameDelta, error) {
	if err := ValidateBid(attrs); err != nil {
		return model.GameDelta{}, err
	}
	if attrs.Timestamp.IsZero() {
		attrs.Timestamp = r.now()
	}
	var confirmed bool
	attrs.GameEnded, confirmed = r.endedOnChain(ctx, gameID, attrs.GameEnded)

	entry := r.retain(gameID)
	defer r.release(gameID, entry)

	if err := r.ensureLoaded(ctx, gameID, entry); err != nil {
		return model.GameDelta{}, err
	}

	entry.section.Lock()
	defer entry.section.Unlock()

	current := entry.state.Load()
	if current == nil {
		return model.GameDelta{}, constant.NewError(constant.GameNotFoundError, "game %d", gameID)
	}

	decision, err := r.settlement.Decide(current, attrs)
	if err != nil {
		r.logger.Info("bid rejected",
			zap.Int64("gameId", gameID),
			zap.String("userId", attrs.UserID),
			zap.Int64("amount", attrs.Amount),
			zap.Error(err))
		return model.GameDelta{}, err
	}

	var (
		next  *model.Game
		delta model.GameDelta
		write func(context.Context) error
	)
	switch decision {
	case DecisionLate:
		next, delta = r.settlement.SettleLate(current, attrs, confirmed)
		write = func(ctx context.Context) error { return r.store.RecordLateBid(ctx, delta) }
	default:
		next, delta = r.settlement.Settle(current, attrs)
		write = func(ctx context.Context) error { return r.store.RecordBid(ctx, delta) }
	}

	if err = r.persist(ctx, gameID, write); err != nil {
		r.logger.Warn("bid rolled back",
			zap.Int64("gameId", gameID),
			zap.String("txId", attrs.TxID),
			zap.Error(err))
		return model.GameDelta{}, err
	}

	entry.state.Store(next)
	r.publish(delta)
	r.metrics.BidOutcome(delta.Outcome)
	r.logger.Info("bid applied",
		zap.Int64("gameId", gameID),
		zap.String("outcome", delta.Outcome),
		zap.String("userId", attrs.UserID),
		zap.Int64("amount", attrs.Amount),
		zap.Uint64("version", next.Version))
	return delta, nil
}

// EndGame marks the game ended. Ending an ended game is a no-op.
func (r *Registry) EndGame(ctx context.Context, gameID int64) (model.GameDelta, error) {
	entry := r.retain(gameID)
	defer r.release(gameID, entry)

	if err := r.ensureLoaded(ctx, gameID, entry); err != nil {
		return model.GameDelta{}, err
	}

	entry.section.Lock()
	defer entry.section.Unlock()

	current := entry.state.Load()
	if current == nil {
		return model.GameDelta{}, constant.NewError(constant.GameNotFoundError, "game %d", gameID)
	}
	if current.Ended {
		return model.GameDelta{
			Outcome: constant.OutcomeEnded,
			Game:    current.Summary(),
			Safe:    r.settlement.IsSafe(current),
		}, nil
	}

	next, delta := r.settlement.End(current)
	if err := r.persist(ctx, gameID, func(ctx context.Context) error {
		return r.store.EndGame(ctx, gameID)
	}); err != nil {
		return model.GameDelta{}, err
	}

	entry.state.Store(next)
	r.publish(delta)
	r.logger.Info("game ended", zap.Int64("gameId", gameID), zap.Bool("safe", delta.Safe))
	return delta, nil
}

// ConfirmEnded ends the game after the ledger confirms it ended on-chain.
func (r *Registry) ConfirmEnded(ctx context.Context, gameID int64) (model.GameDelta, error) {
	if !r.hasLedger {
		return model.GameDelta{}, constant.NewError(constant.LedgerError, "no settlement ledger configured")
	}

	game, err := r.Snapshot(ctx, gameID)
	if err != nil {
		return model.GameDelta{}, err
	}
	if game.Ended {
		return model.GameDelta{}, constant.NewError(constant.AlreadyEndedError, "game %d", gameID)
	}

	ended, err := r.ledger.GameEnded(ctx, gameID)
	if err != nil {
		return model.GameDelta{}, constant.NewError(constant.LedgerError, "game %d: %v", gameID, err)
	}
	if !ended {
		return model.GameDelta{}, constant.NewError(constant.ValidationError, "game %d has not ended on-chain", gameID)
	}
	return r.EndGame(ctx, gameID)
}

// SweepEnded ends every live game the ledger reports as ended and returns
// how many were ended.
func (r *Registry) SweepEnded(ctx context.Context) int {
	if !r.hasLedger {
		return 0
	}

	var swept int
	for _, game := range r.ListActive() {
		ended, err := r.ledger.GameEnded(ctx, game.ID)
		if err != nil {
			r.logger.Warn("ledger check failed", zap.Int64("gameId", game.ID), zap.Error(err))
			continue
		}
		if !ended {
			continue
		}
		if _, err = r.EndGame(ctx, game.ID); err != nil {
			r.logger.Error("end game", zap.Int64("gameId", game.ID), zap.Error(err))
			continue
		}
		swept++
	}
	return swept
}

// WatchLedger runs SweepEnded every interval until ctx is done. It returns
// at once when no ledger is configured.
func (r *Registry) WatchLedger(ctx context.Context, interval time.Duration) {
	if !r.hasLedger || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept := r.SweepEnded(ctx); swept > 0 {
				r.logger.Info("ended games swept", zap.Int("games", swept))
			}
		}
	}
}

// Snapshot returns a private copy of the game, from memory when it is held
// there and from the store otherwise.
func (r *Registry) Snapshot(ctx context.Context, gameID int64) (*model.Game, error) {
	r.mu.Lock()
	entry := r.entries[gameID]
	r.mu.Unlock()

	if entry != nil {
		if game := entry.state.Load(); game != nil {
			return game.Clone(), nil
		}
	}
	return r.load(ctx, gameID)
}

// ListActive returns the summaries of all live games held in memory,
// ordered by id.
func (r *Registry) ListActive() []model.GameSummary {
	r.mu.Lock()
	games := make([]*model.Game, 0, len(r.entries))
	for _, entry := range r.entries {
		if game := entry.state.Load(); game != nil && !game.Ended {
			games = append(games, game)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(games, func(a, b *model.Game) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	summaries := make([]model.GameSummary, 0, len(games))
	for _, game := range games {
		summaries = append(summaries, game.Summary())
	}
	return summaries
}

// CurrentGameID returns the next game id to be handed out.
func (r *Registry) CurrentGameID(ctx context.Context) (int64, error) {
	if r.counter == nil {
		return 0, constant.NewError(constant.PersistenceError, "no game counter configured")
	}
	return r.counter.Current(ctx)
}

// Warm loads every live game from the store. It is called once at startup
// before any connection is accepted.
func (r *Registry) Warm(ctx context.Context) error {
	games, err := r.store.ListLiveGames(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, game := range games {
		if _, ok := r.entries[game.ID]; ok {
			continue
		}
		entry := &gameEntry{}
		entry.state.Store(game)
		r.entries[game.ID] = entry
	}
	r.metrics.SetActiveGames(len(r.entries))
	r.logger.Info("registry warmed", zap.Int("games", len(games)))
	return nil
}

func (r *Registry) retain(gameID int64) *gameEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[gameID]
	if !ok {
		entry = &gameEntry{}
		r.entries[gameID] = entry
	}
	entry.refs++
	return entry
}

// release drops the caller's reference. Entries nobody holds are evicted
// when they carry no game or an ended one.
func (r *Registry) release(gameID int64, entry *gameEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.refs--
	if entry.refs > 0 {
		return
	}
	if game := entry.state.Load(); game == nil || game.Ended {
		if r.entries[gameID] == entry {
			delete(r.entries, gameID)
		}
	}
	r.metrics.SetActiveGames(len(r.entries))
}

// ensureLoaded fills an empty entry from the store. It runs outside the
// section; a concurrent load that wins the swap is kept.
func (r *Registry) ensureLoaded(ctx context.Context, gameID int64, entry *gameEntry) error {
	if entry.state.Load() != nil {
		return nil
	}

	game, err := r.load(ctx, gameID)
	if err != nil {
		return err
	}
	entry.state.CompareAndSwap(nil, game)
	return nil
}

func (r *Registry) load(ctx context.Context, gameID int64) (*model.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	game, err := r.store.LoadGame(ctx, gameID)
	switch {
	case errors.Is(err, constant.GameNotFoundError):
		return nil, constant.NewError(constant.GameNotFoundError, "game %d", gameID)
	case err != nil:
		return nil, constant.NewError(constant.PersistenceError, "load game %d: %v", gameID, err)
	}
	return game, nil
}

// persist bounds write by the persist timeout, detached from ctx
// cancellation.
// endedOnChain decides whether a bid takes the late path. With a ledger the
// ledger alone decides and a yes is confirmed. Without one the caller's
// claim routes the bid but never ends the game.
func (r *Registry) endedOnChain(ctx context.Context, gameID int64, claimed bool) (late, confirmed bool) {
	if !r.hasLedger {
		return claimed, false
	}

	ended, err := r.ledger.GameEnded(ctx, gameID)
	if err != nil {
		r.logger.Warn("ledger check failed, assuming game is live", zap.Int64("gameId", gameID), zap.Error(err))
		return false, false
	}
	if claimed && !ended {
		r.logger.Info("ignoring ended claim for live game", zap.Int64("gameId", gameID))
	}
	return ended, ended
}

func (r *Registry) persist(ctx context.Context, gameID int64, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
	defer cancel()

	err := write(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, constant.DuplicateTransactionError), errors.Is(err, constant.GameExistsError):
		return err
	}
	r.metrics.PersistenceFailure()
	return constant.NewError(constant.PersistenceError, "game %d: %v", gameID, err)
}

func (r *Registry) publish(delta model.GameDelta) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(NewGameEvent(delta))
}
