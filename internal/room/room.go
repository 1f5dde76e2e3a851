package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/perspective"
	"github.com/DoyleJ11/lane-duel-backend/internal/store"
)

type Msg interface{ isRoomMsg() }

// Attach registers an outbox that receives this player's snapshots.
type Attach struct {
	PlayerID string
	Outbox   chan Snapshot
	Reply    chan error
}

// Join re-seats a player who left, keeping their id.
type Join struct {
	Player engine.Player
	Reply  chan error
}

type StartTurn struct {
	PlayerID string
	Reply    chan error
}

type PlaceCard struct {
	PlayerID string
	Card     engine.Card
	Lane     int
	Slot     perspective.Slot
	Reply    chan PlaceResult
}

type EndTurn struct {
	PlayerID string
	Reply    chan EndTurnResult
}

type SyncState struct {
	PlayerID string
	State    engine.PerPlayerState
	Reply    chan SyncResult
}

type Status struct {
	PlayerID string
	Reply    chan StatusResult
}

type Leave struct {
	PlayerID string
	Reply    chan error
}

type Shutdown struct{}

type GetState struct {
	Reply chan View
}

type timerFired struct {
	seat engine.Seat
	gen  uint64
}

func (Attach) isRoomMsg()     {}
func (Join) isRoomMsg()       {}
func (StartTurn) isRoomMsg()  {}
func (PlaceCard) isRoomMsg()  {}
func (EndTurn) isRoomMsg()    {}
func (SyncState) isRoomMsg()  {}
func (Status) isRoomMsg()     {}
func (Leave) isRoomMsg()      {}
func (Shutdown) isRoomMsg()   {}
func (GetState) isRoomMsg()   {}
func (timerFired) isRoomMsg() {}

// Snapshot is the room as one seat sees it.
type Snapshot struct {
	Version         int                    `json:"version"`
	RoomID          string                 `json:"room_id"`
	Seat            engine.Seat            `json:"seat"`
	Players         []engine.Player        `json:"players"`
	Shared          engine.SharedGameState `json:"shared"`
	Battlefield     perspective.View       `json:"battlefield"`
	PlayerState     engine.PerPlayerState  `json:"player_state"`
	CurrentPlayerID string                 `json:"current_player_id"`
	IsMyTurn        bool                   `json:"is_my_turn"`
	TurnRemainingMs int64                  `json:"turn_remaining_ms"`
	Battle          *engine.BattleReport   `json:"battle,omitempty"`
}

type PlaceResult struct {
	Card        engine.Card
	Lane        int
	Battlefield perspective.View
	Err         error
}

type EndTurnResult struct {
	Advanced    bool
	Shared      engine.SharedGameState
	Battlefield perspective.View
	TurnCount   int
	Battle      *engine.BattleReport
	Err         error
}

type SyncResult struct {
	Shared      engine.SharedGameState
	PlayerState engine.PerPlayerState
	Err         error
}

type StatusResult struct {
	Snapshot Snapshot
	Err      error
}

// View is the raw actor state, for tests and diagnostics.
type View struct {
	Version    int
	NumClients int
	State      engine.State
	Timers     [engine.NumSeats]bool
}

type Config struct {
	Logger  *zap.Logger
	Journal store.Journal
	Now     func() time.Time

	// OnLeave and OnEmpty run on the room goroutine and must not block on it.
	OnLeave func(roomID, playerID string)
	OnEmpty func(roomID string)
}

type Room struct {
	id         string
	inbox      chan Msg
	state      engine.State
	version    int
	clients    map[string]chan Snapshot
	timers     *turnTimer
	lastBattle *engine.BattleReport

	log     *zap.Logger
	journal store.Journal
	now     func() time.Time
	onLeave func(roomID, playerID string)
	onEmpty func(roomID string)

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, initial engine.State, cfg Config) *Room {
	ctx, cancel := context.WithCancel(parent)

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Journal == nil {
		cfg.Journal = store.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Room{
		id:      initial.RoomID,
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[string]chan Snapshot),
		log:     cfg.Logger.With(zap.String("room_id", initial.RoomID)),
		journal: cfg.Journal,
		now:     cfg.Now,
		onLeave: cfg.OnLeave,
		onEmpty: cfg.OnEmpty,
		ctx:     ctx,
		cancel:  cancel,
	}
	r.timers = newTurnTimer(r.postTimer)

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Done is closed once the room stops accepting messages.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Close stops both seats' timers before the actor exits, so no force end can
// fire after Close returns.
func (r *Room) Close() {
	r.timers.stopAll()
	r.cancel()
}

func (r *Room) postTimer(seat engine.Seat, gen uint64) {
	select {
	case r.inbox <- timerFired{seat: seat, gen: gen}:
	case <-r.ctx.Done():
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			if done := r.handle(m); done {
				r.shutdown()
				return
			}
		}
	}
}

// handle runs one actor step and reports whether the room is finished.
func (r *Room) handle(m Msg) bool {
	switch msg := m.(type) {
	case Attach:
		seat := r.state.SeatOf(msg.PlayerID)
		if seat == engine.SeatNone {
			msg.Reply <- engine.ErrNotInRoom
			break
		}
		if old, ok := r.clients[msg.PlayerID]; ok && old != msg.Outbox {
			close(old)
		}
		r.clients[msg.PlayerID] = msg.Outbox
		select {
		case msg.Outbox <- r.snapshot(seat):
		default:
		}
		msg.Reply <- nil

	case Join:
		_, err := r.apply(engine.Command{Type: engine.CmdJoin, PlayerID: msg.Player.ID, Player: &msg.Player})
		msg.Reply <- err

	case StartTurn:
		_, err := r.apply(engine.Command{Type: engine.CmdStartTurn, PlayerID: msg.PlayerID})
		msg.Reply <- err

	case PlaceCard:
		msg.Reply <- r.placeCard(msg)

	case EndTurn:
		msg.Reply <- r.endTurn(msg.PlayerID)

	case SyncState:
		msg.Reply <- r.syncState(msg)

	case Status:
		seat := r.state.SeatOf(msg.PlayerID)
		if seat == engine.SeatNone {
			msg.Reply <- StatusResult{Err: engine.ErrNotInRoom}
			break
		}
		msg.Reply <- StatusResult{Snapshot: r.snapshot(seat)}

	case Leave:
		events, err := r.apply(engine.Command{Type: engine.CmdLeave, PlayerID: msg.PlayerID})
		msg.Reply <- err
		if engine.ContainsEvent(events, engine.EvtRoomEmptied) {
			return true
		}

	case timerFired:
		r.onTimer(msg)

	case GetState:
		v := View{
			Version:    r.version,
			NumClients: len(r.clients),
			State:      r.state.Clone(),
		}
		for i := range v.Timers {
			v.Timers[i] = r.timers.active(engine.Seat(i))
		}
		msg.Reply <- v

	case Shutdown:
		return true
	}
	return false
}

func (r *Room) placeCard(msg PlaceCard) PlaceResult {
	viewer := r.state.SeatOf(msg.PlayerID)
	if viewer == engine.SeatNone {
		return PlaceResult{Err: engine.ErrNotInRoom}
	}
	slot := msg.Slot
	if slot == "" {
		slot = perspective.Near
	}
	target := perspective.SeatFor(viewer, slot)
	card := msg.Card

	events, err := r.apply(engine.Command{
		Type:     engine.CmdPlaceCard,
		PlayerID: msg.PlayerID,
		Card:     &card,
		Lane:     msg.Lane,
		Target:   &target,
	})
	if err != nil {
		return PlaceResult{Err: err}
	}
	ev, _ := engine.FindEvent(events, engine.EvtCardPlaced)
	res := PlaceResult{Lane: ev.Lane, Battlefield: perspective.Project(r.state.Battlefield, viewer)}
	if ev.Card != nil {
		res.Card = *ev.Card
	}
	return res
}

func (r *Room) endTurn(playerID string) EndTurnResult {
	events, err := r.apply(engine.Command{Type: engine.CmdEndTurn, PlayerID: playerID})
	if err != nil {
		return EndTurnResult{Err: err}
	}
	viewer := r.state.SeatOf(playerID)
	res := EndTurnResult{
		Advanced:    engine.ContainsEvent(events, engine.EvtTurnAdvanced),
		Shared:      r.state.Shared,
		Battlefield: perspective.Project(r.state.Battlefield, viewer),
		TurnCount:   r.state.Shared.TurnCount,
	}
	if ev, ok := engine.FindEvent(events, engine.EvtBattleResolved); ok {
		res.Battle = ev.Battle
	}
	return res
}

func (r *Room) syncState(msg SyncState) SyncResult {
	ps := msg.State
	if _, err := r.apply(engine.Command{Type: engine.CmdSyncPlayerState, PlayerID: msg.PlayerID, PlayerState: &ps}); err != nil {
		return SyncResult{Err: err}
	}
	seat := r.state.SeatOf(msg.PlayerID)
	return SyncResult{Shared: r.state.Shared, PlayerState: r.state.PlayerState[seat]}
}

func (r *Room) onTimer(msg timerFired) {
	if !r.timers.consume(msg.seat, msg.gen) {
		r.log.Debug("dropping stale timer", zap.Int("seat", int(msg.seat)), zap.Uint64("gen", msg.gen))
		return
	}
	if r.state.CurrentSeat() != msg.seat {
		return
	}
	player := r.state.Seats[msg.seat]
	r.log.Info("turn timed out", zap.String("player_id", player.ID), zap.Int("turn", r.state.Shared.TurnCount))
	if _, err := r.apply(engine.Command{Type: engine.CmdForceEndTurn, PlayerID: player.ID}); err != nil {
		r.log.Warn("force end turn failed", zap.Error(err))
	}
}

// apply runs cmd through the engine and, on success, commits the new state,
// reacts to its events and broadcasts.
func (r *Room) apply(cmd engine.Command) ([]engine.Event, error) {
	cmd.Now = r.now()
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		r.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("player_id", cmd.PlayerID),
			zap.Error(err),
		)
		return nil, err
	}
	r.state = next
	if len(events) == 0 {
		return nil, nil
	}
	if len(events) == 1 && events[0].Type == engine.EvtTurnAlreadyEnded {
		// Nothing changed; clients already have this version.
		return events, nil
	}
	r.version++
	r.react(cmd, events)
	r.broadcast()
	return events, nil
}

func (r *Room) react(cmd engine.Command, events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtTimerCancelled:
			r.timers.cancel(ev.Seat)

		case engine.EvtTurnStarted:
			r.timers.start(ev.Seat, r.turnLimit())

		case engine.EvtBattleResolved:
			r.lastBattle = ev.Battle
			r.log.Debug("battle resolved", zap.Int("turn", ev.TurnCount), zap.Int("lanes", len(ev.Battle.Lanes)))

		case engine.EvtBaseDepleted:
			r.log.Info("base depleted", zap.Int("seat", int(ev.Seat)), zap.Int("turn", ev.TurnCount))

		case engine.EvtTurnAdvanced:
			r.record(cmd, events, ev)

		case engine.EvtPlayerLeft:
			r.detach(ev.PlayerID)
			if r.onLeave != nil {
				r.onLeave(r.id, ev.PlayerID)
			}

		case engine.EvtHostChanged:
			r.log.Info("host changed", zap.String("player_id", ev.PlayerID))

		case engine.EvtRoomEmptied:
			r.timers.stopAll()
			r.log.Info("room emptied")
			if r.onEmpty != nil {
				r.onEmpty(r.id)
			}
		}
	}
}

func (r *Room) record(cmd engine.Command, events []engine.Event, adv engine.Event) {
	var report *engine.BattleReport
	if ev, ok := engine.FindEvent(events, engine.EvtBattleResolved); ok {
		report = ev.Battle
	}
	by := r.state.LastAdvance.Seat
	var playerID string
	if by.Valid() && r.state.Seats[by] != nil {
		playerID = r.state.Seats[by].ID
	} else {
		playerID = cmd.PlayerID
	}
	forced := cmd.Type != engine.CmdEndTurn

	rec, err := store.NewTurnRecord(r.id, adv.TurnCount-1, by, playerID, forced, report, cmd.Now)
	if err != nil {
		r.log.Warn("build turn record", zap.Error(err))
		return
	}
	if err := r.journal.RecordTurn(r.ctx, rec); err != nil && !errors.Is(err, store.ErrJournalFull) {
		r.log.Warn("record turn", zap.Error(err))
	}
}

func (r *Room) turnLimit() time.Duration {
	if r.state.Rules.TurnTimeLimit > 0 {
		return r.state.Rules.TurnTimeLimit
	}
	return engine.DefaultTurnTimeLimit
}

func (r *Room) snapshot(seat engine.Seat) Snapshot {
	players := make([]engine.Player, 0, engine.NumSeats)
	for _, p := range r.state.Seats {
		if p != nil {
			players = append(players, *p)
		}
	}
	return Snapshot{
		Version:         r.version,
		RoomID:          r.id,
		Seat:            seat,
		Players:         players,
		Shared:          r.state.Shared,
		Battlefield:     perspective.Project(r.state.Battlefield, seat),
		PlayerState:     r.state.PlayerState[seat],
		CurrentPlayerID: r.state.Shared.CurrentPlayerID,
		IsMyTurn:        r.state.CurrentSeat() == seat,
		TurnRemainingMs: remainingMs(r.state.Shared, r.now()),
		Battle:          r.lastBattle,
	}
}

func (r *Room) broadcast() {
	for id, ch := range r.clients {
		seat := r.state.SeatOf(id)
		if seat == engine.SeatNone {
			continue
		}
		select {
		case ch <- r.snapshot(seat):
		default:
			// Slow client, drop it.
			r.log.Debug("dropping slow client", zap.String("player_id", id))
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) detach(playerID string) {
	if ch, ok := r.clients[playerID]; ok {
		close(ch)
		delete(r.clients, playerID)
	}
}

func (r *Room) shutdown() {
	r.timers.stopAll()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}
