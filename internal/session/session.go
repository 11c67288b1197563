// Package session hosts the authoritative side of one duel. A single
// goroutine owns the match state and serializes all command application;
// network readers only ever post messages into the inbox, preserving
// per-connection arrival order.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/engine"
	"github.com/pathwars/duel-backend/internal/protocol"
)

type Msg interface{ isSessionMsg() }

// Join registers a player connection. The first joiner becomes the host;
// once the second arrives the match starts and both receive a Welcome.
type Join struct {
	PlayerID string
	Outbox   chan protocol.Message
	Reply    chan JoinResult
}

type JoinResult struct {
	Role string
	Err  error
}

// Leave is a player disconnect. Mid-match it forfeits the leaver.
type Leave struct{ PlayerID string }

// FromPlayer carries one decoded command off a player connection.
type FromPlayer struct {
	PlayerID string
	Seq      int
	Cmd      engine.Command
}

// Watch attaches a read-only spectator that receives state snapshots.
type Watch struct {
	ID     string
	Outbox chan Snapshot
}

type Unwatch struct{ ID string }

// GetState reflects internal state without data races (httpapi and tests).
type GetState struct{ Reply chan View }

// PrimeTimer arms the current phase timer immediately. Phase entry does this
// on its own; the message exists so tests can force it.
type PrimeTimer struct{}

type Shutdown struct{}

type timerFired struct{ gen int }
type combatTick struct {
	gen int
	idx int
}
type combatDone struct{ gen int }

func (Join) isSessionMsg()       {}
func (Leave) isSessionMsg()      {}
func (FromPlayer) isSessionMsg() {}
func (Watch) isSessionMsg()      {}
func (Unwatch) isSessionMsg()    {}
func (GetState) isSessionMsg()   {}
func (PrimeTimer) isSessionMsg() {}
func (Shutdown) isSessionMsg()   {}
func (timerFired) isSessionMsg() {}
func (combatTick) isSessionMsg() {}
func (combatDone) isSessionMsg() {}

type Snapshot struct {
	Version int
	State   engine.MatchState
}

type View struct {
	Version     int
	NumPlayers  int
	NumWatchers int
	Started     bool
	State       engine.MatchState
}

// Options tunes session behavior outside the synchronized match config.
type Options struct {
	// PhaseTimeout bounds planning/building phases; 0 disables timers.
	// Expiry auto-issues an implicit Ready for lagging players rather than
	// stalling the state machine.
	PhaseTimeout time.Duration
	// CombatTimeScale maps simulation seconds to wall seconds when pacing
	// checkpoint broadcasts. Zero means "as configured by the match".
	CombatTimeScale float64
}

type Session struct {
	inbox  chan Msg
	log    *zap.Logger
	opts   Options
	cfg    engine.MatchConfig
	seed   int64
	ctx    context.Context
	cancel context.CancelFunc

	state   engine.MatchState
	version int
	started bool

	players  map[string]chan protocol.Message
	joinSeq  []string
	watchers map[string]chan Snapshot

	timerGen int
	combat   *combatRun
}

type combatRun struct {
	gen       int
	res       engine.CombatResult
	timeScale float64
}

func New(parent context.Context, cfg engine.MatchConfig, seed int64, opts Options, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:    make(chan Msg, 64),
		log:      log,
		opts:     opts,
		cfg:      cfg,
		seed:     seed,
		ctx:      ctx,
		cancel:   cancel,
		players:  make(map[string]chan protocol.Message),
		watchers: make(map[string]chan Snapshot),
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)
			case Leave:
				s.handleLeave(msg.PlayerID)
			case FromPlayer:
				s.handleCommand(msg)
			case Watch:
				s.watchers[msg.ID] = msg.Outbox
				if s.started {
					select {
					case msg.Outbox <- Snapshot{Version: s.version, State: s.state.Clone()}:
					default:
						close(msg.Outbox)
						delete(s.watchers, msg.ID)
					}
				}
			case Unwatch:
				// Closing the channel releases the spectator's writer.
				if ch, ok := s.watchers[msg.ID]; ok {
					close(ch)
					delete(s.watchers, msg.ID)
				}
			case GetState:
				msg.Reply <- View{
					Version:     s.version,
					NumPlayers:  len(s.players),
					NumWatchers: len(s.watchers),
					Started:     s.started,
					State:       s.state.Clone(),
				}
			case PrimeTimer:
				s.armPhaseTimer()
			case timerFired:
				s.handleTimerFired(msg.gen)
			case combatTick:
				s.handleCombatTick(msg)
			case combatDone:
				s.handleCombatDone(msg.gen)
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	if _, dup := s.players[msg.PlayerID]; dup {
		msg.Reply <- JoinResult{Err: errors.New("player id already joined")}
		return
	}
	if len(s.players) >= 2 {
		msg.Reply <- JoinResult{Err: errors.New("match is full")}
		return
	}
	s.players[msg.PlayerID] = msg.Outbox
	s.joinSeq = append(s.joinSeq, msg.PlayerID)
	role := "host"
	if len(s.joinSeq) == 2 {
		role = "client"
	}
	msg.Reply <- JoinResult{Role: role}
	s.log.Info("player joined", zap.String("player", msg.PlayerID), zap.String("role", role))

	if len(s.joinSeq) == 2 && !s.started {
		s.startMatch()
	}
}

func (s *Session) startMatch() {
	s.state = engine.NewMatchState(s.cfg, s.seed, s.joinSeq[0], s.joinSeq[1])
	s.started = true
	s.version = 0
	for i, id := range s.joinSeq {
		role := "host"
		if i == 1 {
			role = "client"
		}
		s.sendTo(id, protocol.TypeWelcome, protocol.Welcome{
			PlayerID: id,
			Role:     role,
			Version:  s.version,
			State:    s.state.Clone(),
		})
	}
	s.log.Info("match started", zap.Int64("seed", s.seed))
	s.armPhaseTimer()
	s.notifyWatchers()
}

func (s *Session) handleLeave(playerID string) {
	ch, ok := s.players[playerID]
	if !ok {
		return
	}
	delete(s.players, playerID)
	close(ch)
	if !s.started || s.state.Phase.Terminal() {
		return
	}
	// Disconnect cancels the session: forfeit outcome, pacing timers dropped.
	s.combat = nil
	s.timerGen++
	_, ns := engine.Forfeit(s.state, playerID)
	s.state = ns
	s.version++
	s.log.Info("player disconnected, match forfeited",
		zap.String("leaver", playerID), zap.String("winner", ns.Outcome.WinnerID))
	s.broadcast(protocol.TypeMatchOver, protocol.MatchOver{
		Version:  s.version,
		WinnerID: ns.Outcome.WinnerID,
		Reason:   ns.Outcome.Reason,
	})
	s.notifyWatchers()
}

func (s *Session) handleCommand(msg FromPlayer) {
	if !s.started {
		s.sendTo(msg.PlayerID, protocol.TypeCommandRejected, protocol.CommandRejected{
			Seq:     msg.Seq,
			Kind:    engine.KindPhaseViolation,
			Message: "match has not started",
		})
		return
	}

	// The connection identity is authoritative; whatever the envelope
	// claimed is discarded.
	msg.Cmd.PlayerID = msg.PlayerID

	events, ns, err := engine.Apply(s.state, msg.Cmd)
	if err != nil {
		// Validation errors are recoverable and go to the issuer only;
		// they never reach the opposing peer.
		var verr *engine.ValidationError
		if !errors.As(err, &verr) {
			verr = &engine.ValidationError{Kind: engine.KindMalformedCommand, Msg: err.Error()}
		}
		s.sendTo(msg.PlayerID, protocol.TypeCommandRejected, protocol.CommandRejected{
			Seq:     msg.Seq,
			Kind:    verr.Kind,
			Message: verr.Msg,
		})
		return
	}

	s.state = ns
	s.version++
	// Planning-phase sync: broadcast the accepted command itself, never bulk
	// state. Both peers re-apply it through the same engine.
	s.broadcast(protocol.TypeCommandAccepted, protocol.CommandAccepted{
		Seq:     msg.Seq,
		Version: s.version,
		Command: msg.Cmd,
	})
	s.afterEvents(events)
	s.notifyWatchers()
}

// afterEvents reacts to engine events produced by an applied command:
// phase broadcasts, timers, combat pacing, terminal outcome.
func (s *Session) afterEvents(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPhaseChanged:
			if s.state.Phase != engine.PhaseCombat {
				// Combat left early (both players conceded the battle) still
				// invalidates the pacing timers.
				s.combat = nil
			}
			s.broadcast(protocol.TypePhaseChanged, protocol.PhaseChanged{
				Version: s.version,
				Phase:   s.state.Phase,
				Round:   s.state.Round,
			})
			switch s.state.Phase {
			case engine.PhaseCombat:
				s.startCombat()
			case engine.PhaseMatchOver:
				// handled by EvtMatchOver below
			default:
				s.armPhaseTimer()
			}
		case engine.EvtMatchOver:
			s.timerGen++ // disarm any pending timer
			s.broadcast(protocol.TypeMatchOver, protocol.MatchOver{
				Version:  s.version,
				WinnerID: s.state.Outcome.WinnerID,
				Reason:   s.state.Outcome.Reason,
			})
		}
	}
}

// armPhaseTimer starts the advisory phase timer. Generation counters drop
// stale fires after the phase has already advanced.
func (s *Session) armPhaseTimer() {
	s.timerGen++
	if s.opts.PhaseTimeout <= 0 || !s.started || s.state.Phase.Terminal() {
		return
	}
	gen := s.timerGen
	time.AfterFunc(s.opts.PhaseTimeout, func() {
		select {
		case s.inbox <- timerFired{gen: gen}:
		case <-s.ctx.Done():
		}
	})
}

// handleTimerFired auto-issues an implicit Ready on behalf of every player
// that has not readied up, so the state machine never stalls indefinitely.
// The implicit commands flow through the normal accept/broadcast path and
// keep the peers convergent.
func (s *Session) handleTimerFired(gen int) {
	if gen != s.timerGen || !s.started || s.state.Phase.Terminal() {
		return
	}
	s.log.Debug("phase timer expired", zap.String("phase", string(s.state.Phase)))
	s.forceReadyAll()
}

func (s *Session) forceReadyAll() {
	for _, id := range s.state.Order {
		if s.state.Players[id].Ready {
			continue
		}
		cmd := engine.Command{
			Type:     engine.CmdReady,
			PlayerID: id,
			Ready:    &engine.ReadyData{Ready: true},
		}
		events, ns, err := engine.Apply(s.state, cmd)
		if err != nil {
			continue
		}
		s.state = ns
		s.version++
		s.broadcast(protocol.TypeCommandAccepted, protocol.CommandAccepted{
			Version: s.version,
			Command: cmd,
		})
		s.afterEvents(events)
	}
	s.notifyWatchers()
}

// startCombat resolves the battle deterministically up front and paces the
// resulting checkpoints onto the wire at their simulation times. Peers run
// the same resolution locally; the checkpoints carry only critical state.
func (s *Session) startCombat() {
	s.timerGen++
	scale := s.opts.CombatTimeScale
	if scale <= 0 {
		scale = s.cfg.CombatTimeScale
	}
	if scale <= 0 {
		scale = 1.0
	}
	s.combat = &combatRun{
		gen:       s.timerGen,
		res:       engine.ResolveCombat(&s.state),
		timeScale: scale,
	}
	s.scheduleCombat(0, 0)
}

// scheduleCombat arms the timer for checkpoint idx (or combat end when all
// checkpoints are out).
func (s *Session) scheduleCombat(idx int, fromSim float64) {
	run := s.combat
	if run == nil {
		return
	}
	gen := run.gen
	if idx < len(run.res.Checkpoints) {
		wait := time.Duration((run.res.Checkpoints[idx].SimTime - fromSim) / run.timeScale * float64(time.Second))
		if wait < 0 {
			wait = 0
		}
		time.AfterFunc(wait, func() {
			select {
			case s.inbox <- combatTick{gen: gen, idx: idx}:
			case <-s.ctx.Done():
			}
		})
		return
	}
	wait := time.Duration((run.res.Duration - fromSim) / run.timeScale * float64(time.Second))
	if wait < 0 {
		wait = 0
	}
	time.AfterFunc(wait, func() {
		select {
		case s.inbox <- combatDone{gen: gen}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) handleCombatTick(msg combatTick) {
	run := s.combat
	if run == nil || msg.gen != run.gen || msg.idx >= len(run.res.Checkpoints) {
		return
	}
	cp := run.res.Checkpoints[msg.idx]
	s.broadcast(protocol.TypeCombatCheckpoint, cp)
	s.scheduleCombat(msg.idx+1, cp.SimTime)
}

func (s *Session) handleCombatDone(gen int) {
	run := s.combat
	if run == nil || gen != run.gen {
		return
	}
	s.combat = nil
	// Settle the round: implicit Ready for both players drives the
	// Combat -> RoundEnd transition (and the outcome application) through
	// the same deterministic path the clients replay.
	s.forceReadyAll()
}

func (s *Session) sendTo(playerID string, typ protocol.Type, payload any) {
	ch, ok := s.players[playerID]
	if !ok {
		return
	}
	msg, err := makeMessage(typ, payload)
	if err != nil {
		s.log.Error("encode failed", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	select {
	case ch <- msg:
	default:
		// A player that cannot drain its outbox is effectively gone.
		s.log.Warn("player outbox full, dropping", zap.String("player", playerID))
		s.handleLeave(playerID)
	}
}

func (s *Session) broadcast(typ protocol.Type, payload any) {
	msg, err := makeMessage(typ, payload)
	if err != nil {
		s.log.Error("encode failed", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	for id, ch := range s.players {
		select {
		case ch <- msg:
		default:
			s.log.Warn("player outbox full, dropping", zap.String("player", id))
			s.handleLeave(id)
		}
	}
}

func (s *Session) notifyWatchers() {
	if !s.started {
		return
	}
	snap := Snapshot{Version: s.version, State: s.state.Clone()}
	for id, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			// Slow spectators are dropped rather than backpressuring the match.
			close(ch)
			delete(s.watchers, id)
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	for id, ch := range s.players {
		close(ch)
		delete(s.players, id)
	}
	s.cancel()
}

func makeMessage(typ protocol.Type, payload any) (protocol.Message, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return protocol.Message{}, err
		}
		raw = b
	}
	return protocol.Message{Type: typ, Payload: raw}, nil
}
