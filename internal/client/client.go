// Package client is the player-side mirror of a match. It keeps a confirmed
// state built only from server-accepted commands, applies the player's own
// commands speculatively for responsive UI, and rolls them back when the
// server rejects them.
package client

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/engine"
	"github.com/pathwars/duel-backend/internal/protocol"
	"github.com/pathwars/duel-backend/internal/transport"
)

// Handlers are optional callbacks into the UI layer. All fire on the read
// goroutine; they must not block.
type Handlers struct {
	OnWelcome      func(role string, state engine.MatchState)
	OnStateChanged func(version int, state engine.MatchState)
	OnRejected     func(seq int, kind engine.ErrorKind, message string)
	OnPhaseChanged func(phase engine.Phase, round int)
	OnCheckpoint   func(cp engine.Checkpoint)
	OnMatchOver    func(winnerID, reason string)
}

type pendingCmd struct {
	seq int
	cmd engine.Command
}

type Client struct {
	conn     *transport.Conn
	log      *zap.Logger
	playerID string
	handlers Handlers

	mu        sync.RWMutex
	started   bool
	role      string
	version   int
	confirmed engine.MatchState
	view      engine.MatchState
	pending   []pendingCmd
	nextSeq   int
}

// Dial connects to the game server and sends the Hello. The caller must then
// run Run to process the stream.
func Dial(addr, matchCode, playerID string, handlers Handlers, log *zap.Logger) (*Client, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	conn := transport.NewConn(raw, log)
	c := &Client{conn: conn, log: log, playerID: playerID, handlers: handlers, nextSeq: 1}
	if err := conn.SendMessage(protocol.TypeHello, protocol.Hello{
		MatchCode: matchCode,
		PlayerID:  playerID,
	}, playerID); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Run processes the server stream until the connection dies or ctx is
// cancelled. Transport and protocol errors are fatal by design; there is no
// resync path for a desynchronized peer.
func (c *Client) Run(ctx context.Context) error {
	err := c.conn.ReadLoop(ctx, c.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) PlayerID() string { return c.playerID }

// State returns the current view: confirmed state plus speculative commands.
func (c *Client) State() (int, engine.MatchState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version, c.view.Clone()
}

// Started reports whether the Welcome has arrived.
func (c *Client) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

func (c *Client) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Send applies cmd speculatively and ships it to the server. The speculative
// apply failing is not an error worth surfacing twice: the authoritative
// answer comes back as CommandRejected anyway, so the local attempt only
// gates the optimistic view.
func (c *Client) Send(cmd engine.Command) (int, error) {
	cmd.PlayerID = c.playerID

	c.mu.Lock()
	seq := c.nextSeq
	c.nextSeq++
	c.pending = append(c.pending, pendingCmd{seq: seq, cmd: cmd})
	if _, ns, err := engine.Apply(c.view, cmd); err == nil {
		c.view = ns
	}
	c.mu.Unlock()

	err := c.conn.SendMessage(protocol.TypeCommand, protocol.CommandEnvelope{
		Seq:     seq,
		Command: cmd,
	}, c.playerID)
	return seq, err
}

func (c *Client) PlaceTower(t engine.TowerType, x, y int) (int, error) {
	return c.Send(engine.Command{
		Type:       engine.CmdPlaceTower,
		PlaceTower: &engine.PlaceTowerData{TowerType: t, X: x, Y: y},
	})
}

func (c *Client) ModifyPoint(action engine.PointAction, x, y float64, index int) (int, error) {
	return c.Send(engine.Command{
		Type:        engine.CmdModifyControlPoint,
		ModifyPoint: &engine.ModifyPointData{Action: action, X: x, Y: y, Index: index},
	})
}

func (c *Client) SendMercenary(t engine.MercenaryType, quantity int, target string) (int, error) {
	return c.Send(engine.Command{
		Type:          engine.CmdSendMercenary,
		SendMercenary: &engine.SendMercenaryData{MercenaryType: t, Quantity: quantity, TargetPlayer: target},
	})
}

func (c *Client) Research(t engine.ResearchType) (int, error) {
	return c.Send(engine.Command{
		Type:     engine.CmdResearch,
		Research: &engine.ResearchData{ResearchType: t},
	})
}

func (c *Client) SetInterpolation(m engine.InterpMethod) (int, error) {
	return c.Send(engine.Command{
		Type:             engine.CmdSetInterpolation,
		SetInterpolation: &engine.SetInterpolationData{Method: m},
	})
}

func (c *Client) Ready(ready bool) (int, error) {
	return c.Send(engine.Command{
		Type:  engine.CmdReady,
		Ready: &engine.ReadyData{Ready: ready},
	})
}

func (c *Client) handle(m protocol.Message) error {
	switch m.Type {
	case protocol.TypeWelcome:
		w, err := protocol.DecodePayload[protocol.Welcome](m)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.started = true
		c.role = w.Role
		c.version = w.Version
		c.confirmed = w.State
		c.view = w.State.Clone()
		c.pending = nil
		c.mu.Unlock()
		if c.handlers.OnWelcome != nil {
			c.handlers.OnWelcome(w.Role, w.State)
		}
		return nil

	case protocol.TypeCommandAccepted:
		acc, err := protocol.DecodePayload[protocol.CommandAccepted](m)
		if err != nil {
			return err
		}
		return c.applyAccepted(acc)

	case protocol.TypeCommandRejected:
		rej, err := protocol.DecodePayload[protocol.CommandRejected](m)
		if err != nil {
			return err
		}
		c.rollback(rej.Seq)
		if c.handlers.OnRejected != nil {
			c.handlers.OnRejected(rej.Seq, rej.Kind, rej.Message)
		}
		return nil

	case protocol.TypeStateSync:
		sync, err := protocol.DecodePayload[protocol.StateSync](m)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.version = sync.Version
		c.confirmed = sync.State
		c.view = sync.State.Clone()
		c.pending = nil
		c.mu.Unlock()
		c.notifyState()
		return nil

	case protocol.TypePhaseChanged:
		pc, err := protocol.DecodePayload[protocol.PhaseChanged](m)
		if err != nil {
			return err
		}
		if c.handlers.OnPhaseChanged != nil {
			c.handlers.OnPhaseChanged(pc.Phase, pc.Round)
		}
		return nil

	case protocol.TypeCombatCheckpoint:
		cp, err := protocol.DecodePayload[engine.Checkpoint](m)
		if err != nil {
			return err
		}
		if c.handlers.OnCheckpoint != nil {
			c.handlers.OnCheckpoint(cp)
		}
		return nil

	case protocol.TypeMatchOver:
		mo, err := protocol.DecodePayload[protocol.MatchOver](m)
		if err != nil {
			return err
		}
		if c.handlers.OnMatchOver != nil {
			c.handlers.OnMatchOver(mo.WinnerID, mo.Reason)
		}
		return nil

	case protocol.TypePong:
		return nil

	case protocol.TypeError:
		info, err := protocol.DecodePayload[protocol.ErrorInfo](m)
		if err != nil {
			return err
		}
		return &protocol.Error{Reason: info.Code + ": " + info.Message}

	default:
		return &protocol.Error{Reason: "unexpected server message " + string(m.Type)}
	}
}

// applyAccepted advances the confirmed state by one accepted command. Our
// own commands also retire their pending entry; either way the optimistic
// view is rebuilt from confirmed plus whatever is still pending.
func (c *Client) applyAccepted(acc protocol.CommandAccepted) error {
	c.mu.Lock()
	_, ns, err := engine.Apply(c.confirmed, acc.Command)
	if err != nil {
		c.mu.Unlock()
		// The server accepted what our engine refuses: the mirrors have
		// diverged and nothing downstream can be trusted.
		c.log.Error("mirror diverged from authority", zap.Error(err))
		return &protocol.Error{Reason: "accepted command failed locally: " + err.Error()}
	}
	c.confirmed = ns
	c.version = acc.Version
	if acc.Command.PlayerID == c.playerID && acc.Seq != 0 {
		c.dropPendingLocked(acc.Seq)
	}
	c.rebuildViewLocked()
	c.mu.Unlock()
	c.notifyState()
	return nil
}

func (c *Client) rollback(seq int) {
	c.mu.Lock()
	c.dropPendingLocked(seq)
	c.rebuildViewLocked()
	c.mu.Unlock()
	c.notifyState()
}

func (c *Client) dropPendingLocked(seq int) {
	for i, p := range c.pending {
		if p.seq == seq {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// rebuildViewLocked replays the remaining speculative commands on top of the
// confirmed state. Commands invalidated by newer confirmed state are dropped
// silently; the server will reject them too.
func (c *Client) rebuildViewLocked() {
	view := c.confirmed.Clone()
	kept := c.pending[:0]
	for _, p := range c.pending {
		if _, ns, err := engine.Apply(view, p.cmd); err == nil {
			view = ns
			kept = append(kept, p)
		}
	}
	c.pending = kept
	c.view = view
}

func (c *Client) notifyState() {
	if c.handlers.OnStateChanged == nil {
		return
	}
	version, state := c.State()
	c.handlers.OnStateChanged(version, state)
}
