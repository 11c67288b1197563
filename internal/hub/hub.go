// Package hub indexes live match sessions by their join code. Like the
// sessions it owns, the hub is a single goroutine fed through a typed inbox.
package hub

import (
	"context"
	"crypto/rand"
	"time"

	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/engine"
	"github.com/pathwars/duel-backend/internal/session"
)

type HubMsg interface{ isHubMsg() }

// CreateMatch allocates a fresh session under a generated join code.
type CreateMatch struct {
	Config engine.MatchConfig
	Reply  chan CreateResult
}

type CreateResult struct {
	Code    string
	Session *session.Session
}

type GetMatch struct {
	Code  string
	Reply chan *session.Session
}

// EnsureMatch fetches the session for Code, creating it with Config when
// absent. Direct-TCP joiners use this so either peer may arrive first.
type EnsureMatch struct {
	Code   string
	Config engine.MatchConfig
	Reply  chan *session.Session
}

type RemoveMatch struct {
	Code string
}

type ShutdownHub struct{}

func (CreateMatch) isHubMsg() {}
func (GetMatch) isHubMsg()    {}
func (EnsureMatch) isHubMsg() {}
func (RemoveMatch) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox    chan HubMsg
	matches  map[string]*session.Session
	opts     session.Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, opts session.Options, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		matches: make(map[string]*session.Session),
		opts:    opts,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateMatch:
				code := h.newCode()
				sess := h.newSession(msg.Config)
				h.matches[code] = sess
				h.log.Info("match created", zap.String("code", code))
				msg.Reply <- CreateResult{Code: code, Session: sess}

			case GetMatch:
				msg.Reply <- h.matches[msg.Code] // may be nil

			case EnsureMatch:
				if sess := h.matches[msg.Code]; sess != nil {
					msg.Reply <- sess
					break
				}
				sess := h.newSession(msg.Config)
				h.matches[msg.Code] = sess
				h.log.Info("match created", zap.String("code", msg.Code))
				msg.Reply <- sess

			case RemoveMatch:
				if sess := h.matches[msg.Code]; sess != nil {
					sess.Inbox() <- session.Shutdown{}
					delete(h.matches, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) newSession(cfg engine.MatchConfig) *session.Session {
	if !cfg.Valid() {
		cfg = engine.DefaultConfig()
	}
	return session.New(h.ctx, cfg, newSeed(), h.opts, h.log)
}

func (h *Hub) shutdown() {
	for _, sess := range h.matches {
		sess.Inbox() <- session.Shutdown{}
	}
	clear(h.matches)
	h.cancel()
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newCode returns a 6-character join code, retrying on the rare collision.
func (h *Hub) newCode() string {
	for {
		b := make([]byte, 6)
		if _, err := rand.Read(b); err != nil {
			panic(err) // crypto/rand never fails on supported platforms
		}
		for i := range b {
			b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		code := string(b)
		if _, taken := h.matches[code]; !taken {
			return code
		}
	}
}

func newSeed() int64 {
	return time.Now().UnixNano()
}
