// Package gameserver accepts raw TCP player connections, performs the Hello
// handshake, and bridges each connection to its match session.
package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/engine"
	"github.com/pathwars/duel-backend/internal/hub"
	"github.com/pathwars/duel-backend/internal/protocol"
	"github.com/pathwars/duel-backend/internal/session"
	"github.com/pathwars/duel-backend/internal/transport"
)

const helloTimeout = 10 * time.Second

type Server struct {
	hub *hub.Hub
	log *zap.Logger
}

func New(h *hub.Hub, log *zap.Logger) *Server {
	return &Server{hub: h, log: log}
}

// Serve accepts player connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, c)
	}
}

func (s *Server) handleConn(ctx context.Context, raw net.Conn) {
	log := s.log.With(zap.String("remote", raw.RemoteAddr().String()))
	conn := transport.NewConn(raw, log)

	hello, err := readHello(raw, conn)
	if err != nil {
		log.Info("handshake failed", zap.Error(err))
		conn.Close()
		return
	}
	log = log.With(zap.String("player", hello.PlayerID), zap.String("match", hello.MatchCode))

	sessReply := make(chan *session.Session, 1)
	s.hub.Inbox() <- hub.EnsureMatch{
		Code:   hello.MatchCode,
		Config: engine.DefaultConfig(),
		Reply:  sessReply,
	}
	sess := <-sessReply

	outbox := make(chan protocol.Message, 64)
	joinReply := make(chan session.JoinResult, 1)
	sess.Inbox() <- session.Join{PlayerID: hello.PlayerID, Outbox: outbox, Reply: joinReply}
	if res := <-joinReply; res.Err != nil {
		conn.SendMessage(protocol.TypeError, protocol.ErrorInfo{
			Code:    "join_refused",
			Message: res.Err.Error(),
		}, "")
		conn.Close()
		return
	}

	// Writer: drain the session outbox onto the wire.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbox {
			raw, err := json.Marshal(msg)
			if err != nil {
				log.Error("marshal outbound", zap.Error(err))
				continue
			}
			if err := conn.Send(raw); err != nil {
				return
			}
		}
	}()

	// Reader: any transport or protocol error is fatal for the match.
	err = conn.ReadLoop(ctx, func(m protocol.Message) error {
		return s.dispatch(sess, conn, hello.PlayerID, m)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Info("connection closed", zap.Error(err))
	}
	sess.Inbox() <- session.Leave{PlayerID: hello.PlayerID}
	conn.Close()
	<-writerDone
}

// readHello reads exactly one frame under a deadline and requires it to be
// a Hello with a match code and player id.
func readHello(raw net.Conn, conn *transport.Conn) (protocol.Hello, error) {
	raw.SetReadDeadline(time.Now().Add(helloTimeout))
	defer raw.SetReadDeadline(time.Time{})

	m, err := conn.ReadMessage()
	if err != nil {
		return protocol.Hello{}, err
	}
	if m.Type != protocol.TypeHello {
		return protocol.Hello{}, &protocol.Error{Reason: "expected Hello, got " + string(m.Type)}
	}
	h, err := protocol.DecodePayload[protocol.Hello](m)
	if err != nil {
		return protocol.Hello{}, err
	}
	if h.MatchCode == "" || h.PlayerID == "" {
		return protocol.Hello{}, &protocol.Error{Reason: "Hello missing match_code or player_id"}
	}
	return h, nil
}

func (s *Server) dispatch(sess *session.Session, conn *transport.Conn, playerID string, m protocol.Message) error {
	switch m.Type {
	case protocol.TypePing:
		return conn.SendMessage(protocol.TypePong, nil, "")
	case protocol.TypeCommand:
		env, err := protocol.DecodePayload[protocol.CommandEnvelope](m)
		if err != nil {
			return err
		}
		cmd := env.Command
		// The connection, not the payload, decides who issued the command.
		cmd.PlayerID = playerID
		sess.Inbox() <- session.FromPlayer{PlayerID: playerID, Seq: env.Seq, Cmd: cmd}
		return nil
	default:
		return &protocol.Error{Reason: "unexpected client message " + string(m.Type)}
	}
}
