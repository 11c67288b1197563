// Package transport frames protocol messages over a reliable stream: a
// 4-byte big-endian length prefix followed by the serialized envelope.
// Receivers never process a partial frame; short reads are reassembled.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/protocol"
)

const (
	headerSize = 4
	// maxFrameSize bounds a single message. Full state syncs are a few KB;
	// anything near this limit is a corrupt or hostile stream.
	maxFrameSize = 1 << 20

	sendQueueSize = 64
)

// Error is fatal for the connection: the session layer treats it as a
// disconnect, never a transparent retry.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Conn wraps a stream connection with framing and an asynchronous write
// pump. Send never blocks the caller on socket I/O; a peer that cannot
// drain its queue is treated as gone.
type Conn struct {
	c   net.Conn
	log *zap.Logger

	out       chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func NewConn(c net.Conn, log *zap.Logger) *Conn {
	t := &Conn{
		c:      c,
		log:    log,
		out:    make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
	go t.writePump()
	return t
}

func (t *Conn) RemoteAddr() net.Addr { return t.c.RemoteAddr() }

// Send frames and queues a serialized envelope. Fire-and-forget from the
// caller's perspective: a full queue or closed connection surfaces as an
// *Error and the connection is torn down.
func (t *Conn) Send(envelope []byte) error {
	if len(envelope) > maxFrameSize {
		return &Error{Op: "send", Err: fmt.Errorf("frame of %d bytes exceeds limit", len(envelope))}
	}
	frame := make([]byte, headerSize+len(envelope))
	binary.BigEndian.PutUint32(frame[:headerSize], uint32(len(envelope)))
	copy(frame[headerSize:], envelope)

	select {
	case <-t.closed:
		return &Error{Op: "send", Err: net.ErrClosed}
	case t.out <- frame:
		return nil
	default:
		t.log.Warn("send queue full, dropping connection", zap.String("remote", t.c.RemoteAddr().String()))
		t.Close()
		return &Error{Op: "send", Err: fmt.Errorf("send queue full")}
	}
}

// SendMessage encodes and sends a typed payload.
func (t *Conn) SendMessage(typ protocol.Type, payload any, senderID string) error {
	raw, err := protocol.Encode(typ, payload, senderID)
	if err != nil {
		return err
	}
	return t.Send(raw)
}

func (t *Conn) writePump() {
	for {
		select {
		case <-t.closed:
			return
		case frame := <-t.out:
			if _, err := t.c.Write(frame); err != nil {
				t.log.Debug("write failed", zap.Error(err))
				t.Close()
				return
			}
		}
	}
}

// ReadLoop blocks reading frames and hands each decoded message to handler,
// preserving arrival order. It runs on its own goroutine so the simulation
// loop never blocks on the socket. Any return is fatal for the connection:
// socket errors, oversized frames, protocol errors, a handler error, or
// context cancellation.
func (t *Conn) ReadLoop(ctx context.Context, handler func(protocol.Message) error) error {
	defer t.Close()
	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.closed:
		}
	}()

	for {
		msg, err := t.ReadMessage()
		if err != nil {
			return err
		}
		if err := handler(msg); err != nil {
			return err
		}
	}
}

// ReadMessage reads and decodes a single frame. ReadLoop owns steady-state
// reading; this exists for the handshake, where the caller wants exactly one
// message and keeps the connection on failure-free paths.
func (t *Conn) ReadMessage() (protocol.Message, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(t.c, header); err != nil {
		return protocol.Message{}, &Error{Op: "read header", Err: err}
	}
	length := binary.BigEndian.Uint32(header)
	if length == 0 || length > maxFrameSize {
		return protocol.Message{}, &Error{Op: "read", Err: fmt.Errorf("invalid frame length %d", length)}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(t.c, payload); err != nil {
		return protocol.Message{}, &Error{Op: "read payload", Err: err}
	}
	return protocol.Decode(payload)
}

func (t *Conn) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.c.Close()
	})
	return err
}
