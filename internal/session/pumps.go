package session

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

// Transport is the message-oriented connection a session runs over.
// *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// inbound is one read from the transport: a frame, or the error that ended reading.
type inbound struct {
	frame protocol.Frame
	err   error
}

// readPump forwards raw frames in arrival order. It stops after the first
// close frame or read error.
func (s *Session) readPump(done chan<- struct{}) {
	defer close(done)
	for {
		mt, data, err := s.conn.ReadMessage()
		var in inbound
		switch {
		case err != nil:
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				in.frame = protocol.Frame{Type: protocol.FrameClose}
			} else {
				in.err = err
			}
		case mt == websocket.BinaryMessage:
			in.frame = protocol.Frame{Type: protocol.FrameBinary, Data: data}
		default:
			in.frame = protocol.TextFrame(data)
		}

		select {
		case s.frames <- in:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// writePump drains the outbound queue. When the queue is closed it sends a
// close frame and returns.
func (s *Session) writePump(done chan<- struct{}) {
	defer close(done)

	var ping <-chan time.Time
	if s.opts.PingPeriod > 0 {
		ticker := time.NewTicker(s.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case data, ok := <-s.outbound:
			if err := s.setWriteDeadline(); err != nil {
				s.writeFailed(err)
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.writeFailed(err)
				return
			}
		case <-ping:
			if err := s.setWriteDeadline(); err != nil {
				s.writeFailed(err)
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.writeFailed(err)
				return
			}
		}
	}
}

func (s *Session) setWriteDeadline() error {
	if s.opts.WriteWait <= 0 {
		return nil
	}
	return s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
}

// writeFailed hands the error to the session loop, which logs it on close.
func (s *Session) writeFailed(err error) {
	select {
	case s.writeErr <- err:
	default:
	}
}
