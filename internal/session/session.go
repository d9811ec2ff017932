// Package session is the per-connection protocol engine. A Session owns one
// transport connection, registers it with the directory, dispatches decoded
// requests and relays pushes from collaborators back to the client.
//
// All session state is mutated by the goroutine running Run. Transport I/O
// and collaborator calls happen elsewhere and report back over channels.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
	"github.com/calvinlauco/scrum-poker/internal/metrics"
	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

var (
	ErrCallInProgress = errors.New("call already in progress")
	ErrNotRegistered  = errors.New("session not registered")
	ErrSessionClosed  = errors.New("session closed")
	ErrCallTimeout    = errors.New("collaborator call timed out")
	// ErrEvicted ends a session whose push channel was closed by a collaborator.
	ErrEvicted = errors.New("evicted by collaborator")
	// ErrSlowConsumer ends a session whose outbound queue is full.
	ErrSlowConsumer = errors.New("outbound queue full")

	errPeerClosed   = errors.New("closed by peer")
	errRegistration = errors.New("registration failed")
	errRoomBinding  = errors.New("room binding failed")
)

type State int32

const (
	Connecting State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// slot tracks the single in-flight call allowed per lifecycle concern.
// A zero call id means idle.
type slot struct {
	call uint64
	kind protocol.Kind
}

func (s slot) idle() bool { return s.call == 0 }

type Session struct {
	conn   Transport
	user   *domain.User
	dir    core.Directory
	opts   Options
	connID string
	log    zerolog.Logger

	state atomic.Int32

	mu       sync.RWMutex
	clientID domain.ClientID

	room         core.RoomService
	registration slot
	binding      slot
	deferred     []protocol.Request

	frames   chan inbound
	results  chan result
	outbound chan []byte
	writeErr chan error
	done     chan struct{}

	push   *pushChannel
	bridge *bridge
}

func New(conn Transport, user *domain.User, dir core.Directory, opts Options) *Session {
	opts = opts.withDefaults()
	connID := uuid.NewString()
	s := &Session{
		conn:     conn,
		user:     user,
		dir:      dir,
		opts:     opts,
		connID:   connID,
		log:      log.With().Str("module", "session").Str("conn_id", connID).Logger(),
		frames:   make(chan inbound, 16),
		results:  make(chan result, 4),
		outbound: make(chan []byte, opts.SendBuffer),
		writeErr: make(chan error, 1),
		done:     make(chan struct{}),
		push:     newPushChannel(opts.MailboxSize),
	}
	s.bridge = newBridge(opts, s.results, s.log)
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

// ClientID returns the id assigned at registration, or the unassigned sentinel.
func (s *Session) ClientID() domain.ClientID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

func (s *Session) ConnID() string { return s.connID }

// Push is the channel collaborators use to address this session.
func (s *Session) Push() core.PushChannel { return s.push }

// Run drives the session until it is closed and returns what closed it.
// A close frame from the peer returns nil.
func (s *Session) Run(ctx context.Context) error {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	go s.readPump(readDone)
	go s.writePump(writeDone)

	cause := s.register()
	if cause == nil {
		cause = s.loop(ctx)
	}
	s.teardown(cause)

	<-writeDone
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("transport close")
	}
	<-readDone

	if errors.Is(cause, errPeerClosed) {
		return nil
	}
	return cause
}

func (s *Session) register() error {
	id, err := s.bridge.call(callRegister, func(ctx context.Context) (reply, error) {
		cid, err := s.dir.Register(ctx, s.user, s.push)
		return reply{clientID: cid}, err
	}, func(r reply) {
		abandon(s.dir, callRegister, r)
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "register"), errRegistration)
	}
	s.registration = slot{call: id}
	s.log.Info().Str("user", string(s.user.ID)).Msg("registering")
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "session context")
		case in := <-s.frames:
			if err := s.handleFrame(in); err != nil {
				return err
			}
		case res := <-s.results:
			if err := s.handleResult(res); err != nil {
				return err
			}
		case resp := <-s.push.mailbox:
			if err := s.handlePush(resp); err != nil {
				return err
			}
		case <-s.push.evicted:
			return ErrEvicted
		case err := <-s.writeErr:
			return errors.Wrap(err, "transport write")
		}
	}
}

// teardown moves the session to Closed. Nothing is dispatched or delivered afterwards.
func (s *Session) teardown(cause error) {
	if s.State() == Closed {
		return
	}
	s.state.Store(int32(Closed))

	s.bridge.close()
	s.drainResults()
	s.push.shutdown()
	if s.room != nil {
		s.room.RemoveMember(s.clientID)
		s.room = nil
	}
	if s.clientID.Assigned() {
		ctx, cancel := s.collaboratorContext()
		s.dir.Unregister(ctx, s.clientID)
		cancel()
	}
	s.deferred = nil
	close(s.done)
	close(s.outbound)

	reason := closeReason(cause)
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	ev := s.log.Info()
	if reason != "peer" && reason != "shutdown" {
		ev = s.log.Warn().Err(cause)
	}
	ev.Str("reason", reason).Msg("session closed")
}

// drainResults undoes replies that were posted but never handled.
func (s *Session) drainResults() {
	for {
		select {
		case res := <-s.results:
			if res.err == nil {
				s.log.Debug().Str("call", res.call).Uint64("call_id", res.id).Msg("undoing unhandled reply")
				abandon(s.dir, res.call, res.reply)
			}
		default:
			return
		}
	}
}

// abandon reverts the collaborator side effect of a reply the session will never apply.
func abandon(dir core.Directory, call string, r reply) {
	switch call {
	case callRegister:
		if r.clientID.Assigned() {
			dir.Unregister(context.Background(), r.clientID)
		}
	case callCreateRoom:
		if r.room != nil {
			dir.CloseRoom(r.room.Room().ID, "creator gone")
		}
	}
}

func (s *Session) collaboratorContext() (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout > 0 {
		return context.WithTimeout(context.Background(), s.opts.CallTimeout)
	}
	return context.WithCancel(context.Background())
}

func closeReason(err error) string {
	switch {
	case err == nil, errors.Is(err, errPeerClosed):
		return "peer"
	case errors.Is(err, ErrEvicted):
		return "evicted"
	case errors.Is(err, ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, errRegistration):
		return "registration"
	case errors.Is(err, errRoomBinding):
		return "room_binding"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "shutdown"
	default:
		return "transport"
	}
}
