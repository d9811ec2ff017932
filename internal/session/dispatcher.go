package session

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/metrics"
	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

// handleFrame decodes one inbound frame and dispatches it. Malformed frames
// are dropped without a response.
func (s *Session) handleFrame(in inbound) error {
	if in.err != nil {
		return errors.Wrap(in.err, "transport read")
	}
	metrics.FramesReceived.WithLabelValues(in.frame.Type.String()).Inc()
	if in.frame.Type == protocol.FrameClose {
		return errPeerClosed
	}

	req, err := protocol.Decode(in.frame)
	if err != nil {
		reason := "unrecognized"
		if errors.Is(err, protocol.ErrBinaryFrame) {
			reason = "binary"
		}
		metrics.DecodeErrors.WithLabelValues(reason).Inc()
		s.log.Warn().Err(err).Str("frame", in.frame.Type.String()).Msg("dropping frame")
		return nil
	}

	if s.State() == Connecting {
		if len(s.deferred) >= s.opts.MaxDeferred {
			s.log.Warn().Str("request", string(req.Kind())).Msg("too many requests before registration")
			return s.send(protocol.NewError(protocol.CodeTooManyPending, "registration still in progress"))
		}
		s.deferred = append(s.deferred, req)
		return nil
	}
	return s.dispatch(req)
}

func (s *Session) dispatch(req protocol.Request) error {
	s.log.Debug().Str("request", string(req.Kind())).Msg("dispatch")

	var err error
	switch r := req.(type) {
	case protocol.CreateRoom:
		err = s.createRoom(r)
	case protocol.JoinRoom:
		err = s.joinRoom(r)
	case protocol.LeaveRoom:
		err = s.leaveRoom()
	case protocol.Ping:
		err = s.send(protocol.Pong{})
	default:
		err = s.send(protocol.NewError(protocol.CodeUnsupportedRequest, string(req.Kind())+" is not supported"))
	}
	if err != nil {
		return err
	}
	if s.opts.DebugAck {
		return s.send(protocol.Ack{Request: req.Kind()})
	}
	return nil
}

func (s *Session) createRoom(r protocol.CreateRoom) error {
	clientID := s.clientID
	params := r.Params
	return s.startBinding(protocol.KindCreateRoom, callCreateRoom, func(ctx context.Context) (reply, error) {
		room, err := s.dir.CreateRoom(ctx, clientID, params)
		return reply{room: room}, err
	}, func(r reply) {
		abandon(s.dir, callCreateRoom, r)
	})
}

func (s *Session) joinRoom(r protocol.JoinRoom) error {
	roomID := r.RoomUUID
	clientID := s.clientID
	return s.startBinding(protocol.KindJoinRoom, callFindRoom, func(ctx context.Context) (reply, error) {
		room, err := s.dir.FindRoom(ctx, clientID, roomID)
		return reply{room: room}, err
	}, nil)
}

// startBinding issues a room-binding call unless one is already in flight.
func (s *Session) startBinding(kind protocol.Kind, name string, fn callFunc, undo func(reply)) error {
	if !s.clientID.Assigned() {
		return s.bindFailed(ErrNotRegistered)
	}
	if !s.binding.idle() {
		err := errors.Wrapf(ErrCallInProgress, "%s awaiting reply", s.binding.kind)
		s.log.Warn().Err(err).Str("request", string(kind)).Msg("rejecting overlapping room call")
		return s.send(protocol.NewError(errorCode(err), err.Error()))
	}
	id, err := s.bridge.call(name, fn, undo)
	if err != nil {
		return s.bindFailed(err)
	}
	s.binding = slot{call: id, kind: kind}
	return nil
}

func (s *Session) leaveRoom() error {
	if s.room == nil {
		return s.send(protocol.NewError(protocol.CodeRoomNotFound, "not in a room"))
	}
	roomID := s.room.Room().ID
	s.room.RemoveMember(s.clientID)
	s.room = nil
	s.log.Info().Str("room", string(roomID)).Msg("left room")
	return s.send(protocol.RoomLeft{RoomUUID: roomID})
}

func (s *Session) handleResult(res result) error {
	switch res.call {
	case callRegister:
		if s.registration.call != res.id {
			return nil
		}
		s.registration = slot{}
		return s.registered(res)
	case callCreateRoom, callFindRoom:
		if s.binding.call != res.id {
			return nil
		}
		kind := s.binding.kind
		s.binding = slot{}
		if res.err != nil {
			return s.bindFailed(res.err)
		}
		return s.bind(kind, res.room)
	}
	return nil
}

// registered completes Connecting. Requests held back meanwhile are
// dispatched in arrival order.
func (s *Session) registered(res result) error {
	if res.err != nil {
		return errors.Mark(errors.Wrap(res.err, "register"), errRegistration)
	}
	if !res.clientID.Assigned() {
		return errors.Mark(errors.Wrap(core.ErrRegistrationRefused, "no client id"), errRegistration)
	}
	s.mu.Lock()
	s.clientID = res.clientID
	s.mu.Unlock()
	s.state.Store(int32(Active))
	s.log = s.log.With().Str("client_id", string(res.clientID)).Logger()
	s.log.Info().Str("user", string(s.user.ID)).Int("deferred", len(s.deferred)).Msg("session active")

	if err := s.send(protocol.Registered{ClientID: res.clientID, User: *s.user}); err != nil {
		return err
	}
	deferred := s.deferred
	s.deferred = nil
	for _, req := range deferred {
		if err := s.dispatch(req); err != nil {
			return err
		}
	}
	return nil
}

// bind attaches the session to room. A session in another room leaves it
// once the new room has accepted it.
func (s *Session) bind(kind protocol.Kind, room core.RoomService) error {
	if room == nil {
		return s.bindFailed(core.ErrRoomNotFound)
	}
	if err := room.AddMember(s.clientID, core.NewMemberSession(s.user, s.push)); err != nil {
		return s.bindFailed(errors.Mark(err, core.ErrRoomNotFound))
	}
	if prev := s.room; prev != nil && prev != room {
		prev.RemoveMember(s.clientID)
		s.log.Info().Str("room", string(prev.Room().ID)).Msg("replaced room binding")
	}
	s.room = room
	info := room.Room()
	s.log.Info().Str("room", string(info.ID)).Str("request", string(kind)).Msg("bound to room")

	if kind == protocol.KindCreateRoom {
		return s.send(protocol.RoomCreated{RoomUUID: info.ID, Name: info.Name})
	}
	return s.send(protocol.RoomJoined{RoomUUID: info.ID, Name: info.Name, Members: room.MembersSnapshot()})
}

// bindFailed applies the bind failure policy. The current binding is kept.
func (s *Session) bindFailed(err error) error {
	code := errorCode(err)
	s.log.Error().Err(err).Str("code", string(code)).Msg("room binding failed")
	if sendErr := s.send(protocol.NewError(code, err.Error())); sendErr != nil {
		return sendErr
	}
	if s.opts.BindFailure == BindFailureClose {
		return errors.Mark(errors.Wrap(err, "room binding"), errRoomBinding)
	}
	return nil
}

func errorCode(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, core.ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, core.ErrRoomRefused):
		return protocol.CodeRoomRefused
	case errors.Is(err, ErrCallInProgress):
		return protocol.CodeCallInProgress
	default:
		return protocol.CodeCollaboratorFailure
	}
}

// handlePush relays a collaborator push. A RoomClosed from the bound room
// also drops the binding.
func (s *Session) handlePush(resp protocol.Response) error {
	if _, ok := resp.(protocol.RoomClosed); ok && s.room != nil && s.room.Closed() {
		s.log.Info().Str("room", string(s.room.Room().ID)).Msg("bound room closed")
		s.room = nil
	}
	return s.send(resp)
}

// send queues a response for the write pump without blocking.
func (s *Session) send(resp protocol.Response) error {
	data, err := protocol.Encode(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("encode response")
		return nil
	}
	select {
	case s.outbound <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}
