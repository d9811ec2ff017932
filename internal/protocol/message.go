// Package protocol defines the JSON wire contract spoken over a session's
// text frames and the codec converting frames to and from typed values.
//
// Every value is externally tagged: a JSON object with exactly one key naming
// the variant, e.g. {"JoinRoom":{"room_uuid":"..."}}.
package protocol

import (
	"github.com/calvinlauco/scrum-poker/internal/domain"
)

// Kind names a request or response variant on the wire.
type Kind string

const (
	KindCreateRoom Kind = "CreateRoom"
	KindJoinRoom   Kind = "JoinRoom"
	KindLeaveRoom  Kind = "LeaveRoom"
	KindPing       Kind = "Ping"

	// Reserved variants are part of the schema but not served by the session engine.
	KindRename Kind = "Rename"
	KindKick   Kind = "Kick"
)

const (
	KindRegistered   Kind = "Registered"
	KindRoomCreated  Kind = "RoomCreated"
	KindRoomJoined   Kind = "RoomJoined"
	KindRoomLeft     Kind = "RoomLeft"
	KindMemberJoined Kind = "MemberJoined"
	KindMemberLeft   Kind = "MemberLeft"
	KindRoomClosed   Kind = "RoomClosed"
	KindError        Kind = "Error"
	KindPong         Kind = "Pong"
	KindAck          Kind = "Ack"
)

// Request is a decoded client request. The concrete types below are the
// complete set; dispatch switches on them.
type Request interface {
	Kind() Kind
}

type CreateRoom struct {
	Params domain.RoomParams `json:"params"`
}

type JoinRoom struct {
	RoomUUID domain.RoomID `json:"room_uuid"`
}

type LeaveRoom struct{}

type Ping struct{}

// Reserved carries a variant the schema names but this engine does not serve.
type Reserved struct {
	Variant Kind
	Payload []byte
}

func (CreateRoom) Kind() Kind { return KindCreateRoom }
func (JoinRoom) Kind() Kind   { return KindJoinRoom }
func (LeaveRoom) Kind() Kind  { return KindLeaveRoom }
func (Ping) Kind() Kind       { return KindPing }
func (r Reserved) Kind() Kind { return r.Variant }

// Response is anything the server writes to a client, either as the direct
// answer to a request or as an asynchronous push.
type Response interface {
	Kind() Kind
}

type Registered struct {
	ClientID domain.ClientID `json:"client_id"`
	User     domain.User     `json:"user"`
}

type RoomCreated struct {
	RoomUUID domain.RoomID   `json:"room_uuid"`
	Name     domain.RoomName `json:"name"`
}

type RoomJoined struct {
	RoomUUID domain.RoomID   `json:"room_uuid"`
	Name     domain.RoomName `json:"name"`
	Members  []domain.User   `json:"members"`
}

type RoomLeft struct {
	RoomUUID domain.RoomID `json:"room_uuid"`
}

type MemberJoined struct {
	RoomUUID domain.RoomID `json:"room_uuid"`
	User     domain.User   `json:"user"`
}

type MemberLeft struct {
	RoomUUID domain.RoomID `json:"room_uuid"`
	User     domain.User   `json:"user"`
}

// RoomClosed is the generic informational/close notice; the value is the reason.
type RoomClosed string

type ErrorCode string

const (
	CodeUnsupportedRequest  ErrorCode = "unsupported_request"
	CodeCallInProgress      ErrorCode = "call_in_progress"
	CodeRoomNotFound        ErrorCode = "room_not_found"
	CodeRoomRefused         ErrorCode = "room_refused"
	CodeCollaboratorFailure ErrorCode = "collaborator_failure"
	CodeTooManyPending      ErrorCode = "too_many_pending"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type Pong struct{}

// Ack is optional instrumentation echoed after each handled frame.
type Ack struct {
	Request Kind `json:"request"`
}

func (Registered) Kind() Kind   { return KindRegistered }
func (RoomCreated) Kind() Kind  { return KindRoomCreated }
func (RoomJoined) Kind() Kind   { return KindRoomJoined }
func (RoomLeft) Kind() Kind     { return KindRoomLeft }
func (MemberJoined) Kind() Kind { return KindMemberJoined }
func (MemberLeft) Kind() Kind   { return KindMemberLeft }
func (RoomClosed) Kind() Kind   { return KindRoomClosed }
func (Error) Kind() Kind        { return KindError }
func (Pong) Kind() Kind         { return KindPong }
func (Ack) Kind() Kind          { return KindAck }

func NewError(code ErrorCode, msg string) Error {
	return Error{Code: code, Message: msg}
}
