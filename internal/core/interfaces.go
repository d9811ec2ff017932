package core

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/calvinlauco/scrum-poker/internal/domain"
	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

var (
	ErrBackpressure        = errors.New("backpressure")
	ErrPushClosed          = errors.New("push channel closed")
	ErrRegistrationRefused = errors.New("registration refused")
	ErrUnknownClient       = errors.New("unknown client")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomRefused         = errors.New("room refused")
	ErrRoomClosed          = errors.New("room closed")
)

// PushChannel is the capability a session hands to its collaborators so they
// can address it. Deliveries from one caller keep their order.
// Owned by the session; collaborators may Close() it to evict the client.
type PushChannel interface {
	TrySend(protocol.Response) error
	Close()
}

// MemberSession binds an identity and its push endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	User() *domain.User
	Push() PushChannel
}

// PublishResult reports delivery stats/backpressure to the directory.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ClientID
}

// RoomService is the session-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []domain.User
	Closed() bool

	AddMember(id domain.ClientID, ms MemberSession) error
	RemoveMember(id domain.ClientID) bool
	Broadcast(from domain.ClientID, resp protocol.Response) PublishResult
	Close(reason string)
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

// Directory tracks connected clients and routes room creation and lookup.
// Every method may block; sessions only call it through their bridge.
type Directory interface {
	Register(ctx context.Context, user *domain.User, push PushChannel) (domain.ClientID, error)
	Unregister(ctx context.Context, id domain.ClientID)
	CreateRoom(ctx context.Context, id domain.ClientID, params domain.RoomParams) (RoomService, error)
	FindRoom(ctx context.Context, id domain.ClientID, roomID domain.RoomID) (RoomService, error)
	// CloseRoom notifies the members with RoomClosed and forgets the room.
	CloseRoom(roomID domain.RoomID, reason string) bool
}
