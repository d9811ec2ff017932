package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
)

type DirectoryConfig struct {
	CreateRoomLimit    int
	CreateRoomInterval time.Duration
	MaxRoomName        int
	// MaxConnectionsPerUser caps concurrent clients per identity; zero disables it.
	MaxConnectionsPerUser int
}

// Directory is the in-process directory collaborator: it registers clients
// and creates or looks up rooms for them.
type Directory struct {
	Registry *Registry
	Rooms    *RoomManager
	Policy   Policy

	limiter     *RoomRateLimiter
	maxRoomName int
}

var _ core.Directory = (*Directory)(nil)

func NewDirectory(cfg DirectoryConfig, policy Policy) *Directory {
	d := &Directory{
		Registry:    NewRegistry(cfg.MaxConnectionsPerUser),
		Policy:      policy,
		limiter:     NewRoomRateLimiter(cfg.CreateRoomLimit, cfg.CreateRoomInterval),
		maxRoomName: cfg.MaxRoomName,
	}
	d.Rooms = NewRoomManager(d.onDropped)
	return d
}

func (d *Directory) Register(ctx context.Context, user *domain.User, push core.PushChannel) (domain.ClientID, error) {
	if err := ctx.Err(); err != nil {
		return domain.UnassignedClientID, err
	}
	if user == nil || user.ID == "" {
		return domain.UnassignedClientID, errors.Wrap(core.ErrRegistrationRefused, "missing identity")
	}
	if push == nil {
		return domain.UnassignedClientID, errors.Wrap(core.ErrRegistrationRefused, "missing push channel")
	}
	id := domain.NewClientID()
	if err := d.Registry.Bind(id, user, push); err != nil {
		return domain.UnassignedClientID, errors.Mark(err, core.ErrRegistrationRefused)
	}
	return id, nil
}

func (d *Directory) Unregister(_ context.Context, id domain.ClientID) {
	if !d.Registry.Unbind(id) {
		return
	}
	d.Rooms.RemoveMemberEverywhere(id)
}

func (d *Directory) CreateRoom(ctx context.Context, id domain.ClientID, params domain.RoomParams) (core.RoomService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := d.Registry.Get(id)
	if !ok {
		return nil, errors.Mark(errors.Wrapf(core.ErrUnknownClient, "client %s", id), core.ErrRoomRefused)
	}
	name, err := params.Validate(d.maxRoomName)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "room name"), core.ErrRoomRefused)
	}
	if !d.limiter.Allow(entry.User.ID) {
		return nil, errors.Wrap(core.ErrRoomRefused, "too many rooms created, try later")
	}
	room := d.Rooms.CreateRoom(name, id)
	log.Info().Str("module", "app.directory").Str("client_id", string(id)).Str("room", string(room.Room().ID)).Str("name", string(name)).Msg("room created")
	return room, nil
}

func (d *Directory) FindRoom(ctx context.Context, id domain.ClientID, roomID domain.RoomID) (core.RoomService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := d.Registry.Get(id); !ok {
		return nil, errors.Mark(errors.Wrapf(core.ErrUnknownClient, "client %s", id), core.ErrRoomRefused)
	}
	room, ok := d.Rooms.GetRoom(roomID)
	if !ok || room.Closed() {
		return nil, errors.Wrapf(core.ErrRoomNotFound, "room %s", roomID)
	}
	return room, nil
}

func (d *Directory) ListRooms() []core.RoomInfo {
	return d.Rooms.List()
}

// CloseRoom evicts every member of the room with a RoomClosed notice.
func (d *Directory) CloseRoom(id domain.RoomID, reason string) bool {
	return d.Rooms.StopRoom(id, reason)
}

func (d *Directory) onDropped(room core.RoomService, id domain.ClientID, ms core.MemberSession) {
	if d.Policy == nil {
		return
	}
	switch d.Policy.OnBackPressure(room, id, ms) {
	case KickMember:
		log.Warn().Str("module", "app.directory").Str("client_id", string(id)).Str("room", string(room.Room().ID)).Msg("kicking slow member")
		room.RemoveMember(id)
		ms.Push().Close()
	case NoAction:
	}
}
