package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/calvinlauco/scrum-poker/internal/domain"
	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

// DropHandler is told about a member whose push channel refused a broadcast.
// It runs without the room lock held.
type DropHandler func(room RoomService, id domain.ClientID, ms MemberSession)

// EmptyHandler is told when RemoveMember takes out the last member.
type EmptyHandler func(room RoomService)

type memberEntry struct {
	ms  MemberSession
	seq uint64
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room

	mu      sync.RWMutex
	members map[domain.ClientID]memberEntry
	seq     uint64
	closed  bool

	onDropped DropHandler
	onEmptied EmptyHandler
}

func NewRoomService(room *domain.Room, onDropped DropHandler, onEmptied EmptyHandler) RoomService {
	return &roomImpl{
		room:      room,
		members:   make(map[domain.ClientID]memberEntry),
		onDropped: onDropped,
		onEmptied: onEmptied,
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// AddMember attaches a client and announces it to everyone else. Re-adding a
// present client only refreshes its push endpoint.
func (r *roomImpl) AddMember(id domain.ClientID, ms MemberSession) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	_, rejoin := r.members[id]
	r.seq++
	r.members[id] = memberEntry{ms: ms, seq: r.seq}
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("client_id", string(id)).Bool("rejoin", rejoin).Msg("member added")
	if !rejoin {
		r.Broadcast(id, protocol.MemberJoined{RoomUUID: r.room.ID, User: *ms.User()})
	}
	return nil
}

func (r *roomImpl) RemoveMember(id domain.ClientID) bool {
	r.mu.Lock()
	e, ok := r.members[id]
	delete(r.members, id)
	empty := len(r.members) == 0
	r.mu.Unlock()
	if !ok {
		return false
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("client_id", string(id)).Msg("member removed")
	r.Broadcast(id, protocol.MemberLeft{RoomUUID: r.room.ID, User: *e.ms.User()})
	if empty && r.onEmptied != nil {
		r.onEmptied(r)
	}
	return true
}

func (r *roomImpl) Broadcast(from domain.ClientID, resp protocol.Response) PublishResult {
	r.mu.RLock()
	targets := make(map[domain.ClientID]MemberSession, len(r.members))
	for id, e := range r.members {
		if id != from {
			targets[id] = e.ms
		}
	}
	r.mu.RUnlock()

	res := PublishResult{}
	for id, ms := range targets {
		if err := ms.Push().TrySend(resp); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Str("kind", string(resp.Kind())).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")

	if r.onDropped != nil {
		for _, id := range res.Dropped {
			r.onDropped(r, id, targets[id])
		}
	}
	return res
}

// Close notifies every member with RoomClosed and refuses further joins.
func (r *roomImpl) Close(reason string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	members := r.members
	r.members = make(map[domain.ClientID]memberEntry)
	r.mu.Unlock()

	for _, e := range members {
		_ = e.ms.Push().TrySend(protocol.RoomClosed(reason))
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("reason", reason).Int("members", len(members)).Msg("room closed")
}

// MembersSnapshot lists members in join order.
func (r *roomImpl) MembersSnapshot() []domain.User {
	r.mu.RLock()
	entries := lo.Values(r.members)
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return lo.Map(entries, func(e memberEntry, _ int) domain.User { return *e.ms.User() })
}
