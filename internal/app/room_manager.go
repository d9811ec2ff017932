package app

import (
	"sync"

	"github.com/samber/lo"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
	"github.com/calvinlauco/scrum-poker/internal/metrics"
)

type RoomManager struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomID]core.RoomService
	onDropped core.DropHandler
}

func NewRoomManager(onDropped core.DropHandler) *RoomManager {
	return &RoomManager{
		rooms:     make(map[domain.RoomID]core.RoomService),
		onDropped: onDropped,
	}
}

func (m *RoomManager) CreateRoom(name domain.RoomName, owner domain.ClientID) core.RoomService {
	room := core.NewRoomService(&domain.Room{ID: domain.NewRoomID(), Name: name, Owner: owner}, m.onDropped, m.onEmptied)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.Room().ID] = room
	metrics.RoomsActive.Set(float64(len(m.rooms)))
	return room
}

func (m *RoomManager) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	rooms := lo.Values(m.rooms)
	m.mu.RUnlock()
	return lo.Map(rooms, func(r core.RoomService, _ int) core.RoomInfo {
		return core.RoomInfo{ID: r.Room().ID, Name: r.Room().Name, MemberCount: r.MemberCount()}
	})
}

// onEmptied stops a room once its last member is gone.
func (m *RoomManager) onEmptied(room core.RoomService) {
	m.StopRoom(room.Room().ID, "room empty")
}

// StopRoom closes the room, notifying its members, and forgets it.
func (m *RoomManager) StopRoom(id domain.RoomID, reason string) bool {
	m.mu.Lock()
	room, ok := m.rooms[id]
	delete(m.rooms, id)
	metrics.RoomsActive.Set(float64(len(m.rooms)))
	m.mu.Unlock()
	if !ok {
		return false
	}
	room.Close(reason)
	return true
}

// RemoveMemberEverywhere detaches a client from whatever room still lists it.
func (m *RoomManager) RemoveMemberEverywhere(id domain.ClientID) {
	m.mu.RLock()
	rooms := lo.Values(m.rooms)
	m.mu.RUnlock()
	for _, r := range rooms {
		r.RemoveMember(id)
	}
}
