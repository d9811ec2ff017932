package app

import (
	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

type Policy interface {
	OnBackPressure(room core.RoomService, id domain.ClientID, member core.MemberSession) BackpressureAction
}

// SimplePolicy evicts any member that cannot keep up with its room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, id domain.ClientID, member core.MemberSession) BackpressureAction {
	return KickMember
}
