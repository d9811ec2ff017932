package core

import "github.com/calvinlauco/scrum-poker/internal/domain"

// memberSession implements MemberSession by pairing identity + push endpoint.
type memberSession struct {
	user *domain.User
	push PushChannel
}

func NewMemberSession(user *domain.User, push PushChannel) MemberSession {
	return &memberSession{user: user, push: push}
}

func (m *memberSession) User() *domain.User { return m.user }
func (m *memberSession) Push() PushChannel  { return m.push }
