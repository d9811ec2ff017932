package app

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
)

type clientEntry struct {
	User  *domain.User
	Push  core.PushChannel
	Since time.Time
}

var ErrTooManyConnections = errors.New("too many connections for user")

// Registry is the directory's table of connected clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.ClientID]*clientEntry
	// maxPerUser caps live clients sharing one identity; zero means no cap.
	maxPerUser int
}

func NewRegistry(maxPerUser int) *Registry {
	return &Registry{
		clients:    make(map[domain.ClientID]*clientEntry),
		maxPerUser: maxPerUser,
	}
}

func (r *Registry) Bind(id domain.ClientID, user *domain.User, push core.PushChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.connectionsOf(user.ID); r.maxPerUser > 0 && n >= r.maxPerUser {
		return errors.Wrapf(ErrTooManyConnections, "user %s has %d", user.ID, n)
	}
	r.clients[id] = &clientEntry{User: user, Push: push, Since: time.Now()}
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Str("user", string(user.ID)).Msg("bound client")
	return nil
}

func (r *Registry) Get(id domain.ClientID) (*clientEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[id]
	return e, ok
}

func (r *Registry) Unbind(id domain.ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Msg("unbind client")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// connectionsOf counts live clients presenting the given identity. Callers hold mu.
func (r *Registry) connectionsOf(uid domain.UserID) int {
	n := 0
	for _, e := range r.clients {
		if e.User.ID == uid {
			n++
		}
	}
	return n
}
