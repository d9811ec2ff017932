package signal

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/calvinlauco/scrum-poker/internal/domain"
)

const displayNameKey = "display_name"

// resolveUser builds the connection identity from the client token and a
// display name taken from ?name= or remembered in the cookie session.
func resolveUser(c *gin.Context, token string) (*domain.User, error) {
	store := sessions.Default(c)

	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		if remembered, ok := store.Get(displayNameKey).(string); ok {
			name = remembered
		}
	}
	if name == "" {
		name = "guest-" + token[:min(8, len(token))]
	}

	user, err := domain.NewUser(domain.UserID(token), name)
	if err != nil {
		return nil, errors.Wrap(err, "identity")
	}

	store.Set(displayNameKey, name)
	if err := store.Save(); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("save display name")
	}
	return user, nil
}
