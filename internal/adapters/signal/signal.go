package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/calvinlauco/scrum-poker/internal/config"
	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/session"
)

// SignalWSController upgrades HTTP requests and runs one session per connection.
type SignalWSController struct {
	Dir       core.Directory
	Options   session.Options
	ReadLimit int64
	PongWait  time.Duration

	wg sync.WaitGroup
}

func NewSignalWSController(dir core.Directory, cfg *config.Config, pool *ants.Pool) (*SignalWSController, error) {
	bindFailure, err := session.ParseBindFailurePolicy(cfg.Session.BindFailure)
	if err != nil {
		return nil, err
	}
	return &SignalWSController{
		Dir: dir,
		Options: session.Options{
			CallTimeout: cfg.Session.CallTimeout,
			MailboxSize: cfg.Session.MailboxSize,
			SendBuffer:  cfg.WS.SendBuffer,
			MaxDeferred: cfg.Session.MaxDeferred,
			BindFailure: bindFailure,
			DebugAck:    cfg.Session.DebugAck,
			WriteWait:   cfg.WS.WriteWait,
			PingPeriod:  cfg.WS.PingPeriod,
			Pool:        pool,
		},
		ReadLimit: cfg.WS.ReadLimit,
		PongWait:  cfg.WS.PongWait,
	}, nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	user, err := resolveUser(c, token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("token", token).Msg("rejecting identity")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ctl.configure(ws)

	sess := session.New(ws, user, ctl.Dir, ctl.Options)
	log.Info().Str("module", "signal").Str("conn_id", sess.ConnID()).Str("user", string(user.ID)).Str("name", user.Username).Msg("new WS connection")

	ctl.wg.Add(1)
	go func() {
		defer ctl.wg.Done()
		if err := sess.Run(ctx); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("conn_id", sess.ConnID()).Msg("session ended")
			return
		}
		log.Info().Str("module", "signal").Str("conn_id", sess.ConnID()).Msg("session ended")
	}()
}

func (ctl *SignalWSController) configure(ws *websocket.Conn) {
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PongWait <= 0 {
		return
	}
	_ = ws.SetReadDeadline(time.Now().Add(ctl.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(ctl.PongWait))
	})
}

// Wait blocks until every session started by this controller has returned.
func (ctl *SignalWSController) Wait() {
	ctl.wg.Wait()
}
