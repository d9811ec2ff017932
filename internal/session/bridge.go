package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
	"github.com/calvinlauco/scrum-poker/internal/metrics"
)

const (
	callRegister   = "register"
	callCreateRoom = "create_room"
	callFindRoom   = "find_room"
)

// reply is what a collaborator call hands back to the session loop.
type reply struct {
	clientID domain.ClientID
	room     core.RoomService
}

type callFunc func(ctx context.Context) (reply, error)

// result is a completed call, delivered on the session's results channel.
type result struct {
	id   uint64
	call string
	reply
	err error
}

type pendingCall struct {
	name   string
	start  time.Time
	cancel context.CancelFunc
	timer  *time.Timer
}

// bridge runs collaborator calls off the session loop and posts each outcome
// back exactly once. After close, outcomes are discarded and successful ones
// are handed to the call's undo.
type bridge struct {
	pool    *ants.Pool
	timeout time.Duration
	// results holds more entries than there are call slots, so a post never blocks.
	results chan<- result
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*pendingCall
	closed  bool
}

func newBridge(opts Options, results chan<- result, logger zerolog.Logger) *bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &bridge{
		pool:    opts.Pool,
		timeout: opts.CallTimeout,
		results: results,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]*pendingCall),
	}
}

// call issues fn and returns its correlation id. undo, if set, receives a
// successful reply that could no longer be delivered.
func (b *bridge) call(name string, fn callFunc, undo func(reply)) (uint64, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrSessionClosed
	}
	b.seq++
	id := b.seq
	ctx, cancel := context.WithCancel(b.ctx)
	pc := &pendingCall{name: name, start: time.Now(), cancel: cancel}
	if b.timeout > 0 {
		pc.timer = time.AfterFunc(b.timeout, func() {
			b.resolve(id, reply{}, errors.Wrapf(ErrCallTimeout, "%s after %s", name, b.timeout))
		})
	}
	b.pending[id] = pc
	b.mu.Unlock()

	task := func() {
		rep, err := fn(ctx)
		if !b.resolve(id, rep, err) && err == nil && undo != nil {
			b.log.Debug().Str("call", name).Uint64("call_id", id).Msg("undoing late reply")
			undo(rep)
		}
	}
	if err := b.submit(task); err != nil {
		b.forget(id)
		metrics.CollaboratorCalls.WithLabelValues(name, "rejected").Inc()
		return 0, errors.Wrapf(err, "submit %s", name)
	}
	return id, nil
}

func (b *bridge) submit(task func()) error {
	if b.pool == nil {
		return ants.Submit(task)
	}
	return b.pool.Submit(task)
}

func (b *bridge) take(id uint64) (*pendingCall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pc, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	return pc, ok
}

func (b *bridge) forget(id uint64) {
	if pc, ok := b.take(id); ok {
		pc.stop()
	}
}

// resolve settles a pending call. It reports false when the call had already
// been settled or abandoned, or the bridge is closed. Posting happens under
// the bridge lock, so every posted result is in the channel before close returns.
func (b *bridge) resolve(id uint64, rep reply, err error) bool {
	pc, ok := b.take(id)
	if !ok {
		return false
	}
	pc.stop()

	outcome := "ok"
	switch {
	case errors.Is(err, ErrCallTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.CollaboratorCalls.WithLabelValues(pc.name, outcome).Inc()
	metrics.CollaboratorCallLatency.WithLabelValues(pc.name).Observe(float64(time.Since(pc.start).Microseconds()) / 1000)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.results <- result{id: id, call: pc.name, reply: rep, err: err}:
		return true
	default:
		b.log.Error().Str("call", pc.name).Uint64("call_id", id).Msg("results full, dropping reply")
		return false
	}
}

// close abandons every pending call.
func (b *bridge) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := b.pending
	b.pending = make(map[uint64]*pendingCall)
	b.mu.Unlock()

	for _, pc := range pending {
		pc.stop()
	}
	b.cancel()
	if len(pending) > 0 {
		b.log.Debug().Int("abandoned", len(pending)).Msg("bridge closed")
	}
}

func (pc *pendingCall) stop() {
	pc.cancel()
	if pc.timer != nil {
		pc.timer.Stop()
	}
}
