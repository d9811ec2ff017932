package session

import (
	"sync"

	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/metrics"
	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

// pushChannel is the address collaborators use to reach a session. Sends never
// block: a full mailbox is reported as backpressure and the caller decides.
type pushChannel struct {
	mailbox chan protocol.Response

	mu      sync.RWMutex
	closed  bool
	evicted chan struct{}
}

var _ core.PushChannel = (*pushChannel)(nil)

func newPushChannel(size int) *pushChannel {
	return &pushChannel{
		mailbox: make(chan protocol.Response, size),
		evicted: make(chan struct{}),
	}
}

func (p *pushChannel) TrySend(resp protocol.Response) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return core.ErrPushClosed
	}
	select {
	case p.mailbox <- resp:
		return nil
	default:
		metrics.PushesDropped.Inc()
		return core.ErrBackpressure
	}
}

// Close is called by a collaborator to evict the session.
func (p *pushChannel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.evicted)
}

// shutdown stops accepting pushes without signalling an eviction.
func (p *pushChannel) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
