package session

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
)

// BindFailurePolicy decides what a failed CreateRoom/JoinRoom does to the connection.
type BindFailurePolicy string

const (
	// BindFailureReport keeps the connection and the prior binding and answers with an Error.
	BindFailureReport BindFailurePolicy = "report"
	// BindFailureClose terminates the connection.
	BindFailureClose BindFailurePolicy = "close"
)

func ParseBindFailurePolicy(s string) (BindFailurePolicy, error) {
	switch p := BindFailurePolicy(s); p {
	case BindFailureReport, BindFailureClose:
		return p, nil
	}
	return "", errors.Newf("unknown bind failure policy %q", s)
}

type Options struct {
	// CallTimeout bounds every collaborator call; zero disables the bound.
	CallTimeout time.Duration
	// MailboxSize is the capacity of the push mailbox.
	MailboxSize int
	// SendBuffer is the capacity of the outbound frame queue.
	SendBuffer int
	// MaxDeferred caps requests held while registration is in flight.
	MaxDeferred int
	BindFailure BindFailurePolicy
	// DebugAck echoes an Ack after every dispatched request.
	DebugAck bool

	WriteWait  time.Duration
	PingPeriod time.Duration

	// Pool runs collaborator calls. Nil uses the ants default pool.
	Pool *ants.Pool
}

func DefaultOptions() Options {
	return Options{
		CallTimeout: 5 * time.Second,
		MailboxSize: 64,
		SendBuffer:  32,
		MaxDeferred: 16,
		BindFailure: BindFailureReport,
		WriteWait:   5 * time.Second,
		PingPeriod:  54 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MailboxSize <= 0 {
		o.MailboxSize = def.MailboxSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	if o.MaxDeferred < 0 {
		o.MaxDeferred = 0
	}
	if o.BindFailure == "" {
		o.BindFailure = def.BindFailure
	}
	return o
}
