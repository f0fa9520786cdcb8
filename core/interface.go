package core

import (
	"context"
)

// Rendezvous is the contract the process supervisor needs from a
// Coordinator.
type Rendezvous interface {
	// Register creates the Proc for a new execution context.
	Register(name string) (*Proc, error)

	// Deregister terminates a Proc created by Register.
	Deregister(p *Proc) error

	// SendContext blocks until a receiver on channel takes values,
	// or ctx ends.
	SendContext(ctx context.Context, p *Proc, channel string, values ...Value) error

	// ReceiveContext blocks until a sender on channel hands over its
	// values, or ctx ends.
	ReceiveContext(ctx context.Context, p *Proc, channel string) (Values, error)
}

var _ Rendezvous = (*Coordinator)(nil)
