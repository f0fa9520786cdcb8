package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// Proc is the control block of one execution context. Each context owns
// exactly one Proc for its whole life; the Coordinator only links it into
// a wait list while it is parked.
type Proc struct {
	id   ProcID
	name string
	co   *Coordinator

	// cond is bound to co.mu
	cond *sync.Cond

	// Guarded by co.mu
	channel   string
	parked    bool
	direction Direction
	payload   []byte
	state     ProcState

	sends          atomic.Uint64
	receives       atomic.Uint64
	createdAt      time.Time
	lastExchangeAt atomic.Int64 // UnixNano
}

func newProc(id ProcID, name string, co *Coordinator) *Proc {
	return &Proc{
		id:        id,
		name:      name,
		co:        co,
		cond:      sync.NewCond(&co.mu),
		state:     ProcStateIdle,
		createdAt: time.Now(),
	}
}

// ID returns the unique identifier of this Proc.
func (p *Proc) ID() ProcID {
	return p.id
}

// Name returns the registered name of this Proc.
func (p *Proc) Name() string {
	return p.name
}

// Stats returns current runtime statistics for this Proc.
func (p *Proc) Stats() ProcStats {
	p.co.mu.Lock()
	defer p.co.mu.Unlock()
	return p.statsLocked()
}

func (p *Proc) statsLocked() ProcStats {
	stats := ProcStats{
		ID:        p.id,
		Name:      p.name,
		State:     p.state,
		Sends:     p.sends.Load(),
		Receives:  p.receives.Load(),
		CreatedAt: p.createdAt,
	}
	if p.parked {
		stats.Channel = p.channel
		stats.Direction = p.direction
	}
	if last := p.lastExchangeAt.Load(); last > 0 {
		stats.LastExchangeAt = time.Unix(0, last)
	}
	return stats
}

// wake clears the wait condition and signals the parked Proc.
func (p *Proc) wake() {
	p.parked = false
	p.channel = ""
	p.direction = DirectionNone
	p.cond.Signal()
}

func (p *Proc) recordSend() {
	p.sends.Add(1)
	p.lastExchangeAt.Store(time.Now().UnixNano())
}

func (p *Proc) recordReceive() {
	p.receives.Add(1)
	p.lastExchangeAt.Store(time.Now().UnixNano())
}
