package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Coordinator matches senders and receivers by channel name.
//
// mu is the only path to mutate either wait list and the channel,
// payload and parked fields of every Proc. Deciding on a match,
// transferring the payload and waking the peer all happen under one
// critical section.
type Coordinator struct {
	mu       sync.Mutex
	sends    waitList
	receives waitList

	registry  *Registry
	exchanges atomic.Uint64
	logger    *zap.Logger
}

// CoordinatorOptions contains configuration options for a Coordinator.
type CoordinatorOptions struct {
	// NamePrefix is used for Procs registered without a name
	NamePrefix string

	// Logger receives lifecycle diagnostics; nil disables logging
	Logger *zap.Logger
}

// DefaultCoordinatorOptions returns sensible default options.
func DefaultCoordinatorOptions() CoordinatorOptions {
	return CoordinatorOptions{
		NamePrefix: "proc",
	}
}

// NewCoordinator creates a Coordinator with empty wait lists.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		registry: NewRegistry(opts.NamePrefix),
		logger:   logger,
	}
}

// Register creates the Proc for a new execution context. An empty name
// gets a generated one.
func (c *Coordinator) Register(name string) (*Proc, error) {
	p, err := c.registry.allocate(name, func(id ProcID, name string) *Proc {
		return newProc(id, name, c)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("proc registered", zap.Uint32("proc", uint32(p.id)), zap.String("name", p.name))
	return p, nil
}

// Deregister terminates a Proc. A Proc that is still parked is unlinked
// from its wait list.
func (c *Coordinator) Deregister(p *Proc) error {
	if p == nil || p.co != c {
		return ErrInvalidProc
	}

	c.mu.Lock()
	if p.state == ProcStateTerminated {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s already terminated", ErrInvalidProc, p.name)
	}
	if p.parked {
		c.sends.remove(p)
		c.receives.remove(p)
		c.logger.Warn("proc deregistered while parked",
			zap.String("name", p.name), zap.String("channel", p.channel))
	}
	p.parked = false
	p.channel = ""
	p.direction = DirectionNone
	p.payload = nil
	p.state = ProcStateTerminated
	p.cond.Broadcast()
	c.mu.Unlock()

	if err := c.registry.Release(p.id); err != nil {
		return err
	}
	c.logger.Debug("proc deregistered", zap.Uint32("proc", uint32(p.id)), zap.String("name", p.name))
	return nil
}

// Lookup finds a live Proc by name.
func (c *Coordinator) Lookup(name string) (*Proc, bool) {
	return c.registry.LookupName(name)
}

// Send delivers values to a receiver on channel, blocking until one
// arrives.
func (c *Coordinator) Send(p *Proc, channel string, values ...Value) error {
	return c.SendContext(context.Background(), p, channel, values...)
}

// SendContext is Send with a deadline. If ctx ends before a receiver
// matches, p leaves the sender list and ctx.Err() is returned. A match
// that happens first always wins.
func (c *Coordinator) SendContext(ctx context.Context, p *Proc, channel string, values ...Value) error {
	data, err := EncodeValues(values)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(p); err != nil {
		return err
	}

	if peer := c.receives.take(channel); peer != nil {
		peer.payload = data
		peer.wake()
		c.exchanges.Add(1)
		p.recordSend()
		return nil
	}

	p.payload = data
	if err := c.parkLocked(ctx, p, channel, DirectionSend, &c.sends); err != nil {
		p.payload = nil
		return err
	}
	p.recordSend()
	return nil
}

// Receive returns the values of a sender on channel, blocking until one
// arrives.
func (c *Coordinator) Receive(p *Proc, channel string) (Values, error) {
	return c.ReceiveContext(context.Background(), p, channel)
}

// ReceiveContext is Receive with a deadline.
func (c *Coordinator) ReceiveContext(ctx context.Context, p *Proc, channel string) (Values, error) {
	data, err := c.receive(ctx, p, channel)
	if err != nil {
		return nil, err
	}
	return DecodeValues(data)
}

func (c *Coordinator) receive(ctx context.Context, p *Proc, channel string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(p); err != nil {
		return nil, err
	}

	if peer := c.sends.take(channel); peer != nil {
		data := peer.payload
		peer.payload = nil
		peer.wake()
		c.exchanges.Add(1)
		p.recordReceive()
		return data, nil
	}

	if err := c.parkLocked(ctx, p, channel, DirectionReceive, &c.receives); err != nil {
		return nil, err
	}
	data := p.payload
	p.payload = nil
	p.recordReceive()
	return data, nil
}

// parkLocked links p at the tail of list and waits until a peer clears
// p.parked. The loop tolerates spurious wakeups.
func (c *Coordinator) parkLocked(ctx context.Context, p *Proc, channel string, dir Direction, list *waitList) error {
	list.push(p)
	p.channel = channel
	p.parked = true
	p.direction = dir
	p.state = ProcStateParked

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			c.mu.Lock()
			p.cond.Broadcast()
			c.mu.Unlock()
		})
		defer stop()
	}

	for p.parked {
		if err := ctx.Err(); err != nil {
			list.remove(p)
			p.parked = false
			p.channel = ""
			p.direction = DirectionNone
			p.state = ProcStateIdle
			return err
		}
		p.cond.Wait()
	}
	if p.state == ProcStateTerminated {
		return fmt.Errorf("%w: %s deregistered while parked", ErrInvalidProc, p.name)
	}
	p.state = ProcStateIdle
	return nil
}

func (c *Coordinator) checkLocked(p *Proc) error {
	if p == nil || p.co != c {
		return ErrInvalidProc
	}
	if p.state == ProcStateTerminated {
		return fmt.Errorf("%w: %s is terminated", ErrInvalidProc, p.name)
	}
	if p.parked {
		return fmt.Errorf("%w: %s on %q", ErrAlreadyParked, p.name, p.channel)
	}
	return nil
}

// Exchanges returns the number of completed matches.
func (c *Coordinator) Exchanges() uint64 {
	return c.exchanges.Load()
}

// Stats returns a snapshot of the wait lists.
func (c *Coordinator) Stats() CoordinatorStats {
	c.mu.Lock()
	stats := CoordinatorStats{
		Exchanges:       c.exchanges.Load(),
		ParkedSenders:   c.sends.len(),
		ParkedReceivers: c.receives.len(),
	}
	c.mu.Unlock()

	stats.Live = c.registry.Len()
	return stats
}

// Procs returns statistics for all live Procs.
func (c *Coordinator) Procs() []ProcStats {
	procs := c.registry.List()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make([]ProcStats, 0, len(procs))
	for _, p := range procs {
		stats = append(stats, p.statsLocked())
	}
	return stats
}
