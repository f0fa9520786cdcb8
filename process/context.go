package process

import (
	"context"

	"go.uber.org/zap"

	"github.com/najoast/lproc/core"
	"github.com/najoast/lproc/script"
)

// Program is a Go-native process body. A program must not recover the
// panic raised by Context.Exit; if it does, the process still counts as
// exited.
type Program func(*Context) error

// exitSignal unwinds a process from Context.Exit. Only the supervisor
// recovers it.
type exitSignal struct{}

// Context is the handle a running process uses to reach its peers. It
// belongs to one process and must not be shared.
type Context struct {
	sup    *Supervisor
	proc   *core.Proc
	runID  string
	ctx    context.Context
	logger *zap.Logger

	// exiting is set by Exit before it unwinds
	exiting bool
}

// Proc returns the process's rendezvous participant.
func (c *Context) Proc() *core.Proc { return c.proc }

// Name returns the process name.
func (c *Context) Name() string { return c.proc.Name() }

// RunID identifies this run in logs.
func (c *Context) RunID() string { return c.runID }

// Context is cancelled when the supervisor closes.
func (c *Context) Context() context.Context { return c.ctx }

// Logger returns a logger tagged with the process name and run ID.
func (c *Context) Logger() *zap.Logger { return c.logger }

// Send blocks until a receiver on channel takes values.
func (c *Context) Send(channel string, values ...core.Value) error {
	return c.SendContext(c.ctx, channel, values...)
}

// SendContext is Send bounded by ctx as well as the supervisor.
func (c *Context) SendContext(ctx context.Context, channel string, values ...core.Value) error {
	ctx, cancel := c.sup.callContext(ctx)
	defer cancel()
	return c.sup.rv.SendContext(ctx, c.proc, channel, values...)
}

// Receive blocks until a sender on channel offers values.
func (c *Context) Receive(channel string) (core.Values, error) {
	return c.ReceiveContext(c.ctx, channel)
}

// ReceiveContext is Receive bounded by ctx as well as the supervisor.
func (c *Context) ReceiveContext(ctx context.Context, channel string) (core.Values, error) {
	ctx, cancel := c.sup.callContext(ctx)
	defer cancel()
	return c.sup.rv.ReceiveContext(ctx, c.proc, channel)
}

// Start spawns program text as a new process.
func (c *Context) Start(program string) error {
	return c.sup.Start(program)
}

// Exit ends the calling process at once. It unwinds the program with a
// panic, so deferred calls still run, then the supervisor deregisters
// the process. Programs must not recover that panic. Exit must be called
// from the process's own goroutine.
func (c *Context) Exit() {
	c.exiting = true
	panic(exitSignal{})
}

// scriptHost lets an interpreter drive a Context.
type scriptHost struct {
	c *Context
}

var _ script.Host = scriptHost{}

func (h scriptHost) Send(ctx context.Context, channel string, values core.Values) error {
	return h.c.SendContext(ctx, channel, values...)
}

func (h scriptHost) Receive(ctx context.Context, channel string) (core.Values, error) {
	return h.c.ReceiveContext(ctx, channel)
}

func (h scriptHost) Start(program string) error { return h.c.Start(program) }

func (h scriptHost) Self() string { return h.c.Name() }

// scriptProgram adapts compiled program text into a Program.
func (s *Supervisor) scriptProgram(prog *script.Program) Program {
	return func(c *Context) error {
		return script.NewInterp(scriptHost{c: c}, s.out).Run(c.ctx, prog)
	}
}
