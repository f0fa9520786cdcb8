package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/semaphore"

	"github.com/najoast/lproc/core"
	"github.com/najoast/lproc/script"
)

// Options configures a Supervisor.
type Options struct {
	// MaxProcs caps concurrently running processes; 0 means no limit
	MaxProcs int64

	// LockOSThread pins each process goroutine to its own OS thread
	LockOSThread bool

	// DefaultDeadline bounds every send and receive; 0 blocks forever
	DefaultDeadline time.Duration

	// Output receives print statements; nil means os.Stdout. Writes are
	// serialized, so it need not be safe for concurrent use.
	Output io.Writer

	// Logger is the error stream for failed processes; nil disables it
	Logger *zap.Logger
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		LockOSThread: true,
	}
}

// Supervisor starts processes and keeps track of them until they end.
type Supervisor struct {
	rv     core.Rendezvous
	opts   Options
	logger *zap.Logger
	out    io.Writer
	slots  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	live   atomic.Int64
}

// NewSupervisor creates a Supervisor whose processes share rv.
func NewSupervisor(rv core.Rendezvous, opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	s := &Supervisor{
		rv:     rv,
		opts:   opts,
		logger: logger,
		out:    zapcore.Lock(zapcore.AddSync(out)),
	}
	if opts.MaxProcs > 0 {
		s.slots = semaphore.NewWeighted(opts.MaxProcs)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Compile checks program text without running it.
func Compile(text string) (*script.Program, error) {
	prog, err := script.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	return prog, nil
}

// Start compiles program text and runs it as a new process. Compile and
// setup errors are returned; everything after that is the process's own
// business.
func (s *Supervisor) Start(text string) error {
	prog, err := Compile(text)
	if err != nil {
		return err
	}
	return s.Spawn(s.scriptProgram(prog))
}

// Spawn runs a Go-native program as a new process with a generated name.
func (s *Supervisor) Spawn(program Program) error {
	return s.SpawnNamed("", program)
}

// SpawnNamed runs program as a new process called name.
func (s *Supervisor) SpawnNamed(name string, program Program) error {
	c, err := s.admit(name)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.opts.LockOSThread {
			// Never unlocked: the thread exits with the goroutine
			runtime.LockOSThread()
		}
		s.run(c, program)
	}()
	return nil
}

// RunMain runs program text as the initial process on the calling
// goroutine. A runtime error in the main program is returned. If the main
// program ends by exiting, RunMain waits for every other process to
// finish; otherwise it returns at once and leaves them running.
func (s *Supervisor) RunMain(text string) error {
	prog, err := Compile(text)
	if err != nil {
		return err
	}
	return s.RunMainProgram(s.scriptProgram(prog))
}

// RunMainProgram is RunMain for a Go-native program.
func (s *Supervisor) RunMainProgram(program Program) error {
	c, err := s.admit("main")
	if err != nil {
		return err
	}
	if s.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	exited, err := s.execute(c, program)
	s.finish(c)
	if err != nil {
		return err
	}
	if exited {
		c.logger.Debug("main exited, waiting for processes", zap.Int64("live", s.Live()))
		return s.Wait(context.Background())
	}
	return nil
}

// Wait blocks until every spawned process has ended or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Live returns the number of running processes.
func (s *Supervisor) Live() int64 {
	return s.live.Load()
}

// Close refuses new processes and interrupts every blocked send, receive
// and sleep so running processes can end.
func (s *Supervisor) Close() {
	s.cancel()
}

// admit reserves a slot and registers a Proc for a new process.
func (s *Supervisor) admit(name string) (*Context, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if s.slots != nil && !s.slots.TryAcquire(1) {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyProcs, s.opts.MaxProcs)
	}

	p, err := s.rv.Register(name)
	if err != nil {
		s.release()
		return nil, err
	}

	runID := uuid.New().String()
	s.live.Add(1)
	return &Context{
		sup:    s,
		proc:   p,
		runID:  runID,
		ctx:    s.ctx,
		logger: s.logger.With(zap.String("proc", p.Name()), zap.String("run_id", runID)),
	}, nil
}

func (s *Supervisor) release() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}

// run executes a spawned process and logs how it ended.
func (s *Supervisor) run(c *Context, program Program) {
	defer s.finish(c)

	c.logger.Debug("process started")
	exited, err := s.execute(c, program)
	switch {
	case errors.Is(err, ErrPanic):
		// already logged with its stack
	case err != nil && s.ctx.Err() != nil && errors.Is(err, context.Canceled):
		c.logger.Debug("process interrupted", zap.Error(err))
	case err != nil:
		c.logger.Error("process failed", zap.Error(err))
	case exited:
		c.logger.Debug("process exited")
	default:
		c.logger.Debug("process finished")
	}
}

// execute runs program, turning exits into exited=true and panics into
// errors. A program that swallows its own Exit has still exited.
func (s *Supervisor) execute(c *Context, program Program) (exited bool, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(exitSignal); ok {
			exited, err = true, nil
			return
		}
		c.logger.Error("process panicked", zap.Any("panic", r), zap.Stack("stack"))
		exited, err = false, fmt.Errorf("%w: %v", ErrPanic, r)
	}()

	err = program(c)
	if c.exiting {
		return true, nil
	}
	if errors.Is(err, ErrExit) || errors.Is(err, script.ErrExit) {
		return true, nil
	}
	return false, err
}

// finish deregisters the process and frees its slot.
func (s *Supervisor) finish(c *Context) {
	if err := s.rv.Deregister(c.proc); err != nil {
		c.logger.Warn("deregister failed", zap.Error(err))
	}
	s.live.Add(-1)
	s.release()
}

// callContext bounds a single send or receive by parent, the supervisor
// and the default deadline.
func (s *Supervisor) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)

	if s.opts.DefaultDeadline > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.opts.DefaultDeadline)
		return ctx, func() {
			cancelTimeout()
			stop()
			cancel()
		}
	}
	return ctx, func() {
		stop()
		cancel()
	}
}
