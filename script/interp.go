package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/najoast/lproc/core"
)

// Host connects a running program to the outside world.
type Host interface {
	// Send blocks until a receiver on channel takes values.
	Send(ctx context.Context, channel string, values core.Values) error

	// Receive blocks until a sender on channel offers values.
	Receive(ctx context.Context, channel string) (core.Values, error)

	// Start spawns program text as a new process.
	Start(program string) error

	// Self returns the name of the calling process.
	Self() string
}

// Interp runs programs against a Host. Variables live in the Interp, so
// programs in different Interps share nothing.
type Interp struct {
	host Host
	out  io.Writer
	env  map[string]core.Value
}

// NewInterp creates an interpreter with self bound to the host's name.
// A nil out discards print output.
func NewInterp(host Host, out io.Writer) *Interp {
	if out == nil {
		out = io.Discard
	}
	in := &Interp{
		host: host,
		out:  out,
		env:  make(map[string]core.Value),
	}
	in.env["self"] = core.StringValue(host.Self())
	return in
}

// Set binds a variable.
func (in *Interp) Set(name string, v core.Value) {
	in.env[name] = v
}

// Get reads a variable.
func (in *Interp) Get(name string) (core.Value, bool) {
	v, ok := in.env[name]
	return v, ok
}

// Run executes prog. It returns nil when the program falls off its end and
// ErrExit when it executes exit.
func (in *Interp) Run(ctx context.Context, prog *Program) error {
	return in.execBlock(ctx, prog.Stmts)
}

func (in *Interp) execBlock(ctx context.Context, stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return runtimeError(stmt.Pos().Line, err, "interrupted")
		}
		if err := in.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) exec(ctx context.Context, stmt Stmt) error {
	line := stmt.Pos().Line

	switch s := stmt.(type) {
	case *LetStmt:
		v, err := in.eval(s.Value)
		if err != nil {
			return err
		}
		in.env[s.Name] = v
		return nil

	case *SendStmt:
		channel, err := in.evalChannel(s.Channel)
		if err != nil {
			return err
		}
		values := make(core.Values, 0, len(s.Args))
		for _, arg := range s.Args {
			v, err := in.eval(arg)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		if err := in.host.Send(ctx, channel, values); err != nil {
			return runtimeError(line, err, "send on %q", channel)
		}
		return nil

	case *RecvStmt:
		channel, err := in.evalChannel(s.Channel)
		if err != nil {
			return err
		}
		values, err := in.host.Receive(ctx, channel)
		if err != nil {
			return runtimeError(line, err, "recv on %q", channel)
		}
		for i, name := range s.Names {
			if i < len(values) {
				in.env[name] = values[i]
			} else {
				in.env[name] = core.NilValue()
			}
		}
		return nil

	case *PrintStmt:
		parts := make([]string, 0, len(s.Args))
		for _, arg := range s.Args {
			v, err := in.eval(arg)
			if err != nil {
				return err
			}
			parts = append(parts, v.String())
		}
		_, err := fmt.Fprintln(in.out, strings.Join(parts, "\t"))
		return err

	case *SleepStmt:
		timer := time.NewTimer(s.Duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return runtimeError(line, ctx.Err(), "sleep interrupted")
		}

	case *StartStmt:
		v, err := in.eval(s.Program)
		if err != nil {
			return err
		}
		text, ok := v.AsString()
		if !ok {
			return runtimeErrorf(line, "start needs program text, got %s", v.Kind())
		}
		if err := in.host.Start(text); err != nil {
			return runtimeError(line, err, "start")
		}
		return nil

	case *RepeatStmt:
		v, err := in.eval(s.Count)
		if err != nil {
			return err
		}
		n, ok := v.AsInt()
		if !ok {
			return runtimeErrorf(line, "repeat count must be an integer, got %s", v.Kind())
		}
		for i := int64(1); i <= n; i++ {
			if s.As != "" {
				in.env[s.As] = core.IntValue(i)
			}
			if err := in.execBlock(ctx, s.Body); err != nil {
				return err
			}
		}
		return nil

	case *AssertStmt:
		left, err := in.eval(s.Left)
		if err != nil {
			return err
		}
		right, err := in.eval(s.Right)
		if err != nil {
			return err
		}
		equal := left.Equal(right)
		if (s.Op == TokenEqual) != equal {
			return &Error{Kind: ErrAssert, Line: line,
				Msg: fmt.Sprintf("%s %s %s", describe(left), s.Op, describe(right))}
		}
		return nil

	case *ExitStmt:
		return ErrExit

	default:
		return runtimeErrorf(line, "unknown statement %T", stmt)
	}
}

func (in *Interp) evalChannel(e Expr) (string, error) {
	v, err := in.eval(e)
	if err != nil {
		return "", err
	}
	name, ok := v.AsString()
	if !ok {
		return "", runtimeErrorf(e.Pos().Line, "channel name must be a string, got %s", v.Kind())
	}
	return name, nil
}

func (in *Interp) eval(e Expr) (core.Value, error) {
	switch x := e.(type) {
	case *Literal:
		return x.Value, nil

	case *VarRef:
		v, ok := in.env[x.Name]
		if !ok {
			return core.Value{}, runtimeErrorf(x.At.Line, "undefined variable %q", x.Name)
		}
		return v, nil

	case *Unary:
		v, err := in.eval(x.X)
		if err != nil {
			return core.Value{}, err
		}
		if i, ok := v.AsInt(); ok {
			return core.IntValue(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return core.FloatValue(-f), nil
		}
		return core.Value{}, runtimeErrorf(x.At.Line, "cannot negate %s", v.Kind())

	case *Binary:
		left, err := in.eval(x.Left)
		if err != nil {
			return core.Value{}, err
		}
		right, err := in.eval(x.Right)
		if err != nil {
			return core.Value{}, err
		}
		v, err := binaryOp(x.Op, left, right)
		if err != nil {
			return core.Value{}, runtimeError(x.At.Line, err, "")
		}
		return v, nil

	default:
		return core.Value{}, runtimeErrorf(e.Pos().Line, "unknown expression %T", e)
	}
}

var errOperand = errors.New("invalid operand")

func binaryOp(op TokenType, a, b core.Value) (core.Value, error) {
	if op == TokenConcat {
		if !concatenable(a) || !concatenable(b) {
			return core.Value{}, fmt.Errorf("%w: cannot concatenate %s and %s", errOperand, a.Kind(), b.Kind())
		}
		return core.StringValue(a.String() + b.String()), nil
	}

	ai, aInt := a.AsInt()
	bi, bInt := b.AsInt()
	if aInt && bInt && op != TokenSlash {
		switch op {
		case TokenPlus:
			return core.IntValue(ai + bi), nil
		case TokenMinus:
			return core.IntValue(ai - bi), nil
		case TokenStar:
			return core.IntValue(ai * bi), nil
		}
	}

	af, aNum := a.AsFloat()
	bf, bNum := b.AsFloat()
	if !aNum || !bNum {
		return core.Value{}, fmt.Errorf("%w: arithmetic on %s and %s", errOperand, a.Kind(), b.Kind())
	}
	switch op {
	case TokenPlus:
		return core.FloatValue(af + bf), nil
	case TokenMinus:
		return core.FloatValue(af - bf), nil
	case TokenStar:
		return core.FloatValue(af * bf), nil
	case TokenSlash:
		// Division by zero yields an infinity or NaN
		return core.FloatValue(af / bf), nil
	}
	return core.Value{}, fmt.Errorf("%w: unknown operator %s", errOperand, op)
}

func concatenable(v core.Value) bool {
	switch v.Kind() {
	case core.KindString, core.KindInt, core.KindFloat:
		return true
	default:
		return false
	}
}

func describe(v core.Value) string {
	if v.Kind() == core.KindString {
		return fmt.Sprintf("%q", v.String())
	}
	return v.String()
}
