package script

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/najoast/lproc/core"
)

type sent struct {
	channel string
	values  core.Values
}

// fakeHost records sends and answers receives from a queue.
type fakeHost struct {
	name    string
	sends   []sent
	inbox   map[string][]core.Values
	started []string
	sendErr error
}

func newFakeHost(name string) *fakeHost {
	return &fakeHost{name: name, inbox: make(map[string][]core.Values)}
}

func (h *fakeHost) Send(_ context.Context, channel string, values core.Values) error {
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sends = append(h.sends, sent{channel: channel, values: values})
	return nil
}

func (h *fakeHost) Receive(ctx context.Context, channel string) (core.Values, error) {
	queue := h.inbox[channel]
	if len(queue) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	h.inbox[channel] = queue[1:]
	return queue[0], nil
}

func (h *fakeHost) Start(program string) error {
	h.started = append(h.started, program)
	return nil
}

func (h *fakeHost) Self() string { return h.name }

func run(t *testing.T, host Host, text string) (string, error) {
	t.Helper()
	prog, err := Compile(text)
	require.NoError(t, err)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = NewInterp(host, &out).Run(ctx, prog)
	return out.String(), err
}

func TestLexerTokens(t *testing.T) {
	toks := NewLexer(`let x = -1.5 .. "a\n" # note
recv 'c' -> a, b; sleep 10ms != ==`).Tokenize()

	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	require.Equal(t, []TokenType{
		TokenIdentifier, TokenIdentifier, TokenAssign, TokenMinus, TokenFloat, TokenConcat, TokenString, TokenNewline,
		TokenIdentifier, TokenString, TokenArrow, TokenIdentifier, TokenComma, TokenIdentifier, TokenNewline,
		TokenIdentifier, TokenDuration, TokenNotEq, TokenEqual, TokenEOF,
	}, types)
	require.Equal(t, "a\n", toks[6].Literal)
	require.Equal(t, 2, toks[8].Pos.Line)
	require.Equal(t, "10ms", toks[16].Literal)
}

func TestCompileErrorsCarryLine(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"unknown statement", "let a = 1\nfrobnicate", 2},
		{"missing assign", "let a 1", 1},
		{"unterminated string", "print 1\nprint \"oops", 2},
		{"repeat without end", "repeat 2\n  print 1\n", 1},
		{"stray end", "print 1\nend", 2},
		{"reserved name", "let end = 1", 1},
		{"bad sleep", "sleep 10", 1},
		{"bad assert", "assert 1 + 2", 1},
		{"trailing tokens", "exit now", 1},
		{"bad escape", `print "\q"`, 1},
		{"nul byte between statements", "print 1\x00print 2\n", 1},
		{"nul byte on a later line", "print 1\nprint 2\x00\nprint 3", 2},
		{"backslash at end of input", `print "abc\`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.text)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrSyntax)

			var serr *Error
			require.True(t, errors.As(err, &serr))
			require.Equal(t, tt.line, serr.Line, err.Error())
		})
	}
}

func TestNulByteInsideString(t *testing.T) {
	out, err := run(t, newFakeHost("p"), "print \"a\x00b\"\nprint 2")
	require.NoError(t, err)
	require.Equal(t, "a\x00b\n2\n", out)
}

func TestCompileEmptyProgram(t *testing.T) {
	prog, err := Compile("\n# only a comment\n\n")
	require.NoError(t, err)
	require.Empty(t, prog.Stmts)
}

func TestPrintAndArithmetic(t *testing.T) {
	out, err := run(t, newFakeHost("p"), `
let a = 2 + 3 * 4
let b = (2 + 3) * 4
let c = 7 / 2
let d = -a + 1
print a, b, c, d
print "x" .. 1 .. 2.5
print true, false, nil
`)
	require.NoError(t, err)
	require.Equal(t, "14\t20\t3.5\t-13\nx12.5\ntrue\tfalse\tnil\n", out)
}

func TestSelfIsBound(t *testing.T) {
	out, err := run(t, newFakeHost("worker-7"), "print self")
	require.NoError(t, err)
	require.Equal(t, "worker-7\n", out)
}

func TestSendAndRecv(t *testing.T) {
	host := newFakeHost("p")
	host.inbox["pong"] = []core.Values{{core.StringValue("world"), core.IntValue(2)}}

	out, err := run(t, host, `
send "ping", "hello", 1, 2.5, true, nil
recv "pong" -> word, n, missing
print word, n, missing
send "empty"
`)
	require.NoError(t, err)
	require.Equal(t, "world\t2\tnil\n", out)

	require.Len(t, host.sends, 2)
	require.Equal(t, "ping", host.sends[0].channel)
	require.Equal(t, []string{"hello", "1", "2.5", "true", "nil"}, host.sends[0].values.Strings())
	require.Equal(t, "empty", host.sends[1].channel)
	require.Empty(t, host.sends[1].values)
}

func TestRepeat(t *testing.T) {
	host := newFakeHost("p")
	out, err := run(t, host, `
repeat 3 as i
  send "tick", i
  repeat 2
    print i
  end
end
repeat 0
  print "never"
end
`)
	require.NoError(t, err)
	require.Equal(t, "1\n1\n2\n2\n3\n3\n", out)
	require.Len(t, host.sends, 3)
	require.Equal(t, "3", host.sends[2].values[0].String())
}

func TestExitStopsProgram(t *testing.T) {
	out, err := run(t, newFakeHost("p"), "print 1\nexit\nprint 2")
	require.ErrorIs(t, err, ErrExit)
	require.Equal(t, "1\n", out)
}

func TestExitInsideRepeat(t *testing.T) {
	out, err := run(t, newFakeHost("p"), "repeat 5 as i\nprint i\nexit\nend")
	require.ErrorIs(t, err, ErrExit)
	require.Equal(t, "1\n", out)
}

func TestAssert(t *testing.T) {
	_, err := run(t, newFakeHost("p"), `assert 1 == 1.0; assert "a" != "b"`)
	require.NoError(t, err)

	_, err = run(t, newFakeHost("p"), "let x = 1\n\nassert x == 2")
	require.ErrorIs(t, err, ErrAssert)
	require.ErrorIs(t, err, ErrRuntime)

	var serr *Error
	require.True(t, errors.As(err, &serr))
	require.Equal(t, 3, serr.Line)
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"undefined variable", "print nope"},
		{"string arithmetic", `print "a" + 1`},
		{"concat nil", "print nil .. 1"},
		{"channel not string", "send 1, 2"},
		{"repeat not integer", "repeat 1.5\nend"},
		{"start not string", "start 3"},
		{"negate bool", "print -true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, newFakeHost("p"), tt.text)
			require.ErrorIs(t, err, ErrRuntime)
		})
	}
}

func TestHostErrorsAreWrapped(t *testing.T) {
	host := newFakeHost("p")
	host.sendErr = core.ErrInvalidProc

	_, err := run(t, host, `send "c", 1`)
	require.ErrorIs(t, err, ErrRuntime)
	require.ErrorIs(t, err, core.ErrInvalidProc)
}

func TestStart(t *testing.T) {
	host := newFakeHost("p")
	_, err := run(t, host, `let body = "print 1"; start body .. "; exit"`)
	require.NoError(t, err)
	require.Equal(t, []string{"print 1; exit"}, host.started)
}

func TestSleepHonoursContext(t *testing.T) {
	prog, err := Compile("sleep 1h")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = NewInterp(newFakeHost("p"), nil).Run(ctx, prog)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestInterpsDoNotShareVariables(t *testing.T) {
	prog, err := Compile("let counter = 1")
	require.NoError(t, err)

	a := NewInterp(newFakeHost("a"), nil)
	b := NewInterp(newFakeHost("b"), nil)
	require.NoError(t, a.Run(context.Background(), prog))

	_, ok := a.Get("counter")
	require.True(t, ok)
	_, ok = b.Get("counter")
	require.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	_, err := Compile("let a = 1\nlet = 2")
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "syntax error: line 2:"), err.Error())
}
