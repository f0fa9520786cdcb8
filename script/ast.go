package script

import (
	"time"

	"github.com/najoast/lproc/core"
)

// Node is implemented by all AST nodes.
type Node interface {
	Pos() Position
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Program is a compiled program, ready to run any number of times.
type Program struct {
	Source string
	Stmts  []Stmt
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Literal is a constant value.
type Literal struct {
	At    Position
	Value core.Value
}

// VarRef reads a variable.
type VarRef struct {
	At   Position
	Name string
}

// Unary is a prefix operation. Only '-' exists.
type Unary struct {
	At Position
	Op TokenType
	X  Expr
}

// Binary is an infix operation.
type Binary struct {
	At    Position
	Op    TokenType
	Left  Expr
	Right Expr
}

func (n *Literal) Pos() Position { return n.At }
func (n *VarRef) Pos() Position  { return n.At }
func (n *Unary) Pos() Position   { return n.At }
func (n *Binary) Pos() Position  { return n.At }

func (*Literal) expr() {}
func (*VarRef) expr()  {}
func (*Unary) expr()   {}
func (*Binary) expr()  {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// LetStmt binds a variable: let NAME = EXPR
type LetStmt struct {
	At    Position
	Name  string
	Value Expr
}

// SendStmt offers values on a channel: send CHANNEL, EXPR...
type SendStmt struct {
	At      Position
	Channel Expr
	Args    []Expr
}

// RecvStmt waits for values on a channel: recv CHANNEL -> NAME...
type RecvStmt struct {
	At      Position
	Channel Expr
	Names   []string
}

// PrintStmt writes its arguments separated by tabs.
type PrintStmt struct {
	At   Position
	Args []Expr
}

// SleepStmt pauses the program.
type SleepStmt struct {
	At       Position
	Duration time.Duration
}

// StartStmt spawns a new process running the program text EXPR evaluates to.
type StartStmt struct {
	At      Position
	Program Expr
}

// RepeatStmt runs Body Count times. If As is set the 1-based iteration
// number is bound to it.
type RepeatStmt struct {
	At    Position
	Count Expr
	As    string
	Body  []Stmt
}

// AssertStmt compares two values with == or !=.
type AssertStmt struct {
	At    Position
	Op    TokenType
	Left  Expr
	Right Expr
}

// ExitStmt ends the process.
type ExitStmt struct {
	At Position
}

func (n *LetStmt) Pos() Position    { return n.At }
func (n *SendStmt) Pos() Position   { return n.At }
func (n *RecvStmt) Pos() Position   { return n.At }
func (n *PrintStmt) Pos() Position  { return n.At }
func (n *SleepStmt) Pos() Position  { return n.At }
func (n *StartStmt) Pos() Position  { return n.At }
func (n *RepeatStmt) Pos() Position { return n.At }
func (n *AssertStmt) Pos() Position { return n.At }
func (n *ExitStmt) Pos() Position   { return n.At }

func (*LetStmt) stmt()    {}
func (*SendStmt) stmt()   {}
func (*RecvStmt) stmt()   {}
func (*PrintStmt) stmt()  {}
func (*SleepStmt) stmt()  {}
func (*StartStmt) stmt()  {}
func (*RepeatStmt) stmt() {}
func (*AssertStmt) stmt() {}
func (*ExitStmt) stmt()   {}
