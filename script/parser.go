package script

import (
	"strconv"
	"time"

	"github.com/najoast/lproc/core"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over the token stream
// ---------------------------------------------------------------------------

var keywords = map[string]bool{
	"let":     true,
	"send":    true,
	"recv":    true,
	"receive": true,
	"print":   true,
	"sleep":   true,
	"start":   true,
	"repeat":  true,
	"as":      true,
	"end":     true,
	"assert":  true,
	"exit":    true,
	"true":    true,
	"false":   true,
	"nil":     true,
}

// Parser turns program text into a Program. It stops at the first error.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	err       error
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

// Compile parses program text. The returned error wraps ErrSyntax and
// names the offending line.
func Compile(text string) (*Program, error) {
	p := NewParser(text)
	prog := &Program{Source: text}
	prog.Stmts = p.parseBlock(false)
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	// Lexical errors surface through failed() once they become current
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) curKeyword(kw string) bool {
	return p.curToken.Type == TokenIdentifier && p.curToken.Literal == kw
}

func (p *Parser) fail(pos Position, format string, args ...any) {
	if p.err == nil {
		p.err = syntaxErrorf(pos, format, args...)
	}
}

func (p *Parser) failed() bool {
	if p.err == nil && p.curTokenIs(TokenError) {
		p.fail(p.curToken.Pos, "%s", p.curToken.Literal)
	}
	return p.err != nil
}

func (p *Parser) expect(t TokenType) bool {
	if p.failed() {
		return false
	}
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail(p.curToken.Pos, "expected %s, got %s", t, p.curToken)
	return false
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// endOfStatement consumes the newline (or EOF) that terminates a statement.
func (p *Parser) endOfStatement() {
	if p.failed() {
		return
	}
	switch p.curToken.Type {
	case TokenNewline:
		p.nextToken()
	case TokenEOF:
	default:
		p.fail(p.curToken.Pos, "unexpected %s after statement", p.curToken)
	}
}

// parseBlock parses statements until EOF or, inside repeat, until end.
func (p *Parser) parseBlock(nested bool) []Stmt {
	var stmts []Stmt
	for {
		p.skipNewlines()
		if p.failed() {
			return nil
		}
		if p.curTokenIs(TokenEOF) {
			return stmts
		}
		if p.curKeyword("end") {
			if nested {
				return stmts
			}
			p.fail(p.curToken.Pos, "end without repeat")
			return nil
		}
		stmt := p.parseStatement()
		if p.failed() {
			return nil
		}
		stmts = append(stmts, stmt)
		p.endOfStatement()
	}
}

func (p *Parser) parseStatement() Stmt {
	tok := p.curToken
	if tok.Type != TokenIdentifier {
		p.fail(tok.Pos, "expected statement, got %s", tok)
		return nil
	}

	switch tok.Literal {
	case "let":
		return p.parseLet()
	case "send":
		return p.parseSend()
	case "recv", "receive":
		return p.parseRecv()
	case "print":
		p.nextToken()
		return &PrintStmt{At: tok.Pos, Args: p.parseExprList()}
	case "sleep":
		return p.parseSleep()
	case "start":
		p.nextToken()
		return &StartStmt{At: tok.Pos, Program: p.parseExpr()}
	case "repeat":
		return p.parseRepeat()
	case "assert":
		return p.parseAssert()
	case "exit":
		p.nextToken()
		return &ExitStmt{At: tok.Pos}
	default:
		p.fail(tok.Pos, "unknown statement %q", tok.Literal)
		return nil
	}
}

func (p *Parser) parseLet() Stmt {
	at := p.curToken.Pos
	p.nextToken()
	name := p.parseName()
	if !p.expect(TokenAssign) {
		return nil
	}
	return &LetStmt{At: at, Name: name, Value: p.parseExpr()}
}

func (p *Parser) parseSend() Stmt {
	at := p.curToken.Pos
	p.nextToken()
	stmt := &SendStmt{At: at, Channel: p.parseExpr()}
	if p.curTokenIs(TokenComma) {
		p.nextToken()
		stmt.Args = p.parseExprList()
		if len(stmt.Args) == 0 {
			p.fail(p.curToken.Pos, "expected value after ','")
		}
	}
	return stmt
}

func (p *Parser) parseRecv() Stmt {
	at := p.curToken.Pos
	p.nextToken()
	stmt := &RecvStmt{At: at, Channel: p.parseExpr()}
	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		stmt.Names = append(stmt.Names, p.parseName())
		for p.curTokenIs(TokenComma) {
			p.nextToken()
			stmt.Names = append(stmt.Names, p.parseName())
		}
	}
	return stmt
}

func (p *Parser) parseSleep() Stmt {
	at := p.curToken.Pos
	p.nextToken()
	tok := p.curToken
	if p.failed() {
		return nil
	}
	if tok.Type != TokenDuration {
		p.fail(tok.Pos, "sleep needs a duration such as 10ms, got %s", tok)
		return nil
	}
	d, err := time.ParseDuration(tok.Literal)
	if err != nil {
		p.fail(tok.Pos, "invalid duration %q", tok.Literal)
		return nil
	}
	if d < 0 {
		p.fail(tok.Pos, "negative duration %q", tok.Literal)
		return nil
	}
	p.nextToken()
	return &SleepStmt{At: at, Duration: d}
}

func (p *Parser) parseRepeat() Stmt {
	at := p.curToken.Pos
	p.nextToken()
	stmt := &RepeatStmt{At: at, Count: p.parseExpr()}
	if p.curKeyword("as") {
		p.nextToken()
		stmt.As = p.parseName()
	}
	if p.failed() {
		return nil
	}
	if !p.curTokenIs(TokenNewline) {
		p.fail(p.curToken.Pos, "expected newline after repeat, got %s", p.curToken)
		return nil
	}
	stmt.Body = p.parseBlock(true)
	if p.failed() {
		return nil
	}
	if !p.curKeyword("end") {
		p.fail(at, "repeat without end")
		return nil
	}
	p.nextToken()
	return stmt
}

func (p *Parser) parseAssert() Stmt {
	at := p.curToken.Pos
	p.nextToken()
	left := p.parseExpr()
	if p.failed() {
		return nil
	}
	op := p.curToken.Type
	if op != TokenEqual && op != TokenNotEq {
		p.fail(p.curToken.Pos, "assert needs == or !=, got %s", p.curToken)
		return nil
	}
	p.nextToken()
	return &AssertStmt{At: at, Op: op, Left: left, Right: p.parseExpr()}
}

func (p *Parser) parseName() string {
	tok := p.curToken
	if p.failed() {
		return ""
	}
	if tok.Type != TokenIdentifier {
		p.fail(tok.Pos, "expected name, got %s", tok)
		return ""
	}
	if keywords[tok.Literal] {
		p.fail(tok.Pos, "%q is a reserved word", tok.Literal)
		return ""
	}
	p.nextToken()
	return tok.Literal
}

// parseExprList parses zero or more comma separated expressions.
func (p *Parser) parseExprList() []Expr {
	if p.curTokenIs(TokenNewline) || p.curTokenIs(TokenEOF) {
		return nil
	}
	exprs := []Expr{p.parseExpr()}
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		exprs = append(exprs, p.parseExpr())
	}
	return exprs
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first:
//   ..        (right associative)
//   + -
//   * /
//   unary -
// ---------------------------------------------------------------------------

func (p *Parser) parseExpr() Expr {
	return p.parseConcat()
}

func (p *Parser) parseConcat() Expr {
	left := p.parseAdditive()
	if p.curTokenIs(TokenConcat) {
		at := p.curToken.Pos
		p.nextToken()
		return &Binary{At: at, Op: TokenConcat, Left: left, Right: p.parseConcat()}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus) {
		tok := p.curToken
		p.nextToken()
		left = &Binary{At: tok.Pos, Op: tok.Type, Left: left, Right: p.parseMultiplicative()}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) {
		tok := p.curToken
		p.nextToken()
		left = &Binary{At: tok.Pos, Op: tok.Type, Left: left, Right: p.parseUnary()}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenMinus) {
		tok := p.curToken
		p.nextToken()
		return &Unary{At: tok.Pos, Op: TokenMinus, X: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	if p.failed() {
		return &Literal{At: tok.Pos}
	}

	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.fail(tok.Pos, "integer %s out of range", tok.Literal)
		}
		return &Literal{At: tok.Pos, Value: core.IntValue(n)}
	case TokenFloat:
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail(tok.Pos, "invalid number %s", tok.Literal)
		}
		return &Literal{At: tok.Pos, Value: core.FloatValue(f)}
	case TokenString:
		p.nextToken()
		return &Literal{At: tok.Pos, Value: core.StringValue(tok.Literal)}
	case TokenLParen:
		p.nextToken()
		e := p.parseExpr()
		p.expect(TokenRParen)
		return e
	case TokenIdentifier:
		p.nextToken()
		switch tok.Literal {
		case "true":
			return &Literal{At: tok.Pos, Value: core.BoolValue(true)}
		case "false":
			return &Literal{At: tok.Pos, Value: core.BoolValue(false)}
		case "nil":
			return &Literal{At: tok.Pos, Value: core.NilValue()}
		}
		if keywords[tok.Literal] {
			p.fail(tok.Pos, "unexpected %q in expression", tok.Literal)
		}
		return &VarRef{At: tok.Pos, Name: tok.Literal}
	default:
		p.fail(tok.Pos, "expected expression, got %s", tok)
		return &Literal{At: tok.Pos}
	}
}
