package script

import "fmt"

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenInteger    // 42
	TokenFloat      // 3.14
	TokenDuration   // 50ms, 1.5s
	TokenString     // "hello"
	TokenIdentifier // foo

	// Operators and delimiters
	TokenAssign // =
	TokenEqual  // ==
	TokenNotEq  // !=
	TokenArrow  // ->
	TokenComma  // ,
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenConcat // ..
	TokenLParen // (
	TokenRParen // )
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenDuration:   "DURATION",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenAssign:     "=",
	TokenEqual:      "==",
	TokenNotEq:      "!=",
	TokenArrow:      "->",
	TokenComma:      ",",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenConcat:     "..",
	TokenLParen:     "(",
	TokenRParen:     ")",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// Position is a location in program text.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Token is a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	if t.Type == TokenNewline {
		return "newline"
	}
	if t.Type == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Literal)
}
