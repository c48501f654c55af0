// Package token defines the lexemes of the EMPDAG statement language.
package token

type TokenType string

type Token struct {
	Type    TokenType
	Lexeme  string      // source text of the token
	Literal interface{} // string, float64, or symbols.Symbol for dictionary hits
	Line    int
	Column  int
}

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	// Identifiers and literals
	IDENT  TokenType = "IDENT"
	NUMBER TokenType = "NUMBER"
	STRING TokenType = "STRING" // quoted element label

	// Identifiers classified by the symbol dictionary
	SYM_VAR   TokenType = "SYM_VAR"
	SYM_EQU   TokenType = "SYM_EQU"
	SYM_SET   TokenType = "SYM_SET"
	SYM_PARAM TokenType = "SYM_PARAM"

	// Delimiters and operators
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	COMMA     TokenType = ","
	COLON     TokenType = ":"
	SEMICOLON TokenType = ";"
	DOT       TokenType = "."
	DOLLAR    TokenType = "$"
	ASSIGN    TokenType = "="
	PLUS      TokenType = "+"
	MINUS     TokenType = "-"
	ASTERISK  TokenType = "*"

	// Node kinds
	MIN         TokenType = "MIN"
	MAX         TokenType = "MAX"
	VI          TokenType = "VI"
	FEASIBILITY TokenType = "FEASIBILITY"
	NASH        TokenType = "NASH"
	CCF         TokenType = "CCF"
	OVF         TokenType = "OVF"

	// Structure
	ROOT TokenType = "ROOT"
	LOOP TokenType = "LOOP"
	SUM  TokenType = "SUM"
	DEF  TokenType = "DEF"
	LOAD TokenType = "LOAD"
	DUAL TokenType = "DUAL"

	// Label members
	VALFN TokenType = "VALFN"
	OBJFN TokenType = "OBJFN"

	// Boolean set logic
	AND    TokenType = "AND"
	OR     TokenType = "OR"
	NOT    TokenType = "NOT"
	SAMEAS TokenType = "SAMEAS"

	// Dual operator options
	FENCHEL TokenType = "FENCHEL"
	EPI     TokenType = "EPI"
	DEFAULT TokenType = "DEFAULT"
	LARGEST TokenType = "LARGEST"

	// LEGACY marks a reserved word of the historical EMP info syntax that
	// this language does not accept.
	LEGACY TokenType = "LEGACY"
)

// IsSymbol reports whether t was classified by the symbol dictionary.
func (t TokenType) IsSymbol() bool {
	switch t {
	case SYM_VAR, SYM_EQU, SYM_SET, SYM_PARAM:
		return true
	}
	return false
}

// IsNodeKind reports whether t starts a node declaration.
func (t TokenType) IsNodeKind() bool {
	switch t {
	case MIN, MAX, VI, FEASIBILITY, NASH, CCF:
		return true
	}
	return false
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	_, ok := keywordNames[t]
	return ok || t == LEGACY
}

// Text returns the lexeme, or the token type when the lexeme is empty.
func (t Token) Text() string {
	if t.Lexeme != "" {
		return t.Lexeme
	}
	return string(t.Type)
}
