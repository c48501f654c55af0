// Package ast is the syntax tree of the EMPDAG statement language.
package ast

import (
	"github.com/xhub/reshop-sub001/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a top-level or loop-body statement.
type Statement interface {
	Node
	Accept(v Visitor)
	statementNode()
	// IsCompiled reports whether the statement has to go through the
	// compiler: it iterates over a set, tests a condition or aggregates.
	IsCompiled() bool
}

// Visitor dispatches on statement kinds.
type Visitor interface {
	VisitNodeDecl(n *NodeDecl)
	VisitNashDecl(n *NashDecl)
	VisitCCFDecl(n *CCFDecl)
	VisitOvfDecl(n *OvfDecl)
	VisitRootStmt(n *RootStmt)
	VisitLoopStmt(n *LoopStmt)
	VisitDefStmt(n *DefStmt)
	VisitLoadStmt(n *LoadStmt)
}

// Program is the root node of every AST our parser produces.
type Program struct {
	File       string // Source file path
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) GetToken() token.Token {
	if p == nil || len(p.Statements) == 0 {
		return token.Token{}
	}
	return p.Statements[0].GetToken()
}

// Keyword returns the leading reserved word of a statement, used as the
// context of diagnostics.
func Keyword(s Statement) string {
	if s == nil {
		return ""
	}
	tok := s.GetToken()
	if tok.Type.IsKeyword() {
		return token.KeywordText(tok.Type)
	}
	return tok.Lexeme
}
