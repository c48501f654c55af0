package lexer

import "github.com/xhub/reshop-sub001/internal/token"

// TokenStream reads tokens lazily so that a load statement can change how
// the identifiers after it are classified.
type TokenStream struct {
	lexer *Lexer
	buf   []token.Token
	done  bool
}

func NewTokenStream(l *Lexer) *TokenStream {
	return &TokenStream{lexer: l}
}

func (s *TokenStream) fill(n int) {
	for len(s.buf) < n && !s.done {
		tok := s.lexer.NextToken()
		s.buf = append(s.buf, tok)
		if tok.Type == token.EOF {
			s.done = true
		}
	}
}

// Next consumes one token. After the end of input it keeps returning EOF.
func (s *TokenStream) Next() token.Token {
	s.fill(1)
	if len(s.buf) == 0 {
		return token.Token{Type: token.EOF, Line: s.lexer.line, Column: s.lexer.column}
	}
	tok := s.buf[0]
	if tok.Type == token.EOF {
		return tok
	}
	s.buf = s.buf[1:]
	return tok
}

// Peek returns up to n upcoming tokens without consuming them. The result
// is shorter than n only when the input ends first; its last token is EOF.
func (s *TokenStream) Peek(n int) []token.Token {
	s.fill(n)
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := make([]token.Token, n)
	copy(out, s.buf[:n])
	return out
}

// Reclassify looks up the buffered identifiers again.
func (s *TokenStream) Reclassify() {
	for i, tok := range s.buf {
		s.buf[i] = Classify(tok, s.lexer.dict)
	}
}

// Classify exposes the stream's dictionary to the parser, which has to
// reclassify the token it already holds.
func (s *TokenStream) Classify(tok token.Token) token.Token {
	return Classify(tok, s.lexer.dict)
}
