package vm

import "github.com/xhub/reshop-sub001/internal/token"

// Chunk is the bytecode of one top-level statement. Constants live in the
// session globals, shared by every chunk of the pass.
type Chunk struct {
	// Code is the bytecode instructions
	Code []byte

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int

	// Columns and Lexemes locate the token that produced each byte, when
	// the compiler recorded one.
	Columns []int
	Lexemes []string

	// File is the source file name
	File string

	// Keyword is the leading reserved word of the statement, used as the
	// context of runtime errors.
	Keyword string
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:    make([]byte, 0, 256),
		Lines:   make([]int, 0, 256),
		Columns: make([]int, 0, 256),
		Lexemes: make([]string, 0, 256),
	}
}

// Write adds a byte to the chunk with line info (column defaults to 0)
func (c *Chunk) Write(b byte, line int) {
	c.WriteAt(b, token.Token{Line: line})
}

// WriteAt adds a byte produced by tok.
func (c *Chunk) WriteAt(b byte, tok token.Token) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, tok.Line)
	c.Columns = append(c.Columns, tok.Column)
	c.Lexemes = append(c.Lexemes, tok.Lexeme)
}

// WriteOp writes an opcode to the chunk
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// WriteOpAt writes an opcode produced by tok.
func (c *Chunk) WriteOpAt(op Opcode, tok token.Token) {
	c.WriteAt(byte(op), tok)
}

// WriteShort writes a 2-byte big-endian operand.
func (c *Chunk) WriteShort(v int, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// ReadShort reads a 2-byte operand at offset
func (c *Chunk) ReadShort(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// ReadOffset reads a signed 2-byte jump offset at offset.
func (c *Chunk) ReadOffset(offset int) int {
	return int(int16(uint16(c.ReadShort(offset))))
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Line returns the source line of the instruction at offset, 0 when out
// of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// Pos returns the source position of the byte at offset: line, column and
// lexeme. The column is 0 when only the line was recorded.
func (c *Chunk) Pos(offset int) token.Token {
	if offset < 0 || offset >= len(c.Lines) {
		return token.Token{}
	}
	return token.Token{Line: c.Lines[offset], Column: c.Columns[offset], Lexeme: c.Lexemes[offset]}
}
