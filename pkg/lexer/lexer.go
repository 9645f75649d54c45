package lexer

import (
	"strings"
	"unicode"

	"github.com/xplshn/mipsc/pkg/config"
	"github.com/xplshn/mipsc/pkg/token"
)

// Lexer turns source runes into tokens on demand. It never fails: anything it
// cannot classify comes back as a token.Error and the parser decides what to do.
type Lexer struct {
	source   []rune
	pos      int
	line     int
	column   int
	lastLine int
	lastCol  int
	done     bool
	cfg      *config.Config
}

func NewLexer(source []rune, cfg *config.Config) *Lexer {
	return &Lexer{source: source, line: 1, column: 1, cfg: cfg}
}

func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()
	startCol, startLine := l.column, l.line

	if l.isAtEnd() {
		l.done = true
		return token.Token{Type: token.EOF, Value: "<EOF>", Line: startLine, Column: startCol, EndLine: startLine, EndColumn: startCol}
	}

	ch := l.peek()
	if isLetter(ch) {
		return l.identifierOrKeyword(startCol, startLine)
	}
	if isDigit(ch) {
		return l.unsigned(startCol, startLine)
	}
	if ch == '"' {
		return l.stringLiteral(startCol, startLine)
	}

	l.advance()
	switch ch {
	case ';': return l.makeToken(token.Semi, ";", startCol, startLine)
	case '(': return l.makeToken(token.LParen, "(", startCol, startLine)
	case ')': return l.makeToken(token.RParen, ")", startCol, startLine)
	case '+': return l.makeToken(token.Plus, "+", startCol, startLine)
	case '-': return l.makeToken(token.Minus, "-", startCol, startLine)
	case '*': return l.makeToken(token.Star, "*", startCol, startLine)
	case '/': return l.makeToken(token.Slash, "/", startCol, startLine)
	case '{': return l.makeToken(token.LBrace, "{", startCol, startLine)
	case '}': return l.makeToken(token.RBrace, "}", startCol, startLine)
	case ',': return l.makeToken(token.Comma, ",", startCol, startLine)
	case '~': return l.makeToken(token.End, "~", startCol, startLine)
	case '=': return l.matchThen('=', token.EqEq, "==", token.Assign, "=", startCol, startLine)
	case '>': return l.matchThen('=', token.Gte, ">=", token.Gt, ">", startCol, startLine)
	case '<': return l.matchThen('=', token.Lte, "<=", token.Lt, "<", startCol, startLine)
	}
	return l.makeToken(token.Error, string(ch), startCol, startLine)
}

func isLetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	l.lastLine, l.lastCol = l.line, l.column
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.done || l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value,
		Line: startLine, Column: startCol,
		EndLine: l.lastLine, EndColumn: l.lastCol,
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.isAtEnd() {
		ch := l.peek()
		switch {
		case unicode.IsSpace(ch):
			l.advance()
		case ch == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatCComments):
			l.lineComment()
		default:
			return
		}
	}
}

// lineComment drops the rest of the physical line; the newline itself is left
// for skipWhitespaceAndComments so the comment acts like a line break.
func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startCol, startLine int) token.Token {
	start := l.pos
	for isLetter(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	value := string(l.source[start:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, value, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startCol, startLine)
}

func (l *Lexer) unsigned(startCol, startLine int) token.Token {
	start := l.pos
	for isDigit(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.Unsigned, string(l.source[start:l.pos]), startCol, startLine)
}

// stringLiteral keeps the image verbatim, quotes and escapes included. A quote
// ends the literal only when it is preceded by an even number of backslashes.
func (l *Lexer) stringLiteral(startCol, startLine int) token.Token {
	var sb strings.Builder
	sb.WriteRune(l.advance())
	backslashes := 0
	for !l.isAtEnd() {
		c := l.peek()
		switch {
		case c == '\n' || c == '\r':
			return l.makeToken(token.Error, sb.String(), startCol, startLine)
		case c == '"' && backslashes%2 == 0:
			sb.WriteRune(l.advance())
			return l.makeToken(token.String, sb.String(), startCol, startLine)
		case c == '\\':
			backslashes++
		default:
			backslashes = 0
		}
		sb.WriteRune(l.advance())
	}
	return l.makeToken(token.Error, sb.String(), startCol, startLine)
}

func (l *Lexer) matchThen(expected rune, thenType token.Type, thenImage string, elseType token.Type, elseImage string, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, thenImage, sCol, sLine)
	}
	return l.makeToken(elseType, elseImage, sCol, sLine)
}
