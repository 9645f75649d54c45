package token

type Type int

const (
	EOF Type = iota
	Println
	Unsigned
	Ident
	Assign
	Semi
	LParen
	RParen
	Plus
	Minus
	Star
	Error
	Slash
	LBrace
	RBrace
	String
	While
	If
	Else
	EqEq
	Gt
	Lt
	Gte
	Lte
	Int
	Return
	Def
	Void
	Cal
	And
	Or
	Comma
	End
)

var KeywordMap = map[string]Type{
	"println": Println,
	"while":   While,
	"if":      If,
	"int":     Int,
	"return":  Return,
	"def":     Def,
	"void":    Void,
	"cal":     Cal,
	"and":     And,
	"or":      Or,
	"else":    Else,
}

// Images used in "Expecting ..." diagnostics
var typeImages = map[Type]string{
	EOF:      "<EOF>",
	Println:  `"println"`,
	Unsigned: "<UNSIGNED>",
	Ident:    "<ID>",
	Assign:   `"="`,
	Semi:     `";"`,
	LParen:   `"("`,
	RParen:   `")"`,
	Plus:     `"+"`,
	Minus:    `"-"`,
	Star:     `"*"`,
	Error:    "<ERROR>",
	Slash:    `"/"`,
	LBrace:   `"{"`,
	RBrace:   `"}"`,
	String:   "<STRING>",
	While:    `"while"`,
	If:       `"if"`,
	Else:     `"else"`,
	EqEq:     `"=="`,
	Gt:       `">"`,
	Lt:       `"<"`,
	Gte:      `">="`,
	Lte:      `"<="`,
	Int:      `"int"`,
	Return:   `"return"`,
	Def:      `"def"`,
	Void:     `"void"`,
	Cal:      `"cal"`,
	And:      `"and"`,
	Or:       `"or"`,
	Comma:    `","`,
	End:      `"~"`,
}

func (t Type) String() string {
	if s, ok := typeImages[t]; ok {
		return s
	}
	return "<UNKNOWN>"
}

// IsRelational reports whether t is one of the comparison operators.
func (t Type) IsRelational() bool {
	switch t {
	case EqEq, Gt, Lt, Gte, Lte:
		return true
	}
	return false
}

// Token is a lexeme with its exact source image and its span.
// Lines and columns are 1-based; End* point at the last character.
type Token struct {
	Type      Type
	Value     string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// Len is the width of the token on its first line, used for caret underlines.
func (t Token) Len() int {
	if t.EndLine != t.Line {
		return len(t.Value)
	}
	if n := t.EndColumn - t.Column + 1; n > 0 {
		return n
	}
	return 0
}
