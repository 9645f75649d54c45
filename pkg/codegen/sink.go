package codegen

import (
	"github.com/xplshn/mipsc/pkg/mips"
)

// Sink is the interface the translator writes assembly through.
type Sink interface {
	// Directive emits a section directive such as ".text".
	Directive(name string)
	Label(name string)
	Instr(op mips.Op, args ...string)
	Comment(text string)
	// Data emits one labelled data directive, e.g. Str0: .asciiz "hi".
	Data(label, directive, value string)
}

type LineKind int

const (
	LineDirective LineKind = iota
	LineLabel
	LineInstr
	LineComment
	LineData
)

// Line is one emitted assembly line.
type Line struct {
	Kind  LineKind
	Op    mips.Op
	Args  []string
	Text  string
	Value string
}
