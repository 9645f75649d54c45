package codegen

import (
	"bytes"
	"io"
	"strings"

	"github.com/xplshn/mipsc/pkg/mips"
)

// Buffer is a Sink that keeps every line in memory. Nothing reaches a file
// until the whole translation has succeeded.
type Buffer struct {
	Lines []Line
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) Directive(name string) {
	b.Lines = append(b.Lines, Line{Kind: LineDirective, Text: name})
}

func (b *Buffer) Label(name string) {
	b.Lines = append(b.Lines, Line{Kind: LineLabel, Text: name})
}

func (b *Buffer) Instr(op mips.Op, args ...string) {
	b.Lines = append(b.Lines, Line{Kind: LineInstr, Op: op, Args: args})
}

func (b *Buffer) Comment(text string) {
	b.Lines = append(b.Lines, Line{Kind: LineComment, Text: text})
}

func (b *Buffer) Data(label, directive, value string) {
	b.Lines = append(b.Lines, Line{Kind: LineData, Op: mips.Op(directive), Text: label, Value: value})
}

// Instructions returns only the instruction lines, in emission order.
func (b *Buffer) Instructions() []Line {
	var out []Line
	for _, l := range b.Lines {
		if l.Kind == LineInstr {
			out = append(out, l)
		}
	}
	return out
}

// Labels returns every code label, in emission order.
func (b *Buffer) Labels() []string {
	var out []string
	for _, l := range b.Lines {
		if l.Kind == LineLabel {
			out = append(out, l.Text)
		}
	}
	return out
}

// Count is the number of instructions using op.
func (b *Buffer) Count(op mips.Op) int {
	n := 0
	for _, l := range b.Lines {
		if l.Kind == LineInstr && l.Op == op {
			n++
		}
	}
	return n
}

func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, l := range b.Lines {
		buf.WriteString(FormatLine(l))
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

func (b *Buffer) String() string {
	var sb strings.Builder
	b.WriteTo(&sb)
	return sb.String()
}

// FormatLine renders l the way the assembler expects it: tab after the
// mnemonic, arguments separated by ",\t".
func FormatLine(l Line) string {
	switch l.Kind {
	case LineDirective:
		return "\t." + l.Text
	case LineLabel:
		return l.Text + ":"
	case LineComment:
		return "#" + l.Text
	case LineData:
		return l.Text + ":\t." + string(l.Op) + "\t" + l.Value
	}
	if len(l.Args) == 0 {
		return string(l.Op)
	}
	return string(l.Op) + "\t" + strings.Join(l.Args, ",\t")
}
