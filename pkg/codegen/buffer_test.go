package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/mipsc/pkg/mips"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		line Line
		want string
	}{
		{Line{Kind: LineDirective, Text: "text"}, "\t.text"},
		{Line{Kind: LineLabel, Text: "main"}, "main:"},
		{Line{Kind: LineComment, Text: "println Statement"}, "#println Statement"},
		{Line{Kind: LineData, Op: "asciiz", Text: "Str0", Value: `"hi"`}, "Str0:\t.asciiz\t\"hi\""},
		{Line{Kind: LineInstr, Op: mips.OpSyscall}, "syscall"},
		{Line{Kind: LineInstr, Op: mips.OpJr, Args: []string{"$ra"}}, "jr\t$ra"},
		{Line{Kind: LineInstr, Op: mips.OpAdd, Args: []string{"$t2", "$t0", "$t1"}}, "add\t$t2,\t$t0,\t$t1"},
	}
	for _, tc := range tests {
		if got := FormatLine(tc.line); got != tc.want {
			t.Errorf("FormatLine(%+v) = %q; want %q", tc.line, got, tc.want)
		}
	}
}

func TestBufferQueries(t *testing.T) {
	b := NewBuffer()
	var s Sink = b
	s.Directive("text")
	s.Label("main")
	s.Instr(mips.OpLi, "$t0", "1")
	s.Comment("note")
	s.Instr(mips.OpLi, "$t1", "2")
	s.Instr(mips.OpAdd, "$t2", "$t0", "$t1")
	s.Label("exit")
	s.Directive("data")
	s.Data("Str0", "asciiz", `"x"`)

	if diff := cmp.Diff([]string{"main", "exit"}, b.Labels()); diff != "" {
		t.Errorf("Labels() (-want +got):\n%s", diff)
	}
	if got := len(b.Instructions()); got != 3 {
		t.Errorf("len(Instructions()) = %d; want 3", got)
	}
	if got := b.Count(mips.OpLi); got != 2 {
		t.Errorf("Count(li) = %d; want 2", got)
	}

	want := strings.Join([]string{
		"\t.text",
		"main:",
		"li\t$t0,\t1",
		"#note",
		"li\t$t1,\t2",
		"add\t$t2,\t$t0,\t$t1",
		"exit:",
		"\t.data",
		"Str0:\t.asciiz\t\"x\"",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("String() (-want +got):\n%s", diff)
	}
}
