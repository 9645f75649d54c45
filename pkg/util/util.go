package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/mipsc/pkg/config"
	"github.com/xplshn/mipsc/pkg/token"
)

// Kind classifies a Diagnostic. Every failure of a compilation run carries one.
type Kind int

const (
	KindUnexpectedToken Kind = iota
	KindMalformedToken
	KindDuplicateDefinition
	KindAlreadyDefined
	KindUndefinedVariable
	KindRegisterOverflow
	KindUnsupported
	KindReservedName
	KindInvalidInvocation
	KindIO
)

var kindNames = map[Kind]string{
	KindUnexpectedToken:     "unexpected token",
	KindMalformedToken:      "malformed token",
	KindDuplicateDefinition: "duplicate definition",
	KindAlreadyDefined:      "already defined",
	KindUndefinedVariable:   "undefined variable",
	KindRegisterOverflow:    "register overflow",
	KindUnsupported:         "unsupported",
	KindReservedName:        "reserved name",
	KindInvalidInvocation:   "invalid invocation",
	KindIO:                  "i/o",
}

func (k Kind) String() string { return kindNames[k] }

// Diagnostic is the single fatal error kind of the compiler.
type Diagnostic struct {
	Kind  Kind
	Token token.Token
	Msg   string
}

func (d *Diagnostic) Error() string {
	if d.Token.Line == 0 {
		return d.Msg
	}
	return fmt.Sprintf("Encountered %q on line %d, column %d. %s", d.Token.Value, d.Token.Line, d.Token.Column, d.Msg)
}

// Errorf builds a Diagnostic anchored at tok.
func Errorf(kind Kind, tok token.Token, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Token: tok, Msg: fmt.Sprintf(format, args...)}
}

// SourceFileRecord tracks the name and content of the file being compiled.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFile *SourceFileRecord

// SetSourceFile stores the source code for rich error messages
func SetSourceFile(rec *SourceFileRecord) {
	sourceFile = rec
}

func fileName() string {
	if sourceFile == nil {
		return "unknown"
	}
	return sourceFile.Name
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, tok token.Token) {
	if sourceFile == nil || tok.Line == 0 {
		return
	}

	content := sourceFile.Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' || content[i] == '\r' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	col := tok.Column
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", col-1))
	if n := tok.Len(); n > 1 {
		fmt.Fprintf(w, "%s", strings.Repeat("~", n-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// Report prints err to w. Diagnostics get a location prefix and the
// offending source line; other errors are printed as they are.
func Report(w io.Writer, err error) {
	d, ok := err.(*Diagnostic)
	if !ok {
		fmt.Fprintf(w, "%s: \033[31merror:\033[0m %v\n", fileName(), err)
		return
	}
	if d.Token.Line == 0 {
		fmt.Fprintf(w, "%s: \033[31merror:\033[0m %s\n", fileName(), d.Msg)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: \033[31merror:\033[0m %s (near %q)\n", fileName(), d.Token.Line, d.Token.Column, d.Msg, d.Token.Value)
	printErrorLine(w, d.Token)
}

// Warnings are written here; tests swap it out.
var WarnOutput io.Writer = os.Stderr

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	warningName := cfg.Warnings[wt].Name
	if tok.Line == 0 {
		fmt.Fprintf(WarnOutput, "%s: \033[33mwarning:\033[0m ", fileName())
	} else {
		fmt.Fprintf(WarnOutput, "%s:%d:%d: \033[33mwarning:\033[0m ", fileName(), tok.Line, tok.Column)
	}
	fmt.Fprintf(WarnOutput, format, args...)
	fmt.Fprintf(WarnOutput, " [-W%s]\n", warningName)
	printErrorLine(WarnOutput, tok)
}
