package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/mipsc/pkg/cli"
	"github.com/xplshn/mipsc/pkg/codegen"
	"github.com/xplshn/mipsc/pkg/config"
	"github.com/xplshn/mipsc/pkg/lexer"
	"github.com/xplshn/mipsc/pkg/parser"
	"github.com/xplshn/mipsc/pkg/symtab"
	"github.com/xplshn/mipsc/pkg/token"
	"github.com/xplshn/mipsc/pkg/util"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the whole driver. It returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp("mipsc")
	app.Synopsis = "[options] <source>"
	app.Description = "Translates a small C-like language into MIPS32 assembly in a single pass."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/mipsc>"
	app.Since = 2025
	app.Stdout, app.Stderr = stdout, stderr

	var (
		outFile     string
		verbose     bool
		dumpSymbols bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> instead of <input>.a.", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Print each compilation stage.")
	fs.Bool(&dumpSymbols, "dump-symbols", "d", false, "Dump the symbol tables and exit without writing assembly.")

	cfg := config.NewConfig()
	cfg.SetupFlagGroups(fs)

	// Until a source is read, diagnostics are attributed to the program itself.
	util.SetSourceFile(&util.SourceFileRecord{Name: app.Name})
	util.WarnOutput = stderr

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			err := util.Errorf(util.KindInvalidInvocation, token.Token{}, "Wrong number cmd line args: expected exactly one source file, got %d", len(inputFiles))
			util.Report(stderr, err)
			return err
		}
		if err := cfg.ApplySwitches(fs); err != nil {
			util.Report(stderr, err)
			return err
		}
		cfg.Verbose = verbose

		source := inputFiles[0]
		if outFile == "" {
			outFile = cfg.OutputPath(source)
		}

		p, buf, err := compileFile(stdout, source, cfg)
		if err != nil {
			util.Report(stderr, err)
			return err
		}

		if dumpSymbols {
			dumpTables(stdout, p.Globals())
			return nil
		}

		logf(stdout, cfg, "Writing '%s'...\n", outFile)
		if err := writeOutput(outFile, buf); err != nil {
			util.Report(stderr, err)
			return err
		}
		logf(stdout, cfg, "Done!\n")
		return nil
	}

	if err := app.Run(args); err != nil {
		return 1
	}
	return 0
}

func logf(w io.Writer, cfg *config.Config, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(w, format, args...)
	}
}

func compileFile(w io.Writer, path string, cfg *config.Config) (*parser.Parser, *codegen.Buffer, error) {
	logf(w, cfg, "Reading '%s'...\n", path)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, util.Errorf(util.KindIO, token.Token{}, "could not read file '%s': %v", path, err)
	}
	runes := []rune(string(content))
	util.SetSourceFile(&util.SourceFileRecord{Name: path, Content: runes})

	logf(w, cfg, "Translating to MIPS assembly...\n")
	buf := codegen.NewBuffer()
	p := parser.NewParser(lexer.NewLexer(runes, cfg), buf, cfg)
	if err := p.Parse(); err != nil {
		return nil, nil, err
	}
	logf(w, cfg, "Emitted %d instructions, %d string literal(s).\n", len(buf.Instructions()), p.Strings().Size())
	return p, buf, nil
}

// writeOutput only creates the file once translation has fully succeeded.
func writeOutput(path string, buf *codegen.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return util.Errorf(util.KindIO, token.Token{}, "could not create '%s': %v", path, err)
	}
	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return util.Errorf(util.KindIO, token.Token{}, "could not write '%s': %v", path, err)
	}
	if err := f.Close(); err != nil {
		return util.Errorf(util.KindIO, token.Token{}, "could not write '%s': %v", path, err)
	}
	return nil
}

func dumpTables(w io.Writer, g *symtab.Global) {
	fmt.Fprintf(w, "Symbols (%d): %s\n", g.Len(), strings.Join(g.Symbols(), ", "))
	for _, f := range g.Funcs() {
		fmt.Fprintf(w, "func %s\n", f.Name)
		fmt.Fprintf(w, "    params: %s\n", strings.Join(f.Params(), ", "))
		fmt.Fprintf(w, "    locals: %s\n", strings.Join(f.Locals(), ", "))
		fmt.Fprintf(w, "    frame:  %d bytes\n", f.Space())
	}
}
