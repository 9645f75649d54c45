package symtab

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyDefined      = errors.New("is already defined")
	ErrDuplicateDefinition = errors.New("has already been defined")
)

// WordSize is the size in bytes of every frame slot.
const WordSize = 4

// Global records every name the program mentions, in first-seen order, and the
// table of each defined function.
type Global struct {
	names []string
	seen  map[string]bool
	funcs map[string]*Func
	order []string
}

func NewGlobal() *Global {
	return &Global{
		seen:  make(map[string]bool),
		funcs: make(map[string]*Func),
	}
}

// Enter adds name if it has not been seen yet.
func (g *Global) Enter(name string) {
	if g.seen[name] {
		return
	}
	g.seen[name] = true
	g.names = append(g.names, name)
}

// EnterFunc registers the table of a newly defined function.
func (g *Global) EnterFunc(name string, f *Func) error {
	if _, ok := g.funcs[name]; ok {
		return fmt.Errorf("function %q %w", name, ErrDuplicateDefinition)
	}
	g.funcs[name] = f
	g.order = append(g.order, name)
	return nil
}

func (g *Global) Func(name string) (*Func, bool) {
	f, ok := g.funcs[name]
	return f, ok
}

// Funcs returns the function tables in definition order.
func (g *Global) Funcs() []*Func {
	out := make([]*Func, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.funcs[name])
	}
	return out
}

func (g *Global) Len() int { return len(g.names) }

// Symbols returns a copy of the global names in first-seen order.
func (g *Global) Symbols() []string { return append([]string(nil), g.names...) }

// Func is the symbol table of one function definition. Parameters and locals
// keep their declaration order; a name lives in at most one of the two lists.
type Func struct {
	Name   string
	params []string
	locals []string
}

func NewFunc(name string) *Func { return &Func{Name: name} }

func (f *Func) defined(name string) bool {
	return f.ArgLocate(name) >= 0 || f.VarLocate(name) >= 0
}

func (f *Func) ArgEnter(name string) error {
	if f.defined(name) {
		return fmt.Errorf("%s %w", name, ErrAlreadyDefined)
	}
	f.params = append(f.params, name)
	return nil
}

func (f *Func) VarEnter(name string) error {
	if f.defined(name) {
		return fmt.Errorf("%s %w", name, ErrAlreadyDefined)
	}
	f.locals = append(f.locals, name)
	return nil
}

// ArgLocate returns the 0-based position of a parameter or -1.
func (f *Func) ArgLocate(name string) int { return indexOf(f.params, name) }

// VarLocate returns the 0-based position of a local or -1.
func (f *Func) VarLocate(name string) int { return indexOf(f.locals, name) }

func (f *Func) NumParams() int   { return len(f.params) }
func (f *Func) NumLocals() int   { return len(f.locals) }
func (f *Func) Params() []string { return append([]string(nil), f.params...) }
func (f *Func) Locals() []string { return append([]string(nil), f.locals...) }

// Space is the whole activation record: saved $ra and $fp, parameters and locals.
func (f *Func) Space() int {
	return WordSize * (2 + len(f.params) + len(f.locals))
}

// ParamOffset is the $fp-relative offset of parameter i. Arguments are stored
// in reverse declaration order, the first one highest.
func (f *Func) ParamOffset(i int) int {
	return WordSize*(len(f.params)+1) - WordSize*i
}

// LocalOffset is the $sp-relative offset of local i once every local is reserved.
func (f *Func) LocalOffset(i int) int {
	return WordSize*(len(f.locals)-1) - WordSize*i
}

func indexOf(list []string, name string) int {
	for i, s := range list {
		if s == name {
			return i
		}
	}
	return -1
}
