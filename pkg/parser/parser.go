package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xplshn/mipsc/pkg/codegen"
	"github.com/xplshn/mipsc/pkg/config"
	"github.com/xplshn/mipsc/pkg/lexer"
	"github.com/xplshn/mipsc/pkg/mips"
	"github.com/xplshn/mipsc/pkg/regalloc"
	"github.com/xplshn/mipsc/pkg/strpool"
	"github.com/xplshn/mipsc/pkg/symtab"
	"github.com/xplshn/mipsc/pkg/token"
	"github.com/xplshn/mipsc/pkg/util"
)

// Parser recognizes the grammar and emits assembly in the same pass. Expression
// rules hand their result back as a mips.Value.
type Parser struct {
	lx         *lexer.Lexer
	out        codegen.Sink
	cfg        *config.Config
	globals    *symtab.Global
	strings    *strpool.Pool
	current    token.Token
	labelCount int
	fn         *funcState
	calls      []callSite
}

// funcState is created fresh for every definition and dropped when it closes.
type funcState struct {
	table    *symtab.Func
	regs     *regalloc.Pools
	strFlags map[string]bool
	used     map[string]bool
	decls    []token.Token
}

type callSite struct {
	tok  token.Token
	args int
}

func newFuncState(name string) *funcState {
	return &funcState{
		table:    symtab.NewFunc(name),
		regs:     regalloc.New(),
		strFlags: make(map[string]bool),
		used:     make(map[string]bool),
	}
}

func NewParser(lx *lexer.Lexer, out codegen.Sink, cfg *config.Config) *Parser {
	return &Parser{
		lx:      lx,
		out:     out,
		cfg:     cfg,
		globals: symtab.NewGlobal(),
		strings: strpool.New(),
	}
}

// Parse translates the whole input. The first diagnostic stops the run and is
// returned as a *util.Diagnostic.
func (p *Parser) Parse() (err error) {
	defer func() {
		if r := recover(); r != nil {
			d, ok := r.(*util.Diagnostic)
			if !ok {
				panic(r)
			}
			err = d
		}
	}()
	p.advance()
	p.program()
	return nil
}

func (p *Parser) Globals() *symtab.Global { return p.globals }
func (p *Parser) Strings() *strpool.Pool  { return p.strings }

// Parser helpers
func (p *Parser) advance() {
	p.current = p.lx.Next()
	if p.current.Type == token.Error {
		if strings.HasPrefix(p.current.Value, `"`) {
			p.fail(util.KindMalformedToken, "Unterminated string literal")
		}
		p.fail(util.KindMalformedToken, "Unexpected character")
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type) {
	if p.check(tokType) {
		p.advance()
		return
	}
	p.fail(util.KindUnexpectedToken, "Expecting %s", tokType)
}

func (p *Parser) fail(kind util.Kind, format string, args ...interface{}) {
	panic(util.Errorf(kind, p.current, format, args...))
}

func (p *Parser) failAt(kind util.Kind, tok token.Token, format string, args ...interface{}) {
	panic(util.Errorf(kind, tok, format, args...))
}

func (p *Parser) newLabel() string {
	l := "L" + strconv.Itoa(p.labelCount)
	p.labelCount++
	return l
}

// Program structure
func (p *Parser) program() {
	p.out.Directive("text")
	p.emit(mips.OpMove, mips.FP, mips.SP)
	p.emit(mips.OpJal, "main")
	p.emit(mips.OpJ, "exit")

	for p.check(token.Def) {
		p.functionDefinition()
	}

	forcedEnd := p.check(token.End) && p.cfg.IsFeatureEnabled(config.FeatForceEnd)
	if !forcedEnd && !p.check(token.EOF) {
		p.fail(util.KindUnexpectedToken, "Expecting %s", token.EOF)
	}

	p.out.Label("exit")
	p.dataSegment()
	p.checkCalls()
}

var reservedLabel = regexp.MustCompile(`^(L|Str)[0-9]+$`)

func (p *Parser) functionDefinition() {
	p.expect(token.Def)
	p.expect(token.Void)
	nameTok := p.current
	p.expect(token.Ident)
	name := nameTok.Value

	if name == "exit" || reservedLabel.MatchString(name) {
		p.failAt(util.KindReservedName, nameTok, "Function name %q collides with a generated label", name)
	}

	fn := newFuncState(name)
	if err := p.globals.EnterFunc(name, fn.table); err != nil {
		p.failAt(util.KindDuplicateDefinition, nameTok, "Function %q has already been defined", name)
	}
	p.fn = fn
	p.out.Label(name)

	p.expect(token.LParen)
	p.parameterList()
	p.expect(token.RParen)
	p.prologue()

	p.expect(token.LBrace)
	p.localDeclarations()
	if returned := p.statementList(); !returned {
		p.epilogue()
	}
	p.expect(token.RBrace)

	p.warnUnused()
	p.fn = nil
}

func (p *Parser) parameterList() {
	if !p.check(token.Int) {
		return
	}
	for {
		p.expect(token.Int)
		tok := p.current
		p.expect(token.Ident)
		if p.fn.table.NumParams() >= regalloc.Argument.Capacity() {
			p.failAt(util.KindRegisterOverflow, tok, "Argument register overflow: at most %d parameters are supported", regalloc.Argument.Capacity())
		}
		if err := p.fn.table.ArgEnter(tok.Value); err != nil {
			p.failAt(util.KindAlreadyDefined, tok, "Error: %v", err)
		}
		if !p.match(token.Comma) {
			return
		}
	}
}

// localDeclarations collects every `int a, b;` line before the first
// statement and reserves their slots with a single stack adjustment.
func (p *Parser) localDeclarations() {
	for p.match(token.Int) {
		for {
			tok := p.current
			p.expect(token.Ident)
			if err := p.fn.table.VarEnter(tok.Value); err != nil {
				p.failAt(util.KindAlreadyDefined, tok, "Error: %v", err)
			}
			p.fn.decls = append(p.fn.decls, tok)
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.Semi)
	}
	if n := p.fn.table.NumLocals(); n > 0 {
		p.emit(mips.OpAddi, mips.SP, mips.SP, mips.Int(-symtab.WordSize*n))
	}
}

// Statements

// statementList parses statements up to a closing brace (or EOF) and reports
// whether the last one was a return.
func (p *Parser) statementList() bool {
	returned, warned := false, false
	for {
		switch p.current.Type {
		case token.Ident, token.While, token.Println, token.If, token.Cal, token.Return, token.LBrace:
			if returned && !warned {
				util.Warn(p.cfg, config.WarnUnreachableCode, p.current, "Statement is unreachable after 'return'")
				warned = true
			}
			returned = p.statement()
		case token.RBrace, token.EOF:
			return returned
		default:
			p.fail(util.KindUnexpectedToken, "Expecting statement or %s", token.EOF)
		}
	}
}

func (p *Parser) statement() bool {
	switch p.current.Type {
	case token.Ident:
		p.assignmentStatement()
	case token.Println:
		p.printlnStatement()
	case token.While:
		p.whileStatement()
	case token.LBrace:
		return p.compoundStatement()
	case token.If:
		p.ifStatement()
	case token.Return:
		p.returnStatement()
		return true
	case token.Cal:
		p.callStatement()
	default:
		p.fail(util.KindUnexpectedToken, "Expecting statement")
	}
	return false
}

func (p *Parser) assignmentStatement() {
	tok := p.current
	p.expect(token.Ident)
	p.globals.Enter(tok.Value)
	slot := p.slot(tok)

	p.expect(token.Assign)
	val := p.expr()
	reg := p.materialize(val)
	p.emit(mips.OpSw, reg, slot)
	p.setStringFlag(tok.Value, val)
	p.expect(token.Semi)
	p.fn.regs.Reset()
}

func (p *Parser) printlnStatement() {
	p.expect(token.Println)
	p.expect(token.LParen)
	p.annotate("println Statement")

	val := p.expr()
	code := mips.SysPrintInt
	if p.isString(val) {
		code = mips.SysPrintString
	}
	reg := p.materialize(val)
	p.emit(mips.OpMove, mips.A0, reg)
	p.emit(mips.OpLi, mips.V0, mips.Int(code))
	p.emit(mips.OpSyscall)

	p.expect(token.RParen)
	p.expect(token.Semi)
	p.fn.regs.Reset()
}

func (p *Parser) compoundStatement() bool {
	p.expect(token.LBrace)
	returned := p.statementList()
	p.expect(token.RBrace)
	return returned
}

func (p *Parser) whileStatement() {
	loop, exit := p.newLabel(), p.newLabel()
	p.out.Label(loop)
	p.expect(token.While)
	p.expect(token.LParen)
	p.branchIfZero(exit)
	p.expect(token.RParen)
	p.statement()
	p.emit(mips.OpJ, loop)
	p.out.Label(exit)
}

func (p *Parser) ifStatement() {
	elseLabel, exit := p.newLabel(), p.newLabel()
	p.expect(token.If)
	p.expect(token.LParen)
	p.branchIfZero(elseLabel)
	p.expect(token.RParen)
	p.statement()
	p.emit(mips.OpJ, exit)
	p.out.Label(elseLabel)
	if p.match(token.Else) {
		p.statement()
	}
	p.out.Label(exit)
}

// branchIfZero evaluates a condition and jumps to target when it is false. The
// condition register is dead once the branch is emitted.
func (p *Parser) branchIfZero(target string) {
	cond := p.materialize(p.expr())
	p.emit(mips.OpBeq, mips.Zero, cond, target)
	p.fn.regs.Reset()
}

func (p *Parser) returnStatement() {
	p.expect(token.Return)
	if !p.check(token.Semi) {
		if reg := p.materialize(p.expr()); reg != mips.V0 {
			p.emit(mips.OpMove, mips.V0, reg)
		}
	}
	p.expect(token.Semi)
	p.epilogue()
	p.fn.regs.Reset()
}

func (p *Parser) callStatement() {
	p.call()
	p.match(token.Semi)
	p.fn.regs.Reset()
}

// Expressions

// expr parses `additive [cmpOp additive]`. A comparison cannot be chained
// without parentheses.
func (p *Parser) expr() mips.Value {
	left := p.additive()
	if p.current.Type.IsRelational() {
		left = p.hold(left)
		opTok := p.current
		p.advance()
		right := p.additive()
		if p.current.Type.IsRelational() {
			p.fail(util.KindUnexpectedToken, "Chained comparison is not supported; parenthesize one side")
		}
		left = p.compare(opTok, left, right)
	}
	if p.check(token.And) || p.check(token.Or) {
		p.fail(util.KindUnsupported, "Boolean connective %q is not supported", p.current.Value)
	}
	return left
}

func (p *Parser) additive() mips.Value {
	left := p.term()
	for p.check(token.Plus) || p.check(token.Minus) {
		left = p.hold(left)
		opTok := p.current
		p.advance()
		right := p.term()
		p.warnStringArith(opTok, left, right)
		l, r := p.materialize(left), p.materialize(right)
		res := p.allocTemp()
		if opTok.Type == token.Plus {
			p.emit(mips.OpAdd, res, l, r)
		} else {
			p.emit(mips.OpSub, res, l, r)
		}
		left = res
	}
	return left
}

func (p *Parser) term() mips.Value {
	left := p.factor()
	for p.check(token.Star) || p.check(token.Slash) {
		left = p.hold(left)
		opTok := p.current
		p.advance()
		right := p.factor()
		p.warnStringArith(opTok, left, right)
		l, r := p.materialize(left), p.materialize(right)
		res := p.allocTemp()
		if opTok.Type == token.Star {
			p.emit(mips.OpMult, l, r)
		} else {
			p.emit(mips.OpDiv, l, r)
		}
		p.emit(mips.OpMflo, res)
		left = res
	}
	return left
}

func (p *Parser) factor() mips.Value {
	tok := p.current
	switch tok.Type {
	case token.Unsigned:
		p.advance()
		return p.immediate(tok, tok.Value, false)
	case token.Plus, token.Minus:
		p.advance()
		lit := p.current
		p.expect(token.Unsigned)
		return p.immediate(lit, lit.Value, tok.Type == token.Minus)
	case token.Ident:
		p.advance()
		p.globals.Enter(tok.Value)
		p.slot(tok)
		return mips.Variable{Name: tok.Value}
	case token.String:
		p.advance()
		return mips.StringLabel{Index: p.strings.Enter(tok.Value)}
	case token.LParen:
		p.advance()
		val := p.expr()
		p.expect(token.RParen)
		return val
	case token.Cal:
		return p.call()
	}
	p.fail(util.KindUnexpectedToken, "Expecting factor")
	return nil
}

func (p *Parser) immediate(tok token.Token, digits string, negative bool) mips.Value {
	magnitude, err := strconv.ParseUint(digits, 10, 63)
	if err != nil {
		p.failAt(util.KindMalformedToken, tok, "Integer constant %s is out of range", digits)
	}
	limit := uint64(1<<31 - 1)
	if negative {
		limit++
	}
	if magnitude > limit {
		util.Warn(p.cfg, config.WarnOverflow, tok, "Integer constant %s does not fit in a 32-bit word", digits)
	}
	v := int64(magnitude)
	if negative {
		v = -v
	}
	return mips.Immediate{Value: v}
}

// call evaluates every argument before touching $a0..$a3, so a call nested in
// a later argument cannot clobber one already loaded.
func (p *Parser) call() mips.Value {
	p.expect(token.Cal)
	nameTok := p.current
	p.expect(token.Ident)
	p.expect(token.LParen)

	var args []mips.Value
	var argToks []token.Token
	if !p.check(token.RParen) {
		for {
			argToks = append(argToks, p.current)
			arg := p.expr()
			if !p.match(token.Comma) {
				args = append(args, arg)
				break
			}
			args = append(args, p.hold(arg))
		}
	}
	p.expect(token.RParen)
	p.calls = append(p.calls, callSite{tok: nameTok, args: len(args)})

	p.annotate("call " + nameTok.Value)
	for i, arg := range args {
		reg, err := p.fn.regs.Alloc(regalloc.Argument)
		if err != nil {
			p.failAt(util.KindRegisterOverflow, argToks[i], "Argument register overflow: %v", err)
		}
		p.loadInto(reg, arg)
	}
	p.spillAndCall(nameTok.Value)
	return mips.V0
}

func (p *Parser) dataSegment() {
	p.out.Directive("data")
	for i := 0; i < p.strings.Size(); i++ {
		p.out.Data(strpool.Label(i), "asciiz", p.strings.ItemAt(i))
	}
}

// checkCalls runs once the whole program is known, so calls may precede the
// definition they refer to.
func (p *Parser) checkCalls() {
	for _, c := range p.calls {
		f, ok := p.globals.Func(c.tok.Value)
		if !ok {
			util.Warn(p.cfg, config.WarnImplicitDecl, c.tok, "Call to undefined function '%s'", c.tok.Value)
			continue
		}
		if f.NumParams() != c.args {
			util.Warn(p.cfg, config.WarnArgCount, c.tok, "'%s' takes %d argument(s) but is called with %d", c.tok.Value, f.NumParams(), c.args)
		}
	}
	if _, ok := p.globals.Func("main"); !ok {
		util.Warn(p.cfg, config.WarnImplicitDecl, token.Token{}, "No 'main' function defined")
	}
}

func (p *Parser) warnUnused() {
	for _, tok := range p.fn.decls {
		if !p.fn.used[tok.Value] {
			util.Warn(p.cfg, config.WarnUnused, tok, "Local '%s' is declared but never used", tok.Value)
		}
	}
}

func (p *Parser) warnStringArith(opTok token.Token, vals ...mips.Value) {
	for _, v := range vals {
		if p.isString(v) {
			util.Warn(p.cfg, config.WarnExtra, opTok, "Arithmetic on the address of a string")
			return
		}
	}
}
