package parser

import (
	"fmt"

	"github.com/xplshn/mipsc/pkg/config"
	"github.com/xplshn/mipsc/pkg/mips"
	"github.com/xplshn/mipsc/pkg/regalloc"
	"github.com/xplshn/mipsc/pkg/symtab"
	"github.com/xplshn/mipsc/pkg/token"
	"github.com/xplshn/mipsc/pkg/util"
)

func (p *Parser) emit(op mips.Op, args ...interface{}) {
	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = fmt.Sprint(a)
	}
	p.out.Instr(op, strs...)
}

func (p *Parser) annotate(text string) {
	if p.cfg.IsFeatureEnabled(config.FeatAnnotate) {
		p.out.Comment(text)
	}
}

func (p *Parser) allocTemp() mips.Register {
	reg, err := p.fn.regs.Alloc(regalloc.Temporary)
	if err != nil {
		p.fail(util.KindRegisterOverflow, "Temporary register overflow: %v", err)
	}
	return reg
}

func (p *Parser) allocSaved() mips.Register {
	reg, err := p.fn.regs.Alloc(regalloc.Saved)
	if err != nil {
		p.fail(util.KindRegisterOverflow, "Saved register overflow: %v", err)
	}
	return reg
}

// locate maps a parameter or local to its frame slot. Parameters sit above $fp,
// locals are addressed from $sp.
func (p *Parser) locate(name string) (string, bool) {
	t := p.fn.table
	if i := t.ArgLocate(name); i >= 0 {
		return mips.Mem(t.ParamOffset(i), mips.FP), true
	}
	if i := t.VarLocate(name); i >= 0 {
		return mips.Mem(t.LocalOffset(i), mips.SP), true
	}
	return "", false
}

func (p *Parser) slot(tok token.Token) string {
	s, ok := p.locate(tok.Value)
	if !ok {
		p.failAt(util.KindUndefinedVariable, tok, "%s not defined", tok.Value)
	}
	p.fn.used[tok.Value] = true
	return s
}

// loadInto places val in reg without going through a temporary.
func (p *Parser) loadInto(reg mips.Register, val mips.Value) {
	switch v := val.(type) {
	case mips.Register:
		p.emit(mips.OpMove, reg, v)
	case mips.Immediate:
		p.emit(mips.OpLi, reg, v)
	case mips.StringLabel:
		p.emit(mips.OpLa, reg, v)
	case mips.Variable:
		s, _ := p.locate(v.Name)
		p.emit(mips.OpLw, reg, s)
	default:
		panic(fmt.Sprintf("unhandled value %T", val))
	}
}

// materialize returns a register holding val, loading it into a fresh
// temporary unless it already is one.
func (p *Parser) materialize(val mips.Value) mips.Register {
	if r, ok := val.(mips.Register); ok {
		return r
	}
	reg := p.allocTemp()
	p.loadInto(reg, val)
	return reg
}

// hold copies a call result out of $v0 before another operand is parsed. The
// copy is an ordinary temporary, so a later call spills and restores it.
func (p *Parser) hold(val mips.Value) mips.Value {
	if r, ok := val.(mips.Register); !ok || r != mips.V0 {
		return val
	}
	reg := p.allocTemp()
	p.emit(mips.OpMove, reg, mips.V0)
	return reg
}

var setOps = map[token.Type]mips.Op{
	token.EqEq: mips.OpSeq,
	token.Gte:  mips.OpSge,
	token.Lte:  mips.OpSle,
	token.Gt:   mips.OpSgt,
	token.Lt:   mips.OpSlt,
}

// compare emits a set-compare into a saved register and then resets every
// pool; the result stays valid only until the next allocation of that register.
func (p *Parser) compare(opTok token.Token, left, right mips.Value) mips.Value {
	l, r := p.materialize(left), p.materialize(right)
	res := p.allocSaved()
	p.emit(setOps[opTok.Type], res, l, r)
	p.fn.regs.Reset()
	return res
}

// spillAndCall saves every temporary and saved register handed out so far,
// transfers control, restores them in reverse and releases the block.
func (p *Parser) spillAndCall(name string) {
	regs := p.fn.regs
	nt, ns := regs.InUse(regalloc.Temporary), regs.InUse(regalloc.Saved)
	block := symtab.WordSize * (nt + ns)

	if block > 0 {
		p.emit(mips.OpAddi, mips.SP, mips.SP, -block)
		ptr := block - symtab.WordSize
		for i := ns - 1; i >= 0; i-- {
			p.emit(mips.OpSw, regalloc.Nth(regalloc.Saved, i), mips.Mem(ptr, mips.SP))
			ptr -= symtab.WordSize
		}
		for i := nt - 1; i >= 0; i-- {
			p.emit(mips.OpSw, regalloc.Nth(regalloc.Temporary, i), mips.Mem(ptr, mips.SP))
			ptr -= symtab.WordSize
		}
	}

	p.emit(mips.OpJal, name)

	if block > 0 {
		ptr := 0
		for i := 0; i < nt; i++ {
			p.emit(mips.OpLw, regalloc.Nth(regalloc.Temporary, i), mips.Mem(ptr, mips.SP))
			ptr += symtab.WordSize
		}
		for i := 0; i < ns; i++ {
			p.emit(mips.OpLw, regalloc.Nth(regalloc.Saved, i), mips.Mem(ptr, mips.SP))
			ptr += symtab.WordSize
		}
		p.emit(mips.OpAddi, mips.SP, mips.SP, block)
	}
	regs.Reset()
}

// prologue grows the stack by the parameters plus $ra and $fp, stores the
// incoming arguments and makes $fp the new frame base.
func (p *Parser) prologue() {
	t := p.fn.table
	n := t.NumParams()
	p.emit(mips.OpAddi, mips.SP, mips.SP, -symtab.WordSize*(n+2))
	for i := 0; i < n; i++ {
		p.emit(mips.OpSw, regalloc.Nth(regalloc.Argument, i), mips.Mem(t.ParamOffset(i), mips.SP))
	}
	p.emit(mips.OpSw, mips.RA, mips.Mem(symtab.WordSize, mips.SP))
	p.emit(mips.OpSw, mips.FP, mips.Mem(0, mips.SP))
	p.emit(mips.OpMove, mips.FP, mips.SP)
}

// epilogue undoes prologue and the local reservation in one step.
func (p *Parser) epilogue() {
	p.emit(mips.OpLw, mips.RA, mips.Mem(symtab.WordSize, mips.FP))
	p.emit(mips.OpLw, mips.FP, mips.Mem(0, mips.FP))
	p.emit(mips.OpAddi, mips.SP, mips.SP, p.fn.table.Space())
	p.emit(mips.OpJr, mips.RA)
}

// setStringFlag records whether name now holds the address of a string.
func (p *Parser) setStringFlag(name string, val mips.Value) {
	if p.isString(val) {
		p.fn.strFlags[name] = true
		return
	}
	delete(p.fn.strFlags, name)
}

func (p *Parser) isString(val mips.Value) bool {
	switch v := val.(type) {
	case mips.StringLabel:
		return true
	case mips.Variable:
		return p.fn.strFlags[v.Name]
	}
	return false
}
