package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/mipsc/pkg/codegen"
	"github.com/xplshn/mipsc/pkg/mips"
)

// machine executes the subset of MIPS32 the translator emits, enough to run
// the generated listings inside tests and check what they print.
type machine struct {
	code    []codegen.Line
	labels  map[string]int
	regs    map[string]int32
	mem     map[int32]int32
	strs    map[int32]string
	lo      int32
	out     strings.Builder
	maxStep int
}

const (
	stackTop = int32(0x7fff0000)
	dataBase = int32(0x10010000)
)

func newMachine(buf *codegen.Buffer) *machine {
	m := &machine{
		labels:  make(map[string]int),
		regs:    map[string]int32{"$sp": stackTop, "$fp": stackTop},
		mem:     make(map[int32]int32),
		strs:    make(map[int32]string),
		maxStep: 1_000_000,
	}
	next := dataBase
	for _, l := range buf.Lines {
		switch l.Kind {
		case codegen.LineLabel:
			m.labels[l.Text] = len(m.code)
		case codegen.LineInstr:
			m.code = append(m.code, l)
		case codegen.LineData:
			m.labels[l.Text] = int(next)
			s, err := strconv.Unquote(l.Value)
			if err != nil {
				s = strings.Trim(l.Value, `"`)
			}
			m.strs[next] = s
			next += 0x100
		}
	}
	return m
}

func (m *machine) reg(name string) int32 {
	if name == string(mips.Zero) {
		return 0
	}
	return m.regs[name]
}

func (m *machine) set(name string, v int32) {
	if name != string(mips.Zero) {
		m.regs[name] = v
	}
}

func (m *machine) addr(operand string) (int32, error) {
	open := strings.IndexByte(operand, '(')
	if open < 0 || !strings.HasSuffix(operand, ")") {
		return 0, fmt.Errorf("bad memory operand %q", operand)
	}
	off, err := strconv.Atoi(operand[:open])
	if err != nil {
		return 0, err
	}
	a := m.reg(operand[open+1:len(operand)-1]) + int32(off)
	if a%4 != 0 {
		return 0, fmt.Errorf("unaligned access at %#x", a)
	}
	return a, nil
}

func (m *machine) target(label string) (int, error) {
	pc, ok := m.labels[label]
	if !ok {
		return 0, fmt.Errorf("jump to unknown label %q", label)
	}
	return pc, nil
}

func imm(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return int32(n), err
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// run starts at the first instruction and stops when control reaches the
// end of the code, which is where the exit label points.
func (m *machine) run() (string, error) {
	pc := 0
	for step := 0; pc < len(m.code); step++ {
		if step > m.maxStep {
			return m.out.String(), fmt.Errorf("step limit exceeded at pc %d", pc)
		}
		l := m.code[pc]
		a := l.Args
		pc++
		var err error
		switch l.Op {
		case mips.OpAdd:
			m.set(a[0], m.reg(a[1])+m.reg(a[2]))
		case mips.OpSub:
			m.set(a[0], m.reg(a[1])-m.reg(a[2]))
		case mips.OpAddi:
			var n int32
			n, err = imm(a[2])
			m.set(a[0], m.reg(a[1])+n)
		case mips.OpMult:
			m.lo = int32(int64(m.reg(a[0])) * int64(m.reg(a[1])))
		case mips.OpDiv:
			if m.reg(a[1]) == 0 {
				return m.out.String(), fmt.Errorf("division by zero at pc %d", pc-1)
			}
			m.lo = m.reg(a[0]) / m.reg(a[1])
		case mips.OpMflo:
			m.set(a[0], m.lo)
		case mips.OpLi:
			var n int32
			n, err = imm(a[1])
			m.set(a[0], n)
		case mips.OpLa:
			var at int
			at, err = m.target(a[1])
			m.set(a[0], int32(at))
		case mips.OpLw:
			var at int32
			at, err = m.addr(a[1])
			m.set(a[0], m.mem[at])
		case mips.OpSw:
			var at int32
			at, err = m.addr(a[1])
			m.mem[at] = m.reg(a[0])
		case mips.OpMove:
			m.set(a[0], m.reg(a[1]))
		case mips.OpSeq:
			m.set(a[0], boolWord(m.reg(a[1]) == m.reg(a[2])))
		case mips.OpSge:
			m.set(a[0], boolWord(m.reg(a[1]) >= m.reg(a[2])))
		case mips.OpSle:
			m.set(a[0], boolWord(m.reg(a[1]) <= m.reg(a[2])))
		case mips.OpSgt:
			m.set(a[0], boolWord(m.reg(a[1]) > m.reg(a[2])))
		case mips.OpSlt:
			m.set(a[0], boolWord(m.reg(a[1]) < m.reg(a[2])))
		case mips.OpBeq:
			if m.reg(a[0]) == m.reg(a[1]) {
				pc, err = m.target(a[2])
			}
		case mips.OpJ:
			pc, err = m.target(a[0])
		case mips.OpJal:
			m.set(string(mips.RA), int32(pc))
			pc, err = m.target(a[0])
		case mips.OpJr:
			pc = int(m.reg(a[0]))
		case mips.OpSyscall:
			switch m.reg(string(mips.V0)) {
			case mips.SysPrintInt:
				fmt.Fprintf(&m.out, "%d", m.reg(string(mips.A0)))
			case mips.SysPrintString:
				s, ok := m.strs[m.reg(string(mips.A0))]
				if !ok {
					return m.out.String(), fmt.Errorf("print_string of non-string address %#x", m.reg(string(mips.A0)))
				}
				m.out.WriteString(s)
			default:
				return m.out.String(), fmt.Errorf("unsupported syscall %d", m.reg(string(mips.V0)))
			}
		default:
			return m.out.String(), fmt.Errorf("unsupported instruction %s", l.Op)
		}
		if err != nil {
			return m.out.String(), fmt.Errorf("pc %d (%s): %w", pc-1, codegen.FormatLine(l), err)
		}
	}
	if got := m.reg(string(mips.SP)); got != stackTop {
		return m.out.String(), fmt.Errorf("stack pointer not restored: %#x", got)
	}
	return m.out.String(), nil
}
