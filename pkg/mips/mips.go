package mips

import (
	"fmt"
	"strconv"
)

type Op string

const (
	OpAdd     Op = "add"
	OpAddi    Op = "addi"
	OpSub     Op = "sub"
	OpMult    Op = "mult"
	OpDiv     Op = "div"
	OpMflo    Op = "mflo"
	OpLi      Op = "li"
	OpLa      Op = "la"
	OpLw      Op = "lw"
	OpSw      Op = "sw"
	OpMove    Op = "move"
	OpSeq     Op = "seq"
	OpSge     Op = "sge"
	OpSle     Op = "sle"
	OpSgt     Op = "sgt"
	OpSlt     Op = "slt"
	OpBeq     Op = "beq"
	OpJ       Op = "j"
	OpJal     Op = "jal"
	OpJr      Op = "jr"
	OpSyscall Op = "syscall"
)

type Register string

const (
	Zero Register = "$zero"
	V0   Register = "$v0"
	A0   Register = "$a0"
	SP   Register = "$sp"
	FP   Register = "$fp"
	RA   Register = "$ra"
)

// Syscall service numbers loaded into $v0.
const (
	SysPrintInt    = 1
	SysPrintString = 4
)

// Value is what an expression rule hands back to its caller. The concrete
// types are Register, Immediate, StringLabel and Variable.
type Value interface {
	isValue()
	String() string
}

// Immediate is an integer literal that has not been loaded yet.
type Immediate struct{ Value int64 }

// StringLabel refers to entry Index of the string pool.
type StringLabel struct{ Index int }

// Variable is a named parameter or local that has not been loaded yet.
type Variable struct{ Name string }

func (Register) isValue()    {}
func (Immediate) isValue()   {}
func (StringLabel) isValue() {}
func (Variable) isValue()    {}

func (r Register) String() string    { return string(r) }
func (i Immediate) String() string   { return strconv.FormatInt(i.Value, 10) }
func (s StringLabel) String() string { return fmt.Sprintf("Str%d", s.Index) }
func (v Variable) String() string    { return v.Name }

// Mem formats a base+offset memory operand such as 4($sp).
func Mem(offset int, base Register) string {
	return fmt.Sprintf("%d(%s)", offset, base)
}

// Int formats an immediate instruction argument.
func Int(n int) string { return strconv.Itoa(n) }
