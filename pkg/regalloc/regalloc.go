// Package regalloc hands out MIPS registers from three bounded classes.
//
// There is no free list and no spilling: a class counter only grows until the
// whole set of pools is reset. Running past a class capacity is fatal.
package regalloc

import (
	"errors"
	"fmt"

	"github.com/xplshn/mipsc/pkg/mips"
)

var ErrOverflow = errors.New("register overflow")

type Class int

const (
	Temporary Class = iota
	Saved
	Argument
)

var classInfo = [...]struct {
	prefix   string
	capacity int
	name     string
}{
	Temporary: {"$t", 10, "temporary"},
	Saved:     {"$s", 8, "saved"},
	Argument:  {"$a", 4, "argument"},
}

func (c Class) String() string { return classInfo[c].name }

// Capacity is the number of physical registers of the class.
func (c Class) Capacity() int { return classInfo[c].capacity }

// Pools is the allocator state of one function body.
type Pools struct {
	used [3]int
}

func New() *Pools { return &Pools{} }

// Alloc returns the next register of class c.
func (p *Pools) Alloc(c Class) (mips.Register, error) {
	if p.used[c] >= c.Capacity() {
		return "", fmt.Errorf("%s %w: all %d registers in use", c, ErrOverflow, c.Capacity())
	}
	r := Nth(c, p.used[c])
	p.used[c]++
	return r, nil
}

// InUse is how many registers of class c have been handed out since the last reset.
func (p *Pools) InUse(c Class) int { return p.used[c] }

// Reset reclaims every class at once.
func (p *Pools) Reset() { p.used = [3]int{} }

// Nth names the i-th register of class c.
func Nth(c Class, i int) mips.Register {
	return mips.Register(fmt.Sprintf("%s%d", classInfo[c].prefix, i))
}
