package regalloc

import (
	"errors"
	"testing"

	"github.com/xplshn/mipsc/pkg/mips"
)

func TestAllocSequence(t *testing.T) {
	tests := []struct {
		class Class
		want  []mips.Register
	}{
		{Temporary, []mips.Register{"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7", "$t8", "$t9"}},
		{Saved, []mips.Register{"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7"}},
		{Argument, []mips.Register{"$a0", "$a1", "$a2", "$a3"}},
	}
	for _, tc := range tests {
		p := New()
		for i, want := range tc.want {
			got, err := p.Alloc(tc.class)
			if err != nil {
				t.Fatalf("%s #%d: %v", tc.class, i, err)
			}
			if got != want {
				t.Errorf("%s #%d = %s; want %s", tc.class, i, got, want)
			}
		}
		if _, err := p.Alloc(tc.class); !errors.Is(err, ErrOverflow) {
			t.Errorf("%s past capacity: got %v, want ErrOverflow", tc.class, err)
		}
		if p.InUse(tc.class) != tc.class.Capacity() {
			t.Errorf("%s InUse = %d after overflow; want %d", tc.class, p.InUse(tc.class), tc.class.Capacity())
		}
	}
}

func TestClassesAreIndependent(t *testing.T) {
	p := New()
	mustAlloc(t, p, Temporary)
	mustAlloc(t, p, Temporary)
	if r := mustAlloc(t, p, Saved); r != "$s0" {
		t.Errorf("first saved register = %s; want $s0", r)
	}
	if p.InUse(Temporary) != 2 || p.InUse(Saved) != 1 || p.InUse(Argument) != 0 {
		t.Errorf("InUse = %d/%d/%d; want 2/1/0", p.InUse(Temporary), p.InUse(Saved), p.InUse(Argument))
	}
}

func TestResetReclaimsEverything(t *testing.T) {
	p := New()
	for _, c := range []Class{Temporary, Saved, Argument} {
		mustAlloc(t, p, c)
		mustAlloc(t, p, c)
	}
	p.Reset()
	for _, c := range []Class{Temporary, Saved, Argument} {
		if p.InUse(c) != 0 {
			t.Errorf("%s InUse = %d after Reset", c, p.InUse(c))
		}
		if r := mustAlloc(t, p, c); r != Nth(c, 0) {
			t.Errorf("%s after Reset = %s; want %s", c, r, Nth(c, 0))
		}
	}
}

func mustAlloc(t *testing.T, p *Pools, c Class) mips.Register {
	t.Helper()
	r, err := p.Alloc(c)
	if err != nil {
		t.Fatalf("Alloc(%s): %v", c, err)
	}
	return r
}
