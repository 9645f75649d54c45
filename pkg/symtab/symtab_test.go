package symtab

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGlobalEnterIsIdempotent(t *testing.T) {
	g := NewGlobal()
	for _, name := range []string{"main", "x", "main", "f", "x"} {
		g.Enter(name)
	}
	if diff := cmp.Diff([]string{"main", "x", "f"}, g.Symbols()); diff != "" {
		t.Errorf("Symbols() mismatch (-want +got):\n%s", diff)
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d; want 3", g.Len())
	}
}

func TestEnterFuncRejectsDuplicates(t *testing.T) {
	g := NewGlobal()
	if err := g.EnterFunc("f", NewFunc("f")); err != nil {
		t.Fatalf("first EnterFunc: %v", err)
	}
	if err := g.EnterFunc("main", NewFunc("main")); err != nil {
		t.Fatalf("EnterFunc(main): %v", err)
	}
	err := g.EnterFunc("f", NewFunc("f"))
	if !errors.Is(err, ErrDuplicateDefinition) {
		t.Fatalf("second EnterFunc: got %v, want ErrDuplicateDefinition", err)
	}

	var names []string
	for _, f := range g.Funcs() {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"f", "main"}, names); diff != "" {
		t.Errorf("Funcs() order (-want +got):\n%s", diff)
	}
	if _, ok := g.Func("missing"); ok {
		t.Error("Func(missing) reported found")
	}
}

func TestFuncNamesAreUnique(t *testing.T) {
	f := NewFunc("f")
	if err := f.ArgEnter("a"); err != nil {
		t.Fatal(err)
	}
	if err := f.VarEnter("x"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		enter func(string) error
		arg   string
	}{
		{"param twice", f.ArgEnter, "a"},
		{"local shadows param", f.VarEnter, "a"},
		{"local twice", f.VarEnter, "x"},
		{"param after local", f.ArgEnter, "x"},
	}
	for _, tc := range tests {
		if err := tc.enter(tc.arg); !errors.Is(err, ErrAlreadyDefined) {
			t.Errorf("%s: got %v, want ErrAlreadyDefined", tc.name, err)
		}
	}
	if f.NumParams() != 1 || f.NumLocals() != 1 {
		t.Errorf("rejected entries were recorded: params=%v locals=%v", f.Params(), f.Locals())
	}
}

func TestFrameLayout(t *testing.T) {
	f := NewFunc("f")
	for _, p := range []string{"a", "b", "c"} {
		if err := f.ArgEnter(p); err != nil {
			t.Fatal(err)
		}
	}
	for _, l := range []string{"x", "y"} {
		if err := f.VarEnter(l); err != nil {
			t.Fatal(err)
		}
	}

	if got, want := f.Space(), 4*(2+3+2); got != want {
		t.Errorf("Space() = %d; want %d", got, want)
	}

	paramOffsets := []int{f.ParamOffset(0), f.ParamOffset(1), f.ParamOffset(2)}
	if diff := cmp.Diff([]int{16, 12, 8}, paramOffsets); diff != "" {
		t.Errorf("parameter offsets (-want +got):\n%s", diff)
	}
	localOffsets := []int{f.LocalOffset(0), f.LocalOffset(1)}
	if diff := cmp.Diff([]int{4, 0}, localOffsets); diff != "" {
		t.Errorf("local offsets (-want +got):\n%s", diff)
	}

	if f.ArgLocate("b") != 1 || f.VarLocate("y") != 1 {
		t.Errorf("ArgLocate(b)=%d VarLocate(y)=%d; want 1, 1", f.ArgLocate("b"), f.VarLocate("y"))
	}
	if f.ArgLocate("x") != -1 || f.VarLocate("a") != -1 || f.VarLocate("zz") != -1 {
		t.Error("lookup crossed parameter and local lists")
	}
}

func TestEmptyFrame(t *testing.T) {
	if got := NewFunc("main").Space(); got != 8 {
		t.Errorf("Space() = %d; want 8", got)
	}
}
