package strpool

import "testing"

func TestEnterKeepsOrderAndDuplicates(t *testing.T) {
	p := New()
	lits := []string{`"hi"`, `"there"`, `"hi"`}
	for i, lit := range lits {
		if got := p.Enter(lit); got != i {
			t.Errorf("Enter(%s) = %d; want %d", lit, got, i)
		}
	}
	if p.Size() != 3 {
		t.Fatalf("Size() = %d; want 3", p.Size())
	}
	for i, lit := range lits {
		if got := p.ItemAt(i); got != lit {
			t.Errorf("ItemAt(%d) = %s; want %s", i, got, lit)
		}
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "Str0"},
		{1, "Str1"},
		{12, "Str12"},
	}
	for _, tc := range tests {
		if got := Label(tc.index); got != tc.want {
			t.Errorf("Label(%d) = %q; want %q", tc.index, got, tc.want)
		}
	}
}
