package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilterOutput(t *testing.T) {
	tests := []struct {
		in      string
		ignored []string
		want    string
	}{
		{"a\nb\nc", nil, "a\nb\nc"},
		{"a\nbuild 42\nc", []string{"build"}, "a\nc"},
		{"a\nb", []string{""}, "a\nb"},
		{"", []string{"x"}, ""},
		{"x1\ny\nx2", []string{"x", "y"}, ""},
	}
	for _, tc := range tests {
		if got := filterOutput(tc.in, tc.ignored); got != tc.want {
			t.Errorf("filterOutput(%q, %q) = %q; want %q", tc.in, tc.ignored, got, tc.want)
		}
	}
}

func TestGoldenPath(t *testing.T) {
	if got, want := goldenPath(filepath.Join("tests", "fact.c")), filepath.Join("tests", ".fact.c.json"); got != want {
		t.Errorf("goldenPath = %q; want %q", got, want)
	}
}

func TestExpandGlobPatternsKeepsRelativePaths(t *testing.T) {
	chdir(t, t.TempDir())
	for _, name := range []string{"a.c", "b.c", "notes.txt"} {
		if err := os.WriteFile(name, []byte("def void main() {}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir("dir.c", 0755); err != nil {
		t.Fatal(err)
	}

	got, err := expandGlobPatterns("*.c a.c ./b.c")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a.c", "b.c"}, got); diff != "" {
		t.Errorf("expandGlobPatterns (-want +got):\n%s", diff)
	}

	if _, err := expandGlobPatterns("["); err == nil {
		t.Error("malformed pattern accepted")
	}
}

func TestCompareResults(t *testing.T) {
	base := func() *Golden {
		asm := "\t.text\njal\tmain\n"
		return &Golden{
			SourceHash:   "1",
			Compile:      Execution{Stderr: "warning\n"},
			Assembly:     asm,
			AssemblyHash: hashString(asm),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Golden)
		status string
		diff   string
	}{
		{"identical", func(*Golden) {}, "PASS", ""},
		{"duration only", func(g *Golden) { g.Compile.Duration = 1 << 30 }, "PASS", ""},
		{"exit code", func(g *Golden) { g.Compile.ExitCode = 1 }, "FAIL", "Compile exit code mismatch"},
		{"stderr", func(g *Golden) { g.Compile.Stderr = "other\n" }, "FAIL", "Compiler STDERR mismatch"},
		{"assembly", func(g *Golden) {
			g.Assembly = "\t.text\njal\tmain\nj\texit\n"
			g.AssemblyHash = hashString(g.Assembly)
		}, "FAIL", "Assembly mismatch"},
		{"program output", func(g *Golden) { g.Run = &Execution{Stdout: "2"} }, "FAIL", "Program STDOUT mismatch"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expected := base()
			expected.Run = &Execution{Stdout: "1"}
			actual := base()
			actual.Run = &Execution{Stdout: "1"}
			tc.mutate(actual)

			res := compareResults("prog.c", expected, actual)
			if res.Status != tc.status {
				t.Errorf("status = %s; want %s\n%s", res.Status, tc.status, res.Diff)
			}
			if tc.diff != "" && !strings.Contains(res.Diff, tc.diff) {
				t.Errorf("diff lacks %q:\n%s", tc.diff, res.Diff)
			}
		})
	}
}

// The committed goldens must agree with their sources and with themselves,
// otherwise every run reports them as stale.
func TestCommittedGoldensAreConsistent(t *testing.T) {
	sources, err := filepath.Glob(filepath.Join("..", "..", "tests", "*.c"))
	if err != nil || len(sources) == 0 {
		t.Fatalf("no sources under tests/: %v", err)
	}
	for _, src := range sources {
		t.Run(filepath.Base(src), func(t *testing.T) {
			data, err := os.ReadFile(goldenPath(src))
			if err != nil {
				t.Fatalf("golden file: %v", err)
			}
			var g Golden
			if err := json.Unmarshal(data, &g); err != nil {
				t.Fatalf("golden file: %v", err)
			}

			sum, err := hashFile(src)
			if err != nil {
				t.Fatal(err)
			}
			if g.SourceHash != sum {
				t.Errorf("source_hash = %s; source hashes to %s", g.SourceHash, sum)
			}

			switch {
			case g.Compile.ExitCode == 0 && g.Assembly == "":
				t.Error("successful compile recorded without assembly")
			case g.Compile.ExitCode != 0 && g.Assembly != "":
				t.Error("failed compile recorded with assembly")
			}
			if g.Assembly != "" && g.AssemblyHash != hashString(g.Assembly) {
				t.Errorf("assembly_hash = %s; assembly hashes to %s", g.AssemblyHash, hashString(g.Assembly))
			}
			if file, _, _ := strings.Cut(g.Compile.Stderr, ":"); g.Compile.Stderr != "" && filepath.IsAbs(file) {
				t.Errorf("stderr embeds an absolute path:\n%s", g.Compile.Stderr)
			}
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
