// gtest drives the mipsc binary over a directory of sources and compares what
// it emits against golden JSON files kept next to them.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is the recorded behaviour of one source file.
type Golden struct {
	SourceHash   string     `json:"source_hash"`
	Compile      Execution  `json:"compile"`
	Assembly     string     `json:"assembly,omitempty"`
	AssemblyHash string     `json:"assembly_hash,omitempty"`
	Run          *Execution `json:"run,omitempty"`
}

type FileTestResult struct {
	File     string  `json:"file"`
	Status   string  `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string  `json:"message,omitempty"`
	Diff     string  `json:"diff,omitempty"`
	Expected *Golden `json:"expected,omitempty"`
	Actual   *Golden `json:"actual,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler     = flag.String("compiler", "./mipsc", "Path to the mipsc binary under test.")
	compilerArgs = flag.String("args", "", "Extra arguments for the compiler (space-separated).")
	simulator    = flag.String("sim", "", "Optional MIPS simulator (e.g. spim) used to run the emitted assembly.")
	simArgs      = flag.String("sim-args", "-file", "Arguments placed before the assembly file when running the simulator.")
	update       = flag.Bool("update", false, "Rewrite golden files from the current compiler instead of comparing.")
	testFiles    = flag.String("test-files", "tests/*.c", "Glob pattern(s) for files to test (space-separated).")
	skipFiles    = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON   = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout      = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs         = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose      = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir      = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines  = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

var errCompile = errors.New("compilation failed")

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if !runTestSuite(tempDir) {
		os.RemoveAll(tempDir)
		os.Exit(1)
	}
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func hashString(s string) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(s))
}

func runTestSuite(tempDir string) bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, tempDir)
			}
		}()
	}

	for _, file := range files {
		if abs, err := filepath.Abs(file); err == nil && skipList[abs] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].File < allResults[j].File })

	printSummary(allResults)
	return !hasFailures(writeJSONReport(allResults))
}

func testFile(file, tempDir string) *FileTestResult {
	sourceHash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash source file: %v", err)}
	}

	actual, err := compileAndRun(file, tempDir, sourceHash)
	if err != nil && !errors.Is(err, errCompile) {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error(), Actual: actual}
	}

	path := goldenPath(file)
	if *update {
		if err := writeGolden(path, actual); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "Golden file written to " + path, Actual: actual}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "No golden file; run with -update to create one", Actual: actual}
	} else if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", path, err)}
	}
	var expected Golden
	if err := json.Unmarshal(data, &expected); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", path, err)}
	}
	if expected.SourceHash != sourceHash {
		return &FileTestResult{File: file, Status: "ERROR", Message: "Source changed since the golden file was recorded; rerun with -update", Expected: &expected, Actual: actual}
	}
	return compareResults(file, &expected, actual)
}

func writeGolden(path string, g *Golden) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data: %w", err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func compareResults(file string, expected, actual *Golden) *FileTestResult {
	var diffs strings.Builder
	ignored := ignoredSubstrings()

	if expected.Compile.ExitCode != actual.Compile.ExitCode {
		fmt.Fprintf(&diffs, "Compile exit code mismatch:\n  - Expected: %d\n  - Actual:   %d\n", expected.Compile.ExitCode, actual.Compile.ExitCode)
	}
	if want, got := filterOutput(expected.Compile.Stderr, ignored), filterOutput(actual.Compile.Stderr, ignored); want != got {
		fmt.Fprintf(&diffs, "Compiler STDERR mismatch:\n%s", cmp.Diff(want, got))
	}
	// The hash settles the common case without splitting the listing.
	if expected.AssemblyHash != actual.AssemblyHash {
		want := strings.Split(filterOutput(expected.Assembly, ignored), "\n")
		got := strings.Split(filterOutput(actual.Assembly, ignored), "\n")
		if d := cmp.Diff(want, got); d != "" {
			fmt.Fprintf(&diffs, "Assembly mismatch:\n%s", d)
		}
	}
	if expected.Run != nil && actual.Run != nil {
		if want, got := filterOutput(expected.Run.Stdout, ignored), filterOutput(actual.Run.Stdout, ignored); want != got {
			fmt.Fprintf(&diffs, "Program STDOUT mismatch:\n%s", cmp.Diff(want, got))
		}
	}

	if diffs.Len() > 0 {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output differs from golden file", Diff: diffs.String(), Expected: expected, Actual: actual}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Matches golden file", Expected: expected, Actual: actual}
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err != nil:
		result.ExitCode = -2
		result.Stderr += "\nExecution error: " + err.Error()
	}
	return result
}

// compileAndRun translates sourceFile into tempDir and, when a simulator is
// configured, executes the listing. A diagnostic from the compiler is an
// expected outcome and is reported through errCompile.
func compileAndRun(sourceFile, tempDir, sourceHash string) (*Golden, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	asmPath := filepath.Join(tempDir, sourceHash+".a")
	args := append([]string{"-o", asmPath}, strings.Fields(*compilerArgs)...)
	args = append(args, sourceFile)

	g := &Golden{SourceHash: sourceHash}
	g.Compile = executeCommand(ctx, *compiler, args...)
	if g.Compile.ExitCode != 0 || g.Compile.TimedOut {
		if _, err := os.Stat(asmPath); err == nil {
			return g, fmt.Errorf("compiler failed but still wrote %s", asmPath)
		}
		return g, errCompile
	}

	asm, err := os.ReadFile(asmPath)
	if err != nil {
		return g, fmt.Errorf("compilation succeeded but output was not created at %s: %w", asmPath, err)
	}
	g.Assembly = string(asm)
	g.AssemblyHash = hashString(g.Assembly)

	if *simulator != "" {
		runCtx, runCancel := context.WithTimeout(context.Background(), *timeout)
		defer runCancel()
		run := executeCommand(runCtx, *simulator, append(strings.Fields(*simArgs), asmPath)...)
		g.Run = &run
	}
	if *verbose {
		log.Printf("[%s] compiled in %s (%d bytes of assembly)", sourceFile, g.Compile.Duration, len(asm))
	}
	return g, nil
}

func ignoredSubstrings() []string {
	if *ignoreLines == "" {
		return nil
	}
	return strings.Split(*ignoreLines, ",")
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignored []string) string {
	if len(ignored) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		drop := false
		for _, sub := range ignored {
			if sub != "" && strings.Contains(line, sub) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalCompile time.Duration
	var compiled int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if result.Actual != nil {
			compiled++
			totalCompile += result.Actual.Compile.Duration
			if *verbose {
				fmt.Printf("  compile: %s\n", formatDuration(result.Actual.Compile.Duration))
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if compiled > 0 {
		fmt.Printf("Average compile time: %s\n", formatDuration(totalCompile/time.Duration(compiled)))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

// expandGlobPatterns keeps each path as the pattern produced it, so a golden
// recorded from a relative pattern does not embed the checkout location.
// Duplicates are detected on the absolute path.
func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil || seen[absFile] {
				continue
			}
			if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, file)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
