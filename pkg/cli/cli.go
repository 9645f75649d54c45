package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// ErrUsage is returned by App.Run when the command line itself is wrong.
var ErrUsage = errors.New("invalid usage")

type IndentState struct {
	levels   []uint8
	baseUnit uint8
}

func NewIndentState() *IndentState {
	return &IndentState{levels: []uint8{0}, baseUnit: 4}
}

func (is *IndentState) AtLevel(level int) string {
	return strings.Repeat(" ", int(is.baseUnit*uint8(level)))
}

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	val, err := strconv.ParseBool(s)
	if err != nil && s != "" {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val || s == ""
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry declares a -<Prefix><Name> / -<Prefix>no-<Name> pair.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	actual     []*Flag
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

// Visit calls fn for every flag set by the last Parse, in command-line order.
// A flag given twice is visited twice.
func (f *FlagSet) Visit(fn func(*Flag)) {
	for _, flag := range f.actual {
		fn(flag)
	}
}

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:                 name,
		Description:          description,
		Flags:                entries,
		GroupType:            groupType,
		AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// Parse accepts -name, --name and -name=value forms plus single-letter
// shorthands written as -o file or -ofile. Anything not starting with '-' is positional.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	f.actual = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}

		body := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
		name, value, hasValue := strings.Cut(body, "=")
		flag, ok := f.flags[name]
		if !ok && name != "" && !strings.HasPrefix(arg, "--") {
			flag, ok = f.shorthands[name[:1]]
			if ok {
				value, hasValue = strings.TrimPrefix(body[1:], "="), len(body) > 1
			}
		}
		if !ok {
			return fmt.Errorf("%w: unknown flag: %s", ErrUsage, arg)
		}

		if _, isBool := flag.Value.(*boolValue); isBool && !hasValue {
			value, hasValue = "", true
		}
		if !hasValue {
			if i+1 >= len(arguments) {
				return fmt.Errorf("%w: flag needs an argument: %s", ErrUsage, arg)
			}
			i++
			value = arguments[i]
		}
		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		f.actual = append(f.actual, flag)
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error

	// Stdout receives the help page, Stderr the usage summary on bad input.
	Stdout io.Writer
	Stderr io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	if a.FlagSet.Lookup("help") == nil {
		a.FlagSet.Bool(&help, "help", "h", false, "Display this information")
	}

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		a.generateUsagePage(a.Stderr)
		return err
	}
	if help {
		a.generateHelpPage(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) generateUsagePage(w io.Writer) {
	var sb strings.Builder
	indent := NewIndentState()

	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	if flags := a.optionFlags(); len(flags) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indent.AtLevel(1))
		width := a.maxLeftWidth()
		for _, flag := range flags {
			a.formatEntry(&sb, indent, width, formatFlagString(flag), flag.Usage, "")
		}
	}
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

func (a *App) generateHelpPage(w io.Writer) {
	var sb strings.Builder
	indent := NewIndentState()
	width := a.maxLeftWidth()

	authors := strings.Join(a.Authors, ", ") + " and contributors"
	if a.Since != 0 && a.Since < time.Now().Year() {
		fmt.Fprintf(&sb, "\n%sCopyright (c) %d-%d: %s\n", indent.AtLevel(1), a.Since, time.Now().Year(), authors)
	} else {
		fmt.Fprintf(&sb, "\n%sCopyright (c) %d: %s\n", indent.AtLevel(1), time.Now().Year(), authors)
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent.AtLevel(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indent.AtLevel(1), indent.AtLevel(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n%s%s\n", indent.AtLevel(1), indent.AtLevel(2), a.Description)
	}

	if flags := a.optionFlags(); len(flags) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indent.AtLevel(1))
		for _, flag := range flags {
			right := ""
			if _, isBool := flag.Value.(*boolValue); !isBool && flag.DefValue != "" {
				right = "|" + flag.DefValue + "|"
			}
			a.formatEntry(&sb, indent, width, formatFlagString(flag), flag.Usage, right)
		}
	}

	groups := append([]FlagGroup(nil), a.FlagSet.flagGroups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		a.formatFlagGroup(&sb, group, indent, width)
	}
	fmt.Fprint(w, sb.String())
}

// optionFlags lists the plain flags, sorted, leaving out group members.
func (a *App) optionFlags() []*Flag {
	var flags []*Flag
	for _, flag := range a.FlagSet.flags {
		if !a.isGroupFlag(flag.Name) {
			flags = append(flags, flag)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func (a *App) isGroupFlag(flagName string) bool {
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			if flagName == entry.Prefix+entry.Name || flagName == entry.Prefix+"no-"+entry.Name {
				return true
			}
		}
	}
	return false
}

func (a *App) maxLeftWidth() int {
	maxWidth := 0
	check := func(s string) {
		if len(s) > maxWidth {
			maxWidth = len(s)
		}
	}
	for _, flag := range a.optionFlags() {
		check(formatFlagString(flag))
	}
	for _, group := range a.FlagSet.flagGroups {
		if len(group.Flags) == 0 {
			continue
		}
		check(fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, group.GroupType))
		for _, entry := range group.Flags {
			check(entry.Name)
		}
	}
	return maxWidth
}

func formatFlagString(flag *Flag) string {
	var sb strings.Builder
	_, isBool := flag.Value.(*boolValue)
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBool && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func (a *App) formatEntry(sb *strings.Builder, indent *IndentState, leftWidth int, left, usage, right string) {
	indentStr := indent.AtLevel(2)
	usageWidth := getTerminalWidth() - len(indentStr) - leftWidth - 1 - len(right) - 2
	if usageWidth < 10 {
		usageWidth = 10
	}
	lines := wrapText(usage, usageWidth)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indentStr, leftWidth, left, usageWidth, first, right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indentStr, leftWidth, left, first)
	}
	pad := strings.Repeat(" ", leftWidth+1)
	for _, line := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s%s\n", indentStr, pad, line)
	}
}

func (a *App) formatFlagGroup(sb *strings.Builder, group FlagGroup, indent *IndentState, width int) {
	if len(group.Flags) == 0 {
		return
	}
	prefix := group.Flags[0].Prefix
	groupType := group.GroupType
	if groupType == "" {
		groupType = "flag"
	}

	fmt.Fprintf(sb, "\n%s%s\n", indent.AtLevel(1), group.Name)
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indent.AtLevel(2), width, fmt.Sprintf("-%s<%s>", prefix, groupType), groupType)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indent.AtLevel(2), width, fmt.Sprintf("-%sno-<%s>", prefix, groupType), groupType)
	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent.AtLevel(1), group.AvailableFlagsHeader)
	}

	entries := append([]FlagGroupEntry(nil), group.Flags...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, entry := range entries {
		mark := "|-|"
		if entry.Enabled != nil && *entry.Enabled && (entry.Disabled == nil || !*entry.Disabled) {
			mark = "|x|"
		}
		a.formatEntry(sb, indent, width, entry.Name, entry.Usage, mark)
	}
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+len(word)+1 > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
