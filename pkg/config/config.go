package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/mipsc/pkg/cli"
)

type Feature int

const (
	FeatCComments Feature = iota
	FeatAnnotate
	FeatForceEnd
	FeatCount
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnUnreachableCode
	WarnUnused
	WarnImplicitDecl
	WarnArgCount
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

const DefaultOutputSuffix = ".a"

type Config struct {
	Features     map[Feature]Info
	Warnings     map[Warning]Info
	FeatureMap   map[string]Feature
	WarningMap   map[string]Warning
	OutputSuffix string
	Verbose      bool
}

func NewConfig() *Config {
	cfg := &Config{
		Features:     make(map[Feature]Info),
		Warnings:     make(map[Warning]Info),
		FeatureMap:   make(map[string]Feature),
		WarningMap:   make(map[string]Warning),
		OutputSuffix: DefaultOutputSuffix,
	}

	features := map[Feature]Info{
		FeatCComments: {"c-comments", true, "Recognize '//' line comments."},
		FeatAnnotate:  {"annotate", true, "Emit '#' comments describing statements into the assembly."},
		FeatForceEnd:  {"force-end", true, "Treat '~' as the end of the program and ignore the rest of the input."},
	}

	warnings := map[Warning]Info{
		WarnOverflow:        {"overflow", true, "Warn when an integer literal does not fit in a 32-bit word."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements following a 'return'."},
		WarnUnused:          {"unused", true, "Warn about locals that are declared but never referenced."},
		WarnImplicitDecl:    {"implicit-decl", true, "Warn about calls to functions that are never defined."},
		WarnArgCount:        {"arg-count", true, "Warn when a call passes a different number of arguments than the definition takes."},
		WarnExtra:           {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetAllWarnings is what -Wall / -Wno-all do.
func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		c.SetWarning(i, enabled)
	}
}

// OutputPath derives the assembly path from the source path.
func (c *Config) OutputPath(source string) string {
	return source + c.OutputSuffix
}

// ApplyFlag applies a single -W / -F style switch such as "-Wno-unused" or "-Fannotate".
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
	default:
		return fmt.Errorf("unrecognized switch '%s'", flag)
	}

	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning {
		if name == "all" {
			c.SetAllWarnings(enable)
			return nil
		}
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}

	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// SetupFlagGroups registers -Wall, -Wno-all and the -W and -F groups on fs.
// Parsing only records which switches were given; ApplySwitches acts on them.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) {
	var wall, wnoall bool
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&wnoall, "Wno-all", "", false, "Disable all warnings.")

	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := info.Enabled, false
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := info.Enabled, false
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warning Flags:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available Features:", featureFlags)
}

// ApplySwitches applies the -W and -F switches fs saw during Parse. -Wall and
// -Wno-all go first, in the order given, so a named switch overrides them
// wherever it appears.
func (c *Config) ApplySwitches(fs *cli.FlagSet) error {
	var named []string
	fs.Visit(func(f *cli.Flag) {
		sw, ok := c.switchFor(f)
		switch {
		case !ok:
		case sw == "-Wall" || sw == "-Wno-all":
			c.ApplyFlag(sw)
		default:
			named = append(named, sw)
		}
	})
	for _, sw := range named {
		if err := c.ApplyFlag(sw); err != nil {
			return err
		}
	}
	return nil
}

// switchFor turns a parsed group flag back into the switch it means, so
// -Wunused=false reads as -Wno-unused.
func (c *Config) switchFor(f *cli.Flag) (string, bool) {
	if len(f.Name) < 2 || (f.Name[0] != 'W' && f.Name[0] != 'F') {
		return "", false
	}
	prefix, name := f.Name[:1], f.Name[1:]
	negated := strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	known := false
	if prefix == "W" {
		_, known = c.WarningMap[name]
		known = known || name == "all"
	} else {
		_, known = c.FeatureMap[name]
	}
	if !known {
		return "", false
	}

	if on, _ := f.Value.Get().(bool); !on {
		negated = !negated
	}
	if negated {
		return "-" + prefix + "no-" + name, true
	}
	return "-" + prefix + name, true
}
