package config

type Feature int

const (
	FeatFold Feature = iota
	FeatInclude
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnShadowedMacro
	WarnEmptyBody
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	// Target constants for the only supported architecture, x86-64 SysV.
	WordSize       int
	StackAlignment int
	Assembler      string
	Linker         string

	IncludePaths []string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),

		WordSize:       8,
		StackAlignment: 16,
		Assembler:      "nasm",
		Linker:         "ld",
	}

	features := map[Feature]Info{
		FeatFold:    {"fold", true, "Fold constant arithmetic while building the IR."},
		FeatInclude: {"include", true, "Allow the '(include \"file\")' top-level form."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that can never execute."},
		WarnShadowedMacro:   {"shadowed-macro", true, "Warn when a macro definition replaces an earlier one."},
		WarnEmptyBody:       {"empty-body", false, "Warn about loops and procedures with empty bodies."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
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

func (c *Config) IsFeatureEnabled(ft Feature) bool {
	info, ok := c.Features[ft]
	return ok && info.Enabled
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool {
	info, ok := c.Warnings[wt]
	return ok && info.Enabled
}

// WarningEnabled implements diag.Warner keyed by warning name.
func (c *Config) WarningEnabled(name string) bool {
	wt, ok := c.WarningMap[name]
	return ok && c.IsWarningEnabled(wt)
}

func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }
