package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

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

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

// FlagGroup is a family of boolean toggles behind one prefix, like the
// -W<warning> / -Wno-<warning> switches.
type FlagGroup struct {
	Name    string
	Prefix  string
	Entries []GroupEntry
}

type GroupEntry struct {
	Name    string
	Usage   string
	Enabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	groups     []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.addVar(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.addVar(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) List(p *[]string, name, shorthand string, usage, expectedType string) {
	f.addVar(&listValue{p}, name, shorthand, usage, "", expectedType)
}

// Group registers prefix-joined toggles: -<prefix><name> enables an
// entry and -<prefix>no-<name> disables it.
func (f *FlagSet) Group(name, prefix string, entries []GroupEntry) {
	for _, e := range entries {
		enable := e.Enabled
		f.addVar(&boolValue{enable}, prefix+e.Name, "", e.Usage, strconv.FormatBool(*enable), "")
		disabled := new(bool)
		f.addVar(&inverseBool{enable, disabled}, prefix+"no-"+e.Name, "", "Disable '"+e.Name+"'", "false", "")
	}
	f.groups = append(f.groups, FlagGroup{Name: name, Prefix: prefix, Entries: entries})
}

// inverseBool clears its target when set.
type inverseBool struct {
	target *bool
	p      *bool
}

func (v *inverseBool) Set(s string) error {
	val, err := strconv.ParseBool(s)
	if err != nil && s != "" {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val || s == ""
	if *v.p {
		*v.target = false
	}
	return nil
}
func (v *inverseBool) String() string { return strconv.FormatBool(*v.p) }

func (f *FlagSet) addVar(value Value, name, shorthand, usage, defValue, expectedType string) {
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

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
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
		name := strings.TrimLeft(arg, "-")
		var inlineValue string
		hasInline := false
		if eq := strings.Index(name, "="); eq >= 0 {
			name, inlineValue = name[:eq], name[eq+1:]
			hasInline = true
		}

		flag, ok := f.flags[name]
		if !ok && !strings.HasPrefix(arg, "--") {
			flag, ok = f.shorthands[name[:1]]
			if ok && len(name) > 1 {
				inlineValue, hasInline = name[1:], true
			}
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		if hasInline {
			if err := flag.Value.Set(inlineValue); err != nil {
				return err
			}
			continue
		}
		if isBoolFlag(flag) {
			if err := flag.Value.Set(""); err != nil {
				return err
			}
			continue
		}
		if i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: %s", arg)
		}
		i++
		if err := flag.Value.Set(arguments[i]); err != nil {
			return err
		}
	}
	return nil
}

func isBoolFlag(flag *Flag) bool {
	switch flag.Value.(type) {
	case *boolValue, *inverseBool:
		return true
	}
	return false
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.printHelp(os.Stderr)
		return err
	}
	if help {
		a.printHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) printHelp(w *os.File) {
	var sb strings.Builder
	width := terminalWidth()

	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n    %s\n", a.Description)
	}

	options := a.optionFlags()
	left := 0
	for _, flag := range options {
		if n := len(flagString(flag)); n > left {
			left = n
		}
	}
	for _, group := range a.FlagSet.groups {
		for _, entry := range group.Entries {
			if n := len("-" + group.Prefix + "[no-]" + entry.Name); n > left {
				left = n
			}
		}
	}

	sb.WriteString("\n    Options\n")
	sort.Slice(options, func(i, j int) bool { return options[i].Name < options[j].Name })
	for _, flag := range options {
		writeEntry(&sb, flagString(flag), flag.Usage, left, width)
	}

	for _, group := range a.FlagSet.groups {
		fmt.Fprintf(&sb, "\n    %s\n", group.Name)
		entries := make([]GroupEntry, len(group.Entries))
		copy(entries, group.Entries)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, entry := range entries {
			state := "|-|"
			if *entry.Enabled {
				state = "|x|"
			}
			writeEntry(&sb, "-"+group.Prefix+"[no-]"+entry.Name, entry.Usage+" "+state, left, width)
		}
	}
	fmt.Fprint(w, sb.String())
}

func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, group := range a.FlagSet.groups {
		for _, entry := range group.Entries {
			grouped[group.Prefix+entry.Name] = true
			grouped[group.Prefix+"no-"+entry.Name] = true
		}
	}
	var options []*Flag
	for name, flag := range a.FlagSet.flags {
		if !grouped[name] {
			options = append(options, flag)
		}
	}
	return options
}

func flagString(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, left, usage string, leftWidth, termWidth int) {
	avail := termWidth - leftWidth - 10
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(sb, "        %-*s %s\n", leftWidth, left, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "        %-*s %s\n", leftWidth, "", line)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	return append(lines, current.String())
}
