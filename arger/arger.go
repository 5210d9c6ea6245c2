package arger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	xterm "golang.org/x/term"
)

// ErrHelp is returned by Parse when -h or --help is present.
var ErrHelp = errors.New("help requested")

// -------------------------------
// IFlag - interface for all flag types
// --------------------------------

type IFlag interface {
	GetName() string
	GetDescription() string
	GetRequired() bool
	GetAliases() []string
	GetPositional() bool
	GetSwitch() bool
	GetDefault() any
	GetExpectedValues() []any
	parse(value string) (IParsedFlag, error)
	defaultParsed() IParsedFlag
}

// -------------------------------
// IParsedFlag - interface for all parsed flag types
// --------------------------------

type IParsedFlag interface {
	GetValue() any
	GetFlag() IFlag
}

// -------------------------------
// Flag - generic flag type
// --------------------------------

type Flag[T any] struct {
	Name           string
	Description    string
	Required       bool
	Default        *T
	DefaultFunc    func() T
	Aliases        []string
	Positional     bool
	Switch         bool // presence alone sets the value; only meaningful for bool flags
	ExpectedValues []T
	Parser         func(string) (T, error)
}

func (f Flag[T]) GetName() string        { return f.Name }
func (f Flag[T]) GetDescription() string { return f.Description }
func (f Flag[T]) GetRequired() bool      { return f.Required }
func (f Flag[T]) GetAliases() []string   { return f.Aliases }
func (f Flag[T]) GetPositional() bool    { return f.Positional }
func (f Flag[T]) GetSwitch() bool        { return f.Switch }
func (f Flag[T]) GetDefault() any {
	if f.Default != nil {
		return *f.Default
	}
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return nil
}
func (f Flag[T]) GetExpectedValues() []any {
	out := make([]any, len(f.ExpectedValues))
	for i, v := range f.ExpectedValues {
		out[i] = v
	}
	return out
}

func (f Flag[T]) parse(value string) (IParsedFlag, error) {
	var (
		v   T
		err error
	)
	if f.Parser != nil {
		v, err = f.Parser(value)
	} else {
		v, err = parseValue[T](value)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse value %q: %w", value, err)
	}

	if len(f.ExpectedValues) > 0 {
		valid := false
		for _, ev := range f.ExpectedValues {
			if strings.EqualFold(fmt.Sprintf("%v", ev), fmt.Sprintf("%v", v)) {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("invalid value %q", value)
		}
	}

	return ParsedFlag[T]{flag: &f, Value: v}, nil
}

func (f Flag[T]) defaultParsed() IParsedFlag {
	if f.Default != nil {
		return ParsedFlag[T]{flag: &f, Value: *f.Default}
	}
	if f.DefaultFunc != nil {
		return ParsedFlag[T]{flag: &f, Value: f.DefaultFunc()}
	}
	return nil
}

// parseValue converts raw into T for the common flag types. Strings are taken
// verbatim so values containing spaces survive.
func parseValue[T any](raw string) (T, error) {
	var v T
	switch p := any(&v).(type) {
	case *string:
		*p = raw
	case *bool:
		b, err := parseBool(raw)
		if err != nil {
			return v, err
		}
		*p = b
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return v, err
		}
		*p = n
	case *float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return v, err
		}
		*p = n
	case *time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return v, err
		}
		*p = d
	default:
		if _, err := fmt.Sscan(raw, &v); err != nil {
			return v, err
		}
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool value: %s", s)
}

// -------------------------------
// ParsedFlag - generic parsed flag type
// --------------------------------

type ParsedFlag[T any] struct {
	flag  *Flag[T]
	Value T
	Set   bool // true when the value came from the command line
}

func (pf ParsedFlag[T]) GetValue() any  { return pf.Value }
func (pf ParsedFlag[T]) GetFlag() IFlag { return pf.flag }
func (pf ParsedFlag[T]) As() T          { return pf.Value }

// -------------------------------
// Registry
// --------------------------------

// Registry holds the flags of one program. Parse does not exit the process;
// callers decide what to do with ErrHelp and parse errors.
type Registry struct {
	program string
	flags   map[string]IFlag
	order   []string
	aliases map[string]IFlag
}

func New(program string) *Registry {
	return &Registry{
		program: program,
		flags:   make(map[string]IFlag),
		aliases: make(map[string]IFlag),
	}
}

func (r *Registry) Register(f IFlag) error {
	if f.GetName() == "" {
		return errors.New("flag name cannot be empty")
	}
	if _, exists := r.flags[f.GetName()]; exists {
		return fmt.Errorf("flag name %s is already registered", f.GetName())
	}
	if f.GetRequired() && f.GetDefault() != nil {
		return fmt.Errorf("flag --%s cannot be required and have a default value", f.GetName())
	}
	if len(f.GetAliases()) == 0 {
		return fmt.Errorf("flag --%s must have at least one alias", f.GetName())
	}
	for _, alias := range f.GetAliases() {
		switch {
		case alias == "--help" || alias == "-h":
			return fmt.Errorf("alias %s is reserved for help flag", alias)
		case !strings.HasPrefix(alias, "-"):
			return fmt.Errorf("alias %s must start with - or -- per convention", alias)
		}
		if _, exists := r.aliases[alias]; exists {
			return fmt.Errorf("alias %s is already registered for another flag", alias)
		}
	}
	r.flags[f.GetName()] = f
	r.order = append(r.order, f.GetName())
	for _, alias := range f.GetAliases() {
		r.aliases[alias] = f
	}
	return nil
}

// MustRegister panics on an invalid flag definition, which is a programming error.
func (r *Registry) MustRegister(f IFlag) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Parse reads args (without the program name). Values may be given as
// "--flag value" or "--flag=value".
func (r *Registry) Parse(args []string) (map[string]IParsedFlag, error) {
	var (
		parsed     = make(map[string]IParsedFlag)
		positional []string
		pending    IFlag
	)

	for _, arg := range args {
		if pending != nil {
			pf, err := pending.parse(arg)
			if err != nil {
				return nil, flagError(pending, err)
			}
			parsed[pending.GetName()] = markSet(pf)
			pending = nil
			continue
		}
		if arg == "--help" || arg == "-h" {
			return nil, ErrHelp
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		f, ok := r.aliases[name]
		if !ok {
			return nil, fmt.Errorf("unknown flag: %s", name)
		}
		switch {
		case f.GetSwitch() && !hasValue:
			pf, err := f.parse("true")
			if err != nil {
				return nil, flagError(f, err)
			}
			parsed[f.GetName()] = markSet(pf)
		case hasValue:
			pf, err := f.parse(value)
			if err != nil {
				return nil, flagError(f, err)
			}
			parsed[f.GetName()] = markSet(pf)
		default:
			pending = f
		}
	}

	if pending != nil {
		return nil, fmt.Errorf("flag --%s expects a value but none was provided", pending.GetName())
	}

	for _, value := range positional {
		found := false
		for _, name := range r.order {
			f := r.flags[name]
			if _, exists := parsed[name]; exists || !f.GetPositional() {
				continue
			}
			pf, err := f.parse(value)
			if err != nil {
				return nil, flagError(f, err)
			}
			parsed[name] = markSet(pf)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("unexpected positional argument: %s", value)
		}
	}

	for _, name := range r.order {
		f := r.flags[name]
		if _, exists := parsed[name]; exists {
			continue
		}
		if def := f.defaultParsed(); def != nil {
			parsed[name] = def
		} else if f.GetRequired() {
			return nil, flagError(f, errors.New("required flag not set"))
		}
	}

	return parsed, nil
}

// markSet flags a parsed value as coming from the command line.
func markSet(pf IParsedFlag) IParsedFlag {
	switch p := pf.(type) {
	case ParsedFlag[string]:
		p.Set = true
		return p
	case ParsedFlag[bool]:
		p.Set = true
		return p
	case ParsedFlag[int]:
		p.Set = true
		return p
	case ParsedFlag[float64]:
		p.Set = true
		return p
	case ParsedFlag[time.Duration]:
		p.Set = true
		return p
	}
	return pf
}

func flagError(f IFlag, err error) error {
	return fmt.Errorf("error with flag %s (%s): %w", f.GetName(), strings.Join(f.GetAliases(), ", "), err)
}

// -------------------------------
// Usage / Help
// --------------------------------

func (r *Registry) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [flags]\n", r.program)

	termWidth, _, err := xterm.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		termWidth = 80
	}

	const indent = 4
	leftColWidth := 10
	for name := range r.flags {
		if len(name) > leftColWidth {
			leftColWidth = len(name)
		}
	}
	leftColWidth += 2

	descWidth := termWidth - indent - leftColWidth - 1
	if descWidth < 20 {
		descWidth = 20
	}

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	pad := strings.Repeat(" ", indent)
	for _, name := range names {
		f := r.flags[name]
		fmt.Fprintf(w, "%s%-*s %s\n", pad, leftColWidth, name, strings.Join(f.GetAliases(), ", "))
		for _, ln := range wrapText(f.GetDescription(), descWidth) {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", indent+leftColWidth), ln)
		}
		if ev := f.GetExpectedValues(); len(ev) > 0 {
			values := make([]string, len(ev))
			for i, v := range ev {
				values[i] = fmt.Sprintf("%v", v)
				if values[i] == "" {
					values[i] = "<empty>"
				}
			}
			fmt.Fprintf(w, "%s[%s]\n", strings.Repeat(" ", indent+leftColWidth), strings.Join(values, ", "))
		}
		fmt.Fprintln(w)
	}
}

func wrapText(s string, maxWidth int) []string {
	if s == "" || maxWidth <= 0 {
		return nil
	}
	var out []string
	var line strings.Builder
	for _, w := range strings.Fields(s) {
		if line.Len() > 0 && line.Len()+1+len(w) > maxWidth {
			out = append(out, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 {
		out = append(out, line.String())
	}
	return out
}

// -------------------------------
// Helper functions
// --------------------------------

func Optional[T any](v T) *T { return &v }

// Get returns the typed value of a parsed flag, or the zero value when the
// flag is absent or of another type.
func Get[T any](flags map[string]IParsedFlag, name string) T {
	var zero T
	pf, exists := flags[name]
	if !exists {
		return zero
	}
	typed, ok := pf.(ParsedFlag[T])
	if !ok {
		return zero
	}
	return typed.Value
}

// IsSet reports whether the flag was given on the command line rather than
// filled from its default.
func IsSet(flags map[string]IParsedFlag, name string) bool {
	pf, exists := flags[name]
	if !exists {
		return false
	}
	switch p := pf.(type) {
	case ParsedFlag[string]:
		return p.Set
	case ParsedFlag[bool]:
		return p.Set
	case ParsedFlag[int]:
		return p.Set
	case ParsedFlag[float64]:
		return p.Set
	case ParsedFlag[time.Duration]:
		return p.Set
	}
	return false
}
