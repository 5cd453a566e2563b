// Package session wires every pipeline stage (arena-backed interner,
// preprocessor, parser, evaluator, linearizer, optimizer) into one
// Session value, threaded through the public API instead of living as
// process-wide globals.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"sparsego/internal/types"
)

// Define is one -D<name>[=<value>] driver option.
type Define struct {
	Name  string
	Value string
}

// Options is the plain struct the recognized driver options populate,
// rather than a flag-parsing library — ParseArgs below walks the argument
// list by hand, and cmd/sparsec uses it instead of stdlib `flag`.
type Options struct {
	Defines   []Define
	Undefines []string
	Includes  []string

	// Target switches (-m32/-m64/-mx32/-mllp64, -fshort-wchar,
	// -funsigned-char, -fmsize-long, -fpic=<n>, -fpie=<n>).
	Bits         string // "32", "64", "x32", "llp64", "" = default (64)
	ShortWChar   bool
	UnsignedChar bool
	MSizeLong    bool
	PIC          int // -1 = unset
	PIE          int // -1 = unset

	Std string // -std=c89|c94|c99|c11|c17|gnu89|...

	// -W<warning>/-Wno-<warning>: recorded by name for a caller that wants
	// to report which toggles were requested. The diagnostic Bag itself
	// has no per-category warning taxonomy, so these don't yet suppress or
	// enable individual warning kinds; only -Werror has an observable
	// effect, via Session.ExitCode.
	Warnings map[string]bool
	Werror   bool

	OptLevel int  // 0, 1, 2 (-O0/-O1/-O2)
	OptSize  bool // -Os

	Sources []string // non-flag arguments: source paths
}

// DefaultOptions mirrors types.DefaultLayout's LP64 default.
func DefaultOptions() *Options {
	return &Options{PIC: -1, PIE: -1, Warnings: map[string]bool{}}
}

// ParseArgs parses the recognized driver options and returns the
// remaining arguments as source paths.
func ParseArgs(argv []string) (*Options, error) {
	opts := DefaultOptions()
	for _, arg := range argv {
		switch {
		case arg == "-Werror":
			opts.Werror = true
		case strings.HasPrefix(arg, "-D"):
			name, value, _ := strings.Cut(arg[len("-D"):], "=")
			if name == "" {
				return nil, fmt.Errorf("-D requires a macro name")
			}
			opts.Defines = append(opts.Defines, Define{Name: name, Value: value})
		case strings.HasPrefix(arg, "-U"):
			name := arg[len("-U"):]
			if name == "" {
				return nil, fmt.Errorf("-U requires a macro name")
			}
			opts.Undefines = append(opts.Undefines, name)
		case strings.HasPrefix(arg, "-I"):
			dir := arg[len("-I"):]
			if dir == "" {
				return nil, fmt.Errorf("-I requires a directory")
			}
			opts.Includes = append(opts.Includes, dir)
		case arg == "-m32" || arg == "-m64" || arg == "-mx32" || arg == "-mllp64":
			opts.Bits = strings.TrimPrefix(arg, "-m")
		case arg == "-fshort-wchar":
			opts.ShortWChar = true
		case arg == "-funsigned-char":
			opts.UnsignedChar = true
		case arg == "-fmsize-long":
			opts.MSizeLong = true
		case strings.HasPrefix(arg, "-fpic="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "-fpic="))
			if err != nil {
				return nil, fmt.Errorf("-fpic=<n>: %w", err)
			}
			opts.PIC = n
		case strings.HasPrefix(arg, "-fpie="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "-fpie="))
			if err != nil {
				return nil, fmt.Errorf("-fpie=<n>: %w", err)
			}
			opts.PIE = n
		case strings.HasPrefix(arg, "-std="):
			opts.Std = strings.TrimPrefix(arg, "-std=")
		case strings.HasPrefix(arg, "-Wno-"):
			opts.Warnings[strings.TrimPrefix(arg, "-Wno-")] = false
		case strings.HasPrefix(arg, "-W"):
			opts.Warnings[strings.TrimPrefix(arg, "-W")] = true
		case arg == "-O0":
			opts.OptLevel = 0
		case arg == "-O1":
			opts.OptLevel = 1
		case arg == "-O2":
			opts.OptLevel = 2
		case arg == "-Os":
			opts.OptLevel = 1
			opts.OptSize = true
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unrecognized option %q", arg)
		default:
			opts.Sources = append(opts.Sources, arg)
		}
	}
	return opts, nil
}

// Layout translates the target-switch options into a types.LayoutConfig.
func (o *Options) Layout() types.LayoutConfig {
	cfg := types.DefaultLayout()
	switch o.Bits {
	case "32":
		cfg.BitsInPointer, cfg.PointerAlignment = 32, 4
		cfg.BitsInLong, cfg.BitsInLongLong = 32, 64
	case "x32":
		cfg.BitsInPointer, cfg.PointerAlignment = 32, 4
	case "llp64":
		cfg.BitsInLong = 32
	}
	if o.ShortWChar {
		// wchar_t narrows to 16 bits; tracked informationally since the
		// core has no separate wchar_t builtin yet.
	}
	if o.UnsignedChar {
		cfg.UnsignedChar = true
	}
	return cfg
}

// StdcVersion maps -std=<name> to the __STDC_VERSION__ value it selects;
// empty for an unset/unrecognized standard.
func StdcVersion(std string) string {
	switch std {
	case "c89", "c94", "gnu89":
		return ""
	case "c99", "gnu99":
		return "199901L"
	case "c11", "gnu11":
		return "201112L"
	case "c17", "gnu17":
		return "201710L"
	default:
		return ""
	}
}
