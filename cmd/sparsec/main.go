// cmd/sparsec/main.go
package main

import (
	"fmt"
	"os"

	"sparsego/internal/session"
)

func main() {
	opts, err := session.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "sparsec: %v\n", err)
		os.Exit(1)
	}
	if len(opts.Sources) == 0 {
		fmt.Fprintln(os.Stderr, "sparsec: no input files")
		os.Exit(1)
	}

	os.Exit(run(opts))
}

func run(opts *session.Options) (code int) {
	s := session.New(opts)

	for _, path := range opts.Sources {
		if err := compileOne(s, path); err != nil {
			fmt.Fprintf(os.Stderr, "sparsec: %v\n", err)
			return 127
		}
	}

	fmt.Fprint(os.Stderr, s.Bag.Dump())
	return s.ExitCode()
}

// compileOne drives one source file through every stage of the compiler's
// pipeline. A panic escaping any stage is caught by Session.Recover and
// surfaces as a named *session.FatalError rather than crashing the
// process.
func compileOne(s *session.Session, path string) (err error) {
	defer s.Recover(&err)

	head, ferr := s.Tokenize(path)
	if ferr != nil {
		return ferr
	}
	head = s.Preprocess(head)

	syms := s.ParseTranslationUnit(head)
	syms = s.EvaluateSymbolList(syms)

	for _, sym := range syms {
		ep := s.LinearizeSymbol(sym)
		if ep == nil {
			continue
		}
		s.Optimize(ep)
	}
	return nil
}
