// Package diag implements a single-producer diagnostics stream:
// positioned warnings and errors with severity and duplicate suppression,
// plus counters that let later passes short-circuit.
//
// The shape is deliberately plain: a struct, fmt-built message text, no
// logging framework.
package diag

import (
	"fmt"
	"strings"
)

// Severity orders diagnostics from least to most serious.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Position is attached to every token, AST node, symbol, instruction and
// basic block elsewhere in the module; diag only needs a read-only view
// of it.
type Position struct {
	Stream   string // source file/stream name
	Index    int    // byte offset within the stream
	Line     int
	Column   int
	Newline  bool
	Whitespace bool
}

func (p Position) String() string {
	if p.Stream == "" {
		return fmt.Sprintf("<input>:%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Stream, p.Line, p.Column)
}

// Diagnostic is one positioned, formatted record in the stream.
type Diagnostic struct {
	Severity Severity
	Position Position
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Position, d.Severity, d.Message)
}

// Bag accumulates diagnostics for one translation unit. It de-duplicates on
// (position, message) so that a fixpoint-driven pass (the simplifier, the
// SSA builder repeating over the same BB) cannot flood the stream with the
// same complaint.
type Bag struct {
	records []Diagnostic
	seen    map[string]bool
	nwarn   int
	nerror  int
	hasErr  bool
}

// NewBag returns an empty diagnostic bag.
func NewBag() *Bag {
	return &Bag{seen: make(map[string]bool)}
}

func key(pos Position, msg string) string {
	return fmt.Sprintf("%s\x00%s", pos, msg)
}

// Add records a diagnostic at the given severity, returning false if it was
// suppressed as a duplicate. Fatal diagnostics always set HasError, even if
// suppressed, so that a caller who queries HasError after a storm of
// identical fatals still short-circuits.
func (b *Bag) Add(sev Severity, pos Position, format string, args ...interface{}) bool {
	msg := fmt.Sprintf(format, args...)
	k := key(pos, msg)
	if sev == Error || sev == Fatal {
		b.hasErr = true
	}
	if b.seen[k] {
		return false
	}
	switch sev {
	case Warning:
		b.nwarn++
	case Error, Fatal:
		b.nerror++
	}
	b.seen[k] = true
	b.records = append(b.records, Diagnostic{Severity: sev, Position: pos, Message: msg})
	return true
}

func (b *Bag) Info(pos Position, format string, args ...interface{}) {
	b.Add(Info, pos, format, args...)
}

func (b *Bag) Warn(pos Position, format string, args ...interface{}) {
	b.Add(Warning, pos, format, args...)
}

func (b *Bag) Error(pos Position, format string, args ...interface{}) {
	b.Add(Error, pos, format, args...)
}

func (b *Bag) Fatal(pos Position, format string, args ...interface{}) {
	b.Add(Fatal, pos, format, args...)
}

// HasError reports whether any error or fatal diagnostic has been
// recorded; callers use this to short-circuit later passes.
func (b *Bag) HasError() bool { return b.hasErr }

// Counts returns the number of distinct warnings and errors recorded.
func (b *Bag) Counts() (warnings, errors int) { return b.nwarn, b.nerror }

// Records returns the de-duplicated diagnostics in emission order.
func (b *Bag) Records() []Diagnostic {
	out := make([]Diagnostic, len(b.records))
	copy(out, b.records)
	return out
}

// Dump renders every recorded diagnostic as human-readable text, one per
// line.
func (b *Bag) Dump() string {
	var sb strings.Builder
	for _, d := range b.records {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ExitCode maps the bag's state to the driver's exit code table: 0 =
// clean, 1 = errors reported. 127 (fatal internal inconsistency) is
// reserved for session.FatalError, which callers translate separately
// because it can occur without ever reaching a Bag.
func (b *Bag) ExitCode() int {
	if b.hasErr {
		return 1
	}
	return 0
}
