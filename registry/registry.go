// Package registry implements the command registry (spec.md §4.3): a
// process-wide, read-only-during-compilation table of host-provided
// commands and functions, keyed by canonical uppercase name. It is
// grounded on the teacher's RegisterNative idiom (interpreter.go) —
// name + typed ParamSpec list + return type registered up front — but
// is reshaped around BASIC's fixed ast.Type set instead of MindScript's
// structural type expressions, and around a Table value owned by the
// host instead of a process-global map (spec.md §9 prefers explicit
// context objects to singletons).
package registry

import (
	"sort"
	"strings"

	"github.com/albanread/FasterBASICT/ast"
)

// Kind distinguishes a registry entry that is called as a statement
// (Command) from one called as an expression (Function).
type Kind int

const (
	Command Kind = iota
	Function
)

func (k Kind) String() string {
	if k == Function {
		return "FUNCTION"
	}
	return "COMMAND"
}

// Param describes one formal parameter of a registry entry.
type Param struct {
	Name     string
	Type     ast.Type
	Optional bool
	Default  interface{} // meaningful only when Optional
}

// Category groups registry entries for help/introspection purposes,
// e.g. "GRAPHICS", "SOUND", "STRING". Free-form; not validated.
type Category string

// Entry is one registered command or function.
type Entry struct {
	Name       string
	Category   Category
	Kind       Kind
	Params     []Param
	ReturnType ast.Type // ast.Void for a Command
}

// MinArgs returns the fewest arguments a call to this entry can supply.
func (e Entry) MinArgs() int {
	n := 0
	for _, p := range e.Params {
		if p.Optional {
			break
		}
		n++
	}
	return n
}

// MaxArgs returns the most arguments a call to this entry can supply.
func (e Entry) MaxArgs() int { return len(e.Params) }

// Table is the registry itself: built up once by the host during
// initialization, then treated as read-only for the rest of
// compilation (spec.md §4.3's concurrency contract — no locking is
// needed because nothing mutates it after setup).
type Table struct {
	entries map[string]Entry
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Register adds or replaces the entry for e.Name (canonicalized to
// uppercase).
func (t *Table) Register(e Entry) {
	e.Name = strings.ToUpper(e.Name)
	t.entries[e.Name] = e
}

// Lookup returns the entry named by name (case-insensitive) and true,
// or the zero Entry and false if no such entry is registered.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[strings.ToUpper(name)]
	return e, ok
}

// IsFunction reports whether name is registered as a Function.
func (t *Table) IsFunction(name string) bool {
	e, ok := t.Lookup(name)
	return ok && e.Kind == Function
}

// IsCommand reports whether name is registered as a Command.
func (t *Table) IsCommand(name string) bool {
	e, ok := t.Lookup(name)
	return ok && e.Kind == Command
}

// Names returns every registered name, sorted, for help/introspection.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
