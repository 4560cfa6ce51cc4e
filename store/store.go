// Package store implements the interactive program store (spec.md §3.3,
// §4.9): an ordered map from BASIC line number to source text with
// renumbering, auto-numbering, ranged listing, statistics, and the
// line-oriented file format from spec.md §6.4. The API surface follows
// original_source/shell/program_manager.{h,cpp}; the ordered container
// is a btree keyed by line number, the idiom the pack's other BASIC
// (other_examples/leftmike-basic__basic.go) uses for its program store.
package store

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/btree"
)

// MaxLineNumber is the largest valid BASIC line number (spec.md §3.3).
const MaxLineNumber = 65535

// Line is one stored program line.
type Line struct {
	Number int
	Code   string
}

// Less orders lines by number for the btree.
func (l Line) Less(than btree.Item) bool {
	return l.Number < than.(Line).Number
}

// ListRange selects a line span for LIST-style queries; an unset end is
// open-ended.
type ListRange struct {
	Start, End         int
	HasStart, HasEnd bool
}

// Stats summarizes a stored program (ProgramManager::ProgramStats).
type Stats struct {
	LineCount       int
	TotalCharacters int
	MinLineNumber   int
	MaxLineNumber   int
	HasGaps         bool
}

// ProgramStore holds the numbered lines of the program being edited.
type ProgramStore struct {
	code     *btree.BTree
	filename string
	modified bool

	autoMode    bool
	autoStart   int
	autoStep    int
	autoCurrent int
}

// New returns an empty store.
func New() *ProgramStore {
	return &ProgramStore{
		code:      btree.New(4),
		autoStart: 10,
		autoStep:  10,
	}
}

// ValidLineNumber reports whether n is a legal BASIC line number.
func ValidLineNumber(n int) bool {
	return n >= 1 && n <= MaxLineNumber
}

// Set stores code at line n, trimming surrounding whitespace. Empty
// trimmed text deletes the line. In auto mode the cursor advances past
// n so the next prompt lands on a free slot.
func (s *ProgramStore) Set(n int, code string) error {
	if !ValidLineNumber(n) {
		return fmt.Errorf("line number %d out of range 1..%d", n, MaxLineNumber)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		s.Delete(n)
		return nil
	}
	s.code.ReplaceOrInsert(Line{Number: n, Code: code})
	s.modified = true
	if s.autoMode && n >= s.autoCurrent {
		s.autoCurrent = n + s.autoStep
		s.advanceAutoPastExisting()
	}
	return nil
}

// Delete removes line n if present.
func (s *ProgramStore) Delete(n int) {
	if s.code.Delete(Line{Number: n}) != nil {
		s.modified = true
	}
}

// Clear removes every line and forgets the filename.
func (s *ProgramStore) Clear() {
	s.code.Clear(false)
	s.filename = ""
	s.modified = false
	s.autoCurrent = s.autoStart
}

// Has reports whether line n exists.
func (s *ProgramStore) Has(n int) bool {
	return s.code.Has(Line{Number: n})
}

// Get returns the code at line n.
func (s *ProgramStore) Get(n int) (string, bool) {
	item := s.code.Get(Line{Number: n})
	if item == nil {
		return "", false
	}
	return item.(Line).Code, true
}

// IsEmpty reports whether the store holds no lines.
func (s *ProgramStore) IsEmpty() bool { return s.code.Len() == 0 }

// LineCount returns the number of stored lines.
func (s *ProgramStore) LineCount() int { return s.code.Len() }

// Modified reports whether the program changed since the last
// load/save/clear.
func (s *ProgramStore) Modified() bool { return s.modified }

// SetModified overrides the modified flag.
func (s *ProgramStore) SetModified(m bool) { s.modified = m }

// Numbers returns every line number in ascending order.
func (s *ProgramStore) Numbers() []int {
	out := make([]int, 0, s.code.Len())
	s.code.Ascend(func(item btree.Item) bool {
		out = append(out, item.(Line).Number)
		return true
	})
	return out
}

// First returns the lowest line number, or 0 when empty.
func (s *ProgramStore) First() int {
	if s.code.Len() == 0 {
		return 0
	}
	return s.code.Min().(Line).Number
}

// Last returns the highest line number, or 0 when empty.
func (s *ProgramStore) Last() int {
	if s.code.Len() == 0 {
		return 0
	}
	return s.code.Max().(Line).Number
}

// Next returns the smallest line number greater than n, or 0.
func (s *ProgramStore) Next(n int) int {
	out := 0
	s.code.AscendGreaterOrEqual(Line{Number: n + 1}, func(item btree.Item) bool {
		out = item.(Line).Number
		return false
	})
	return out
}

// Prev returns the largest line number smaller than n, or 0.
func (s *ProgramStore) Prev(n int) int {
	out := 0
	s.code.DescendLessOrEqual(Line{Number: n - 1}, func(item btree.Item) bool {
		out = item.(Line).Number
		return false
	})
	return out
}

// Lines returns the stored lines inside r, in order.
func (s *ProgramStore) Lines(r ListRange) []Line {
	start := 0
	if r.HasStart {
		start = r.Start
	}
	end := math.MaxInt32
	if r.HasEnd {
		end = r.End
	}
	var out []Line
	s.code.AscendGreaterOrEqual(Line{Number: start}, func(item btree.Item) bool {
		line := item.(Line)
		if line.Number > end {
			return false
		}
		out = append(out, line)
		return true
	})
	return out
}

// AllLines returns every stored line in order.
func (s *ProgramStore) AllLines() []Line {
	return s.Lines(ListRange{})
}

// Generate produces the concatenated program source, one "<n> <code>"
// line per stored line, for the compiler to consume on RUN.
func (s *ProgramStore) Generate() string {
	var b strings.Builder
	s.code.Ascend(func(item btree.Item) bool {
		line := item.(Line)
		fmt.Fprintf(&b, "%d %s\n", line.Number, line.Code)
		return true
	})
	return b.String()
}

// GenerateRange produces source for a ≤ n ≤ b only.
func (s *ProgramStore) GenerateRange(a, b int) string {
	var out strings.Builder
	for _, line := range s.Lines(ListRange{Start: a, End: b, HasStart: true, HasEnd: true}) {
		fmt.Fprintf(&out, "%d %s\n", line.Number, line.Code)
	}
	return out.String()
}

// Statistics summarizes the stored program.
func (s *ProgramStore) Statistics() Stats {
	stats := Stats{}
	numbers := s.Numbers()
	stats.LineCount = len(numbers)
	if len(numbers) == 0 {
		return stats
	}
	stats.MinLineNumber = numbers[0]
	stats.MaxLineNumber = numbers[len(numbers)-1]
	s.code.Ascend(func(item btree.Item) bool {
		stats.TotalCharacters += len(item.(Line).Code)
		return true
	})
	// The program "has gaps" when its line numbers are not one uniform
	// arithmetic progression.
	if len(numbers) > 2 {
		step := numbers[1] - numbers[0]
		for i := 2; i < len(numbers); i++ {
			if numbers[i]-numbers[i-1] != step {
				stats.HasGaps = true
				break
			}
		}
	}
	return stats
}

// Renumber rewrites the program to start at start with the given step,
// rewriting line-number references inside GOTO, GOSUB, trailing
// THEN/ELSE targets, RESTORE, and ON ... GOTO/GOSUB chains. If any line
// cannot be safely rewritten the renumber still proceeds positionally
// without reference rewriting (spec.md §4.9); the return value reports
// whether references were rewritten.
func (s *ProgramStore) Renumber(start, step int) bool {
	if start < 1 {
		start = 10
	}
	if step < 1 {
		step = 10
	}
	old := s.AllLines()
	if len(old) == 0 {
		return true
	}
	if start+(len(old)-1)*step > MaxLineNumber {
		return false
	}

	mapping := make(map[int]int, len(old))
	next := start
	for _, line := range old {
		mapping[line.Number] = next
		next += step
	}

	rewritten := make([]string, len(old))
	ok := true
	for i, line := range old {
		text, lineOK := RewriteReferences(line.Code, mapping)
		if !lineOK {
			ok = false
			break
		}
		rewritten[i] = text
	}

	s.code.Clear(false)
	for i, line := range old {
		code := line.Code
		if ok {
			code = rewritten[i]
		}
		s.code.ReplaceOrInsert(Line{Number: mapping[line.Number], Code: code})
	}
	s.modified = true
	return ok
}

// ---------------------------------------------------------------------------
// Auto-numbering
// ---------------------------------------------------------------------------

// SetAutoMode enables or disables auto-numbering with the given cursor.
func (s *ProgramStore) SetAutoMode(on bool, start, step int) {
	s.autoMode = on
	if start >= 1 {
		s.autoStart = start
	}
	if step >= 1 {
		s.autoStep = step
	}
	s.autoCurrent = s.autoStart
	s.advanceAutoPastExisting()
}

// AutoMode reports whether auto-numbering is active.
func (s *ProgramStore) AutoMode() bool { return s.autoMode }

// NextAuto returns the current auto line number and advances the
// cursor past existing lines until a free slot is found.
func (s *ProgramStore) NextAuto() int {
	s.advanceAutoPastExisting()
	n := s.autoCurrent
	s.autoCurrent += s.autoStep
	return n
}

// PeekAuto returns the auto line number the next stored line would
// get, without consuming it (the prompt shows it; Set advances it).
func (s *ProgramStore) PeekAuto() int {
	s.advanceAutoPastExisting()
	return s.autoCurrent
}

func (s *ProgramStore) advanceAutoPastExisting() {
	if s.autoCurrent < 1 {
		s.autoCurrent = s.autoStart
	}
	for s.Has(s.autoCurrent) && s.autoCurrent <= MaxLineNumber {
		s.autoCurrent += s.autoStep
	}
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// SetFilename records the program's file name.
func (s *ProgramStore) SetFilename(name string) { s.filename = name }

// Filename returns the recorded file name.
func (s *ProgramStore) Filename() string { return s.filename }

// HasFilename reports whether a file name is recorded.
func (s *ProgramStore) HasFilename() bool { return s.filename != "" }

// DefaultExtension appends ".bas" when name contains no "." anywhere,
// including its directory part (spec.md §6.4).
func DefaultExtension(name string) string {
	if !strings.Contains(name, ".") {
		return name + ".bas"
	}
	return name
}

// Save writes the program in the one-line-per-BASIC-line format of
// spec.md §6.4. Writers emit no comments.
func (s *ProgramStore) Save(name string) error {
	name = DefaultExtension(name)
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(s.Generate()); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	s.filename = name
	s.modified = false
	return nil
}

// Load replaces the store's contents with the named file. Lines
// beginning with '#' and blank lines are skipped (spec.md §6.4); lines
// without a leading number are rejected.
func (s *ProgramStore) Load(name string) error {
	name = DefaultExtension(name)
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	loaded := btree.New(4)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		sep := strings.IndexByte(text, ' ')
		numText, code := text, ""
		if sep >= 0 {
			numText, code = text[:sep], strings.TrimSpace(text[sep+1:])
		}
		n, err := strconv.Atoi(numText)
		if err != nil || !ValidLineNumber(n) {
			return fmt.Errorf("%s:%d: invalid line number %q", name, lineNo, numText)
		}
		loaded.ReplaceOrInsert(Line{Number: n, Code: code})
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s.code = loaded
	s.filename = name
	s.modified = false
	return nil
}
