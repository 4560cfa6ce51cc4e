// Package constants implements the compile-time constants manager
// (spec.md §4.4), grounded on original_source/runtime/ConstantsManager.{h,cpp}.
// Constants are resolved at semantic-analysis time into integer indices
// so the IR can refer to them by index via LOAD_CONST rather than by
// string-keyed lookup on a hot path.
package constants

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the closed set of constant payload types: int64, float64, or
// string, mirroring the original's std::variant<int64_t, double, string>.
type Value struct {
	kind valueKind
	i    int64
	f    float64
	s    string
}

type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindString
)

func IntValue(v int64) Value    { return Value{kind: kindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: kindFloat, f: v} }
func StringValue(v string) Value { return Value{kind: kindString, s: v} }

// IsInt reports whether the value holds an int64 payload.
func (v Value) IsInt() bool { return v.kind == kindInt }

// IsFloat reports whether the value holds a float64 payload.
func (v Value) IsFloat() bool { return v.kind == kindFloat }

// IsString reports whether the value holds a string payload.
func (v Value) IsString() bool { return v.kind == kindString }

// IsNumeric reports whether the value is an int or a float.
func (v Value) IsNumeric() bool { return v.kind == kindInt || v.kind == kindFloat }

// Int returns the raw int64 payload (zero for other kinds).
func (v Value) Int() int64 { return v.i }

// Float returns the raw float64 payload (zero for other kinds).
func (v Value) Float() float64 { return v.f }

// Str returns the raw string payload (empty for other kinds).
func (v Value) Str() string { return v.s }

// AsInt coerces the value to int64: floats truncate, strings parse
// best-effort and fall back to 0, matching VAL's dialect behavior.
func (v Value) AsInt() int64 {
	switch v.kind {
	case kindInt:
		return v.i
	case kindFloat:
		return int64(v.f)
	default:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	}
}

// AsFloat coerces the value to float64 with the same best-effort string
// parsing as AsInt.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case kindFloat:
		return v.f
	case kindInt:
		return float64(v.i)
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0
		}
		return f
	}
}

// AsString coerces the value to its textual form.
func (v Value) AsString() string {
	switch v.kind {
	case kindString:
		return v.s
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	}
}

// Manager is an integer-indexed store of compile-time constants with a
// name-to-index side index, preserving insertion order for Names().
type Manager struct {
	values  []Value
	byName  map[string]int
	ordered []string
}

// New returns an empty Manager with room for the typical constant count
// (the predefined table plus a handful of user CONSTANT declarations).
func New() *Manager {
	return &Manager{
		values: make([]Value, 0, 128),
		byName: make(map[string]int, 128),
	}
}

// Add inserts or updates the named constant and returns its index. A
// second Add with the same name updates the value in place and returns
// the same index, matching the original's upsert semantics.
func (m *Manager) Add(name string, v Value) int {
	if idx, ok := m.byName[name]; ok {
		m.values[idx] = v
		return idx
	}
	idx := len(m.values)
	m.values = append(m.values, v)
	m.byName[name] = idx
	m.ordered = append(m.ordered, name)
	return idx
}

// Get returns the value at index, or the zero Value and false if the
// index is out of range.
func (m *Manager) Get(index int) (Value, bool) {
	if index < 0 || index >= len(m.values) {
		return Value{}, false
	}
	return m.values[index], true
}

// GetAsInt coerces the value at index to int64. Out-of-range indices and
// failed string-to-int conversions return 0.
func (m *Manager) GetAsInt(index int) int64 {
	v, ok := m.Get(index)
	if !ok {
		return 0
	}
	switch v.kind {
	case kindInt:
		return v.i
	case kindFloat:
		return int64(v.f)
	default:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
}

// GetAsDouble coerces the value at index to float64.
func (m *Manager) GetAsDouble(index int) float64 {
	v, ok := m.Get(index)
	if !ok {
		return 0
	}
	switch v.kind {
	case kindFloat:
		return v.f
	case kindInt:
		return float64(v.i)
	default:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0
		}
		return f
	}
}

// GetAsString coerces the value at index to its string representation.
func (m *Manager) GetAsString(index int) string {
	v, ok := m.Get(index)
	if !ok {
		return ""
	}
	switch v.kind {
	case kindString:
		return v.s
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	}
}

// Has reports whether name has been added.
func (m *Manager) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// IndexOf returns the index of name, or -1 if it has not been added.
func (m *Manager) IndexOf(name string) int {
	if idx, ok := m.byName[name]; ok {
		return idx
	}
	return -1
}

// Count returns the number of constants currently stored.
func (m *Manager) Count() int { return len(m.values) }

// Clear removes every constant.
func (m *Manager) Clear() {
	m.values = m.values[:0]
	m.byName = make(map[string]int, 128)
	m.ordered = m.ordered[:0]
}

// CopyFrom replaces m's contents with a copy of other's, preserving
// indices, so a fresh Manager seeded with CopyFrom(predefined) starts
// every compilation from the same baseline.
func (m *Manager) CopyFrom(other *Manager) {
	m.values = append(m.values[:0], other.values...)
	m.byName = make(map[string]int, len(other.byName))
	for k, v := range other.byName {
		m.byName[k] = v
	}
	m.ordered = append(m.ordered[:0], other.ordered...)
}

// Names returns every constant name in insertion order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// String renders the value at index for diagnostics, e.g. constant-pool
// dumps alongside ir.Dump.
func (m *Manager) String(index int) string {
	v, ok := m.Get(index)
	if !ok {
		return fmt.Sprintf("<invalid const %d>", index)
	}
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return strconv.Quote(v.s)
	}
}

// AddPredefined populates the fixed table of mathematical, boolean,
// display-mode, color, palette, waveform, and pattern constants from
// spec.md §4.4, grounded on ConstantsManager::addPredefinedConstants.
func (m *Manager) AddPredefined() {
	// Mathematical constants
	m.Add("PI", FloatValue(3.14159265358979323846))
	m.Add("E", FloatValue(2.71828182845904523536))
	m.Add("SQRT2", FloatValue(1.41421356237309504880))
	m.Add("SQRT3", FloatValue(1.73205080756887729353))
	m.Add("GOLDEN_RATIO", FloatValue(1.61803398874989484820))

	// Booleans
	m.Add("TRUE", IntValue(1))
	m.Add("FALSE", IntValue(0))

	// Display modes
	m.Add("TEXT", IntValue(0))
	m.Add("LORES", IntValue(1))
	m.Add("MIDRES", IntValue(2))
	m.Add("HIRES", IntValue(3))
	m.Add("ULTRARES", IntValue(4))

	// 24-bit RGB colors
	m.Add("BLACK", IntValue(0x000000))
	m.Add("WHITE", IntValue(0xFFFFFF))
	m.Add("RED", IntValue(0xFF0000))
	m.Add("GREEN", IntValue(0x00FF00))
	m.Add("BLUE", IntValue(0x0000FF))
	m.Add("YELLOW", IntValue(0xFFFF00))
	m.Add("CYAN", IntValue(0x00FFFF))
	m.Add("MAGENTA", IntValue(0xFF00FF))

	// 32-bit RGBA, fully opaque
	m.Add("SOLID_BLACK", IntValue(0x000000FF))
	m.Add("SOLID_WHITE", IntValue(0xFFFFFFFF))
	m.Add("SOLID_RED", IntValue(0xFF0000FF))
	m.Add("SOLID_GREEN", IntValue(0x00FF00FF))
	m.Add("SOLID_BLUE", IntValue(0x0000FFFF))
	m.Add("SOLID_YELLOW", IntValue(0xFFFF00FF))
	m.Add("SOLID_CYAN", IntValue(0x00FFFFFF))
	m.Add("SOLID_MAGENTA", IntValue(0xFF00FFFF))
	m.Add("CLEAR_BLACK", IntValue(0x00000000))

	// C64 palette, ARGB
	c64 := []struct {
		name string
		v    int64
	}{
		{"COLOUR_0", 0xFF000000}, {"COLOUR_1", 0xFFFFFFFF},
		{"COLOUR_2", 0xFF880000}, {"COLOUR_3", 0xFFAAFFEE},
		{"COLOUR_4", 0xFFCC44CC}, {"COLOUR_5", 0xFF00CC55},
		{"COLOUR_6", 0xFF0000AA}, {"COLOUR_7", 0xFFEEEE77},
		{"COLOUR_8", 0xFFDD8855}, {"COLOUR_9", 0xFF664400},
		{"COLOUR_10", 0xFFFF7777}, {"COLOUR_11", 0xFF333333},
		{"COLOUR_12", 0xFF777777}, {"COLOUR_13", 0xFFAAFF66},
		{"COLOUR_14", 0xFF0088FF}, {"COLOUR_15", 0xFFBBBBBB},
	}
	for _, c := range c64 {
		m.Add(c.name, IntValue(c.v))
	}

	// Audio waveforms
	waves := []string{"WAVE_SILENCE", "WAVE_SINE", "WAVE_SQUARE", "WAVE_SAWTOOTH",
		"WAVE_TRIANGLE", "WAVE_NOISE", "WAVE_PULSE", "WAVE_PHYSICAL"}
	for i, name := range waves {
		m.Add(name, IntValue(int64(i)))
	}

	// Physical models
	models := []string{"MODEL_PLUCKED_STRING", "MODEL_STRUCK_BAR", "MODEL_BLOWN_TUBE",
		"MODEL_DRUMHEAD", "MODEL_GLASS"}
	for i, name := range models {
		m.Add(name, IntValue(int64(i)))
	}

	// Filters
	filters := []string{"FILTER_NONE", "FILTER_LOWPASS", "FILTER_HIGHPASS",
		"FILTER_BANDPASS", "FILTER_NOTCH"}
	for i, name := range filters {
		m.Add(name, IntValue(int64(i)))
	}

	// LFO waveforms
	lfos := []string{"LFO_SINE", "LFO_TRIANGLE", "LFO_SQUARE", "LFO_SAWTOOTH", "LFO_RANDOM"}
	for i, name := range lfos {
		m.Add(name, IntValue(int64(i)))
	}

	// Rectangle gradient modes
	gradients := []string{"ST_GRADIENT_SOLID", "ST_GRADIENT_HORIZONTAL", "ST_GRADIENT_VERTICAL",
		"ST_GRADIENT_DIAGONAL_TL_BR", "ST_GRADIENT_DIAGONAL_TR_BL", "ST_GRADIENT_RADIAL",
		"ST_GRADIENT_FOUR_CORNER", "ST_GRADIENT_THREE_POINT"}
	for i, name := range gradients {
		m.Add(name, IntValue(int64(i)))
	}

	// Rectangle procedural patterns
	patterns := []string{"ST_PATTERN_OUTLINE", "ST_PATTERN_DASHED_OUTLINE",
		"ST_PATTERN_HORIZONTAL_STRIPES", "ST_PATTERN_VERTICAL_STRIPES",
		"ST_PATTERN_DIAGONAL_STRIPES", "ST_PATTERN_CHECKERBOARD", "ST_PATTERN_DOTS",
		"ST_PATTERN_CROSSHATCH", "ST_PATTERN_ROUNDED_CORNERS", "ST_PATTERN_GRID"}
	for i, name := range patterns {
		m.Add(name, IntValue(int64(100+i)))
	}
}
