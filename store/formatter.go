package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/albanread/FasterBASICT/token"
)

// refKeywords introduce a trailing line-number reference that renumber
// must rewrite (spec.md §4.9): GOTO, GOSUB, RESTORE, and THEN/ELSE with
// a bare line number.
var refKeywords = map[string]bool{
	"GOTO": true, "GOSUB": true, "RESTORE": true, "THEN": true, "ELSE": true,
}

// RewriteReferences rewrites every line-number reference in one line of
// code according to mapping, leaving all other bytes untouched so the
// rewrite is idempotent. It returns false when the line cannot be
// rewritten safely (an unterminated string literal would risk
// corrupting text that merely looks like a reference); callers then
// fall back to positional-only renumbering. Grounded on
// original_source/src/basic_formatter_lib.cpp's replaceLineRefs.
func RewriteReferences(code string, mapping map[int]int) (string, bool) {
	var out strings.Builder
	i := 0
	n := len(code)

	copyByte := func() {
		out.WriteByte(code[i])
		i++
	}

	// replaceNumber copies or rewrites the digit run at i.
	replaceNumber := func() {
		start := i
		for i < n && code[i] >= '0' && code[i] <= '9' {
			i++
		}
		old, err := strconv.Atoi(code[start:i])
		if err == nil {
			if renumbered, ok := mapping[old]; ok {
				out.WriteString(strconv.Itoa(renumbered))
				return
			}
		}
		out.WriteString(code[start:i])
	}

	// consumeTargets handles the reference position after a keyword:
	// a line number, then for GOTO/GOSUB any ", number" chain (ON ...
	// GOTO 10, 20, 30). Non-numeric targets (labels, statements) pass
	// through untouched.
	consumeTargets := func(chain bool) {
		for {
			for i < n && (code[i] == ' ' || code[i] == '\t') {
				copyByte()
			}
			if i >= n || code[i] < '0' || code[i] > '9' {
				return
			}
			replaceNumber()
			if !chain {
				return
			}
			j := i
			for j < n && (code[j] == ' ' || code[j] == '\t') {
				j++
			}
			if j >= n || code[j] != ',' {
				return
			}
			for i <= j {
				copyByte()
			}
		}
	}

	for i < n {
		c := code[i]
		switch {
		case c == '"':
			copyByte()
			closed := false
			for i < n {
				if code[i] == '\\' && i+1 < n {
					copyByte()
					copyByte()
					continue
				}
				if code[i] == '"' {
					copyByte()
					closed = true
					break
				}
				copyByte()
			}
			if !closed {
				return "", false
			}
		case c == '\'':
			// Comment: the rest of the line is prose, never a reference.
			out.WriteString(code[i:])
			i = n
		case isWordStart(c):
			start := i
			for i < n && isWordByte(code[i]) {
				i++
			}
			word := code[start:i]
			out.WriteString(word)
			upper := strings.ToUpper(word)
			if upper == "REM" {
				out.WriteString(code[i:])
				i = n
				continue
			}
			if refKeywords[upper] {
				// THEN GOTO / ELSE GOSUB defer to the inner keyword.
				j := i
				for j < n && (code[j] == ' ' || code[j] == '\t') {
					j++
				}
				if (upper == "THEN" || upper == "ELSE") && startsWithJumpKeyword(code[j:]) {
					continue
				}
				consumeTargets(upper == "GOTO" || upper == "GOSUB")
			}
		default:
			copyByte()
		}
	}
	return out.String(), true
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func startsWithJumpKeyword(s string) bool {
	for _, kw := range []string{"GOTO", "GOSUB"} {
		if len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], kw) {
			rest := s[len(kw):]
			if rest == "" || !isWordByte(rest[0]) {
				return true
			}
		}
	}
	return false
}

// FormattedListing renders the program with block-structure
// indentation (purely cosmetic; the stored text is unchanged), using
// the opener/closer/middle keyword tables from package token.
// Grounded on basic_formatter_lib.cpp's calculateIndent.
func (s *ProgramStore) FormattedListing() string {
	var b strings.Builder
	indent := 0
	for _, line := range s.AllLines() {
		words := leadingWords(line.Code)
		level := indent
		if len(words) > 0 {
			first := words[0]
			if token.BlockCloseKeywords[first] || token.BlockMiddleKeywords[first] {
				level--
			}
		}
		if level < 0 {
			level = 0
		}
		fmt.Fprintf(&b, "%5d %s%s\n", line.Number, strings.Repeat("  ", level), line.Code)
		indent = nextIndent(indent, line.Code, words)
	}
	return b.String()
}

// nextIndent computes the indent level after a line.
func nextIndent(indent int, code string, words []string) int {
	if len(words) == 0 {
		return indent
	}
	first := words[0]
	switch {
	case first == "IF":
		// Only a block IF (line ends at THEN) opens an indent level;
		// a single-line IF closes on the same line.
		if strings.EqualFold(lastWord(code), "THEN") {
			indent++
		}
	case token.BlockOpenKeywords[first]:
		indent++
	case token.BlockCloseKeywords[first]:
		indent--
	}
	if indent < 0 {
		indent = 0
	}
	return indent
}

// leadingWords returns the first two uppercased words of a code line.
func leadingWords(code string) []string {
	fields := strings.Fields(code)
	if len(fields) > 2 {
		fields = fields[:2]
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToUpper(strings.TrimRight(f, ":"))
	}
	return out
}

func lastWord(code string) string {
	fields := strings.Fields(code)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
