// Command basic is the interactive line-numbered programming
// environment: a liner-backed prompt over the program store, with
// LIST/RUN/RENUM/SAVE/LOAD and friends. Numbered input edits the
// program; commands operate on it.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/albanread/FasterBASICT/compiler"
	"github.com/albanread/FasterBASICT/constants"
	"github.com/albanread/FasterBASICT/diag"
	"github.com/albanread/FasterBASICT/emit"
	"github.com/albanread/FasterBASICT/events"
	"github.com/albanread/FasterBASICT/ir"
	"github.com/albanread/FasterBASICT/registry"
	"github.com/albanread/FasterBASICT/store"
)

const (
	appName     = "basic"
	historyFile = ".fasterbasic_history"
	prompt      = "] "
)

var banner = "FasterBASIC interactive environment\nCtrl+C cancels input, Ctrl+D exits. Type HELP for commands."

const helpText = `
Commands:
  <n> <statement>       Store (or replace) line n; <n> alone deletes it
  LIST [a[-b]]          List the program (optionally a line range)
  RUN                   Compile the program and report the result
  COMPILE [file]        Emit host-runtime script (to file or screen)
  DUMP                  Print the IR listing
  NEW                   Discard the program
  DELETE a[-b]          Delete a line range
  RENUM [start[,step]]  Renumber with reference rewriting
  AUTO [start[,step]]   Toggle automatic line numbering
  SAVE [file]           Save the program (.bas added when no extension)
  LOAD file             Load a program
  STATS                 Program statistics
  VARS                  Symbol table of the last successful RUN
  CONSTANTS             Predefined constant names
  EVENTS                Known event names
  HELP                  This text
  BYE                   Exit
`

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

// session holds the REPL's mutable state.
type session struct {
	prog     *store.ProgramStore
	comp     *compiler.Compiler
	lastGood *compiler.Result
}

func main() {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := &session{
		prog: store.New(),
		comp: compiler.New(registry.NewDefaultTable()),
	}

	for {
		p := prompt
		if s.prog.AutoMode() {
			p = fmt.Sprintf("%d ", s.prog.PeekAuto())
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if err != nil {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(line)

		if s.prog.AutoMode() && !startsWithNumber(trimmed) && !isCommand(trimmed) {
			// In auto mode a bare statement gets the prompted number.
			n, _ := strconv.Atoi(strings.TrimSpace(p))
			if err := s.prog.Set(n, trimmed); err != nil {
				fmt.Fprintln(os.Stderr, red(err.Error()))
			}
			continue
		}

		if startsWithNumber(trimmed) {
			s.storeLine(trimmed)
			continue
		}

		if quit := s.command(trimmed); quit {
			return
		}
	}
}

func startsWithNumber(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

var commandWords = map[string]bool{
	"LIST": true, "RUN": true, "COMPILE": true, "DUMP": true, "NEW": true,
	"DELETE": true, "RENUM": true, "AUTO": true, "SAVE": true, "LOAD": true,
	"STATS": true, "VARS": true, "CONSTANTS": true, "EVENTS": true,
	"HELP": true, "BYE": true, "EXIT": true, "QUIT": true,
}

func isCommand(s string) bool {
	word := strings.ToUpper(strings.Fields(s)[0])
	return commandWords[word]
}

// storeLine handles "<n> <code>" input: store, or delete when the code
// part is empty.
func (s *session) storeLine(input string) {
	sep := strings.IndexByte(input, ' ')
	numText, code := input, ""
	if sep >= 0 {
		numText, code = input[:sep], input[sep+1:]
	}
	n, err := strconv.Atoi(numText)
	if err != nil {
		fmt.Fprintln(os.Stderr, red("invalid line number"))
		return
	}
	if err := s.prog.Set(n, code); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
	}
}

// command dispatches a REPL command; returns true to exit.
func (s *session) command(input string) bool {
	fields := strings.Fields(input)
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "BYE", "EXIT", "QUIT":
		return true
	case "HELP":
		fmt.Print(helpText)
	case "NEW":
		s.prog.Clear()
		s.lastGood = nil
	case "LIST":
		s.list(args)
	case "RUN":
		s.run()
	case "COMPILE":
		s.compileTo(args)
	case "DUMP":
		if res := s.compile(); res != nil {
			ir.Dump(os.Stdout, res.IR)
		}
	case "DELETE":
		s.deleteRange(args)
	case "RENUM":
		start, step := parsePair(args, 10, 10)
		if !s.prog.Renumber(start, step) {
			fmt.Println("renumbered positionally; references left untouched")
		}
	case "AUTO":
		if s.prog.AutoMode() {
			s.prog.SetAutoMode(false, 0, 0)
			fmt.Println("auto numbering off")
		} else {
			start, step := parsePair(args, 10, 10)
			s.prog.SetAutoMode(true, start, step)
			fmt.Println("auto numbering on")
		}
	case "SAVE":
		name := s.prog.Filename()
		if len(args) > 0 {
			name = args[0]
		}
		if name == "" {
			fmt.Fprintln(os.Stderr, red("no filename; use SAVE <file>"))
			return false
		}
		if err := s.prog.Save(name); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		}
	case "LOAD":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, red("usage: LOAD <file>"))
			return false
		}
		if err := s.prog.Load(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		}
	case "STATS":
		st := s.prog.Statistics()
		fmt.Printf("%d line(s), %d character(s), lines %d-%d, gaps: %v\n",
			st.LineCount, st.TotalCharacters, st.MinLineNumber, st.MaxLineNumber, st.HasGaps)
	case "VARS":
		if s.lastGood == nil {
			fmt.Println("no successful compile yet; RUN first")
			return false
		}
		fmt.Print(s.lastGood.Symbols.String())
	case "CONSTANTS":
		cm := constants.New()
		cm.AddPredefined()
		for _, name := range cm.Names() {
			fmt.Println(name)
		}
	case "EVENTS":
		for _, name := range events.AllNames() {
			fmt.Println(name)
		}
	default:
		fmt.Fprintln(os.Stderr, red("unknown command; type HELP"))
	}
	return false
}

func (s *session) list(args []string) {
	if len(args) == 0 {
		fmt.Print(s.prog.FormattedListing())
		return
	}
	a, b, ok := parseRange(args[0])
	if !ok {
		fmt.Fprintln(os.Stderr, red("usage: LIST [a[-b]]"))
		return
	}
	fmt.Print(s.prog.GenerateRange(a, b))
}

// compile runs the pipeline over the stored program, rendering any
// diagnostics; returns nil on failure.
func (s *session) compile() *compiler.Result {
	src := s.prog.Generate()
	res := s.comp.Compile(s.prog.Filename(), src)
	for _, d := range res.Diagnostics {
		out := diag.Render(src, d)
		if d.Severity == diag.Error {
			fmt.Fprint(os.Stderr, red(out))
		} else {
			fmt.Fprint(os.Stderr, out)
		}
	}
	if !res.OK() {
		return nil
	}
	s.lastGood = res
	return res
}

func (s *session) run() {
	res := s.compile()
	if res == nil {
		return
	}
	fmt.Println(green(fmt.Sprintf("ok: %d instruction(s), %d block(s)",
		res.IR.Size(), res.IR.BlockCount)))
}

func (s *session) compileTo(args []string) {
	res := s.compile()
	if res == nil {
		return
	}
	script, err := emit.New(emit.Options{Comments: true}).Emit(res.IR)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	if len(args) == 0 {
		fmt.Print(script)
		return
	}
	if err := os.WriteFile(args[0], []byte(script), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
	}
}

func (s *session) deleteRange(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, red("usage: DELETE a[-b]"))
		return
	}
	a, b, ok := parseRange(args[0])
	if !ok {
		fmt.Fprintln(os.Stderr, red("usage: DELETE a[-b]"))
		return
	}
	for _, line := range s.prog.Lines(store.ListRange{Start: a, End: b, HasStart: true, HasEnd: true}) {
		s.prog.Delete(line.Number)
	}
}

// parseRange parses "a" or "a-b".
func parseRange(s string) (int, int, bool) {
	parts := strings.SplitN(s, "-", 2)
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	b := a
	if len(parts) == 2 {
		b, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, false
		}
	}
	return a, b, true
}

// parsePair parses "start" or "start,step" with defaults.
func parsePair(args []string, defStart, defStep int) (int, int) {
	start, step := defStart, defStep
	if len(args) > 0 {
		parts := strings.SplitN(args[0], ",", 2)
		if n, err := strconv.Atoi(parts[0]); err == nil {
			start = n
		}
		if len(parts) == 2 {
			if n, err := strconv.Atoi(parts[1]); err == nil {
				step = n
			}
		}
	}
	return start, step
}
