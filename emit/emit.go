// Package emit turns an IR program into source text for the embeddable
// host runtime (spec.md §4.8). The emitter honors two contracts: every
// IR instruction maps to a deterministic span of output (comments
// omittable via Options), and no semantics are added beyond what the IR
// specifies — every runtime facility (printing, DATA, file I/O,
// constants lookup, structured-conditional gating) is referenced purely
// by the names the command/constants managers expose, under the "fb."
// runtime namespace.
package emit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/albanread/FasterBASICT/ir"
)

// Options configures the text emitter.
type Options struct {
	// Comments interleaves provenance comments (source line, block id)
	// with the emitted code.
	Comments bool

	// RuntimePrefix is the namespace the host runtime's facilities live
	// under; defaults to "fb".
	RuntimePrefix string
}

// Emitter is the contract the compiler pipeline depends on: any
// consumer of IR that renders target text.
type Emitter interface {
	Emit(p *ir.Program) (string, error)
}

// ScriptEmitter is the concrete text emitter.
type ScriptEmitter struct {
	opts Options
}

// New returns a ScriptEmitter with the given options.
func New(opts Options) *ScriptEmitter {
	if opts.RuntimePrefix == "" {
		opts.RuntimePrefix = "fb"
	}
	return &ScriptEmitter{opts: opts}
}

// sanitizeName rewrites a BASIC identifier (possibly sigil-suffixed)
// into a host-script identifier, matching the original's name mangling:
// A$ -> A_STRING, N% -> N_INT, D# -> D_DOUBLE, F! -> F_FLOAT.
func sanitizeName(name string) string {
	if name == "" {
		return name
	}
	switch name[len(name)-1] {
	case '$':
		return name[:len(name)-1] + "_STRING"
	case '%':
		return name[:len(name)-1] + "_INT"
	case '#':
		return name[:len(name)-1] + "_DOUBLE"
	case '!':
		return name[:len(name)-1] + "_FLOAT"
	case '&':
		return name[:len(name)-1] + "_LONG"
	}
	return name
}

// Emit renders the whole program: a prologue registering the DATA
// segment and option flags, then one deterministic span per
// instruction with labels interleaved at their bound addresses.
func (e *ScriptEmitter) Emit(p *ir.Program) (string, error) {
	var b strings.Builder
	e.prologue(&b, p)

	labelsAt := make(map[int][]int)
	for id, addr := range p.Labels {
		labelsAt[addr] = append(labelsAt[addr], id)
	}
	for _, ids := range labelsAt {
		sort.Ints(ids)
	}

	for addr, in := range p.Instructions {
		for _, id := range labelsAt[addr] {
			fmt.Fprintf(&b, "::L%d::\n", id)
		}
		if e.opts.Comments && in.SourceLine > 0 {
			fmt.Fprintf(&b, "-- line %d block %d\n", in.SourceLine, in.BlockID)
		}
		if err := e.instruction(&b, p, in); err != nil {
			return "", err
		}
	}
	for _, id := range labelsAt[len(p.Instructions)] {
		fmt.Fprintf(&b, "::L%d::\n", id)
	}
	return b.String(), nil
}

func (e *ScriptEmitter) prologue(b *strings.Builder, p *ir.Program) {
	rt := e.opts.RuntimePrefix
	if e.opts.Comments {
		b.WriteString("-- generated by basicc\n")
	}
	fmt.Fprintf(b, "%s.options(%d, %v, %v, %v, %v)\n",
		rt, p.ArrayBase, p.UnicodeMode, p.ErrorTracking, p.CancellableLoops, p.EventsUsed)

	if len(p.DataValues) > 0 {
		quoted := make([]string, len(p.DataValues))
		for i, v := range p.DataValues {
			quoted[i] = strconv.Quote(v)
		}
		fmt.Fprintf(b, "%s.data({%s})\n", rt, strings.Join(quoted, ", "))

		lines := make([]int, 0, len(p.DataLineRestorePoints))
		for line := range p.DataLineRestorePoints {
			lines = append(lines, line)
		}
		sort.Ints(lines)
		for _, line := range lines {
			fmt.Fprintf(b, "%s.data_restore_point(%d, %d)\n", rt, line, p.DataLineRestorePoints[line])
		}

		labels := make([]string, 0, len(p.DataLabelRestorePoints))
		for label := range p.DataLabelRestorePoints {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(b, "%s.data_restore_label(%q, %d)\n", rt, label, p.DataLabelRestorePoints[label])
		}
	}
}

// instruction renders one IR instruction. The mapping is total: an
// opcode this emitter does not know is a bug, not a silent skip.
func (e *ScriptEmitter) instruction(b *strings.Builder, p *ir.Program, in ir.Instruction) error {
	rt := e.opts.RuntimePrefix
	op := func(i int) ir.Operand {
		if i < len(in.Operands) {
			return in.Operands[i]
		}
		return ir.Operand{}
	}
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(b, format+"\n", args...)
	}
	push := func(v string) { line("%s.push(%s)", rt, v) }
	binary := func(name string) { line("%s.%s()", rt, name) }

	switch in.Op {
	case ir.PUSH_INT:
		push(strconv.FormatInt(op(0).Int(), 10))
	case ir.PUSH_FLOAT, ir.PUSH_DOUBLE:
		push(strconv.FormatFloat(op(0).Float(), 'g', -1, 64))
	case ir.PUSH_STRING:
		push(strconv.Quote(op(0).Sym()))
	case ir.POP:
		line("%s.pop()", rt)
	case ir.DUP:
		line("%s.dup()", rt)

	case ir.ADD:
		binary("add")
	case ir.SUB:
		binary("sub")
	case ir.MUL:
		binary("mul")
	case ir.DIV:
		binary("div")
	case ir.IDIV:
		binary("idiv")
	case ir.MOD:
		binary("mod")
	case ir.POW:
		binary("pow")
	case ir.NEG:
		binary("neg")
	case ir.EQ:
		binary("eq")
	case ir.NE:
		binary("ne")
	case ir.LT:
		binary("lt")
	case ir.LE:
		binary("le")
	case ir.GT:
		binary("gt")
	case ir.GE:
		binary("ge")
	case ir.AND:
		binary("band")
	case ir.OR:
		binary("bor")
	case ir.XOR:
		binary("bxor")
	case ir.NOT:
		binary("bnot")

	case ir.LOAD_VAR:
		line("%s.push(var_%s)", rt, sanitizeName(op(0).Sym()))
	case ir.STORE_VAR:
		line("var_%s = %s.pop()", sanitizeName(op(0).Sym()), rt)
	case ir.LOAD_CONST:
		line("%s.push(%s.const(%d))", rt, rt, op(0).Int())
	case ir.LOAD_ARRAY:
		line("%s.load_array(%q, %d)", rt, sanitizeName(op(0).Sym()), op(1).Int())
	case ir.STORE_ARRAY:
		line("%s.store_array(%q, %d)", rt, sanitizeName(op(0).Sym()), op(1).Int())
	case ir.DIM_ARRAY:
		line("%s.dim_array(%q, %d, %q)", rt, sanitizeName(op(0).Sym()), op(1).Int(), in.ArrayElemSuffix)
	case ir.MID_ASSIGN:
		line("%s.mid_assign(%q)", rt, sanitizeName(op(0).Sym()))

	case ir.LABEL:
		// Label addresses come from the program's label map; the LABEL
		// marker itself needs no output.
	case ir.JUMP:
		if in.IsLoopJump && p.CancellableLoops {
			line("%s.check_cancel()", rt)
		}
		line("goto L%d", op(0).Label())
	case ir.JUMP_IF_TRUE:
		line("if %s.truthy(%s.pop()) then goto L%d end", rt, rt, op(0).Label())
	case ir.JUMP_IF_FALSE:
		line("if not %s.truthy(%s.pop()) then goto L%d end", rt, rt, op(0).Label())

	case ir.IF_START:
		line("%s.if_start(%s.pop())", rt, rt)
	case ir.ELSEIF_START:
		line("%s.elseif_start(%s.pop())", rt, rt)
	case ir.ELSE_START:
		line("%s.else_start()", rt)
	case ir.IF_END:
		line("%s.if_end()", rt)

	case ir.FOR_INIT:
		line("%s.for_init(%q)", rt, sanitizeName(op(0).Sym()))
	case ir.FOR_NEXT:
		line("%s.for_next(%q)", rt, sanitizeName(op(0).Sym()))
	case ir.FOR_IN_INIT:
		line("%s.for_in_init(%q, %q)", rt, sanitizeName(op(0).Sym()), sanitizeName(op(1).Sym()))

	case ir.WHILE_START:
		if op(0).IsLabel() {
			// Non-deferred form: the condition value was just pushed;
			// the loop re-enters through the label bound before it.
			line("%s.while_start(%s.pop())", rt, rt)
		} else {
			// Deferred form: native loop re-evaluating the serialized
			// condition each iteration (spec.md §4.7, GLOSSARY).
			if p.CancellableLoops {
				line("while %s.truthy(%s) do %s.check_cancel()", rt, op(0).Sym(), rt)
			} else {
				line("while %s.truthy(%s) do", rt, op(0).Sym())
			}
		}
	case ir.WHILE_END:
		if len(in.Operands) > 0 && op(0).IsLabel() {
			line("if %s.while_end() then goto L%d end", rt, op(0).Label())
		} else {
			line("end")
		}

	case ir.REPEAT_START:
		line("%s.repeat_start()", rt)
	case ir.REPEAT_END:
		line("%s.repeat_end(%s.pop())", rt, rt)
	case ir.DO_START:
		line("%s.do_start()", rt)
	case ir.DO_WHILE_START:
		line("%s.do_while_start(%s.pop())", rt, rt)
	case ir.DO_UNTIL_START:
		line("%s.do_until_start(%s.pop())", rt, rt)
	case ir.DO_LOOP_END:
		line("%s.do_loop_end()", rt)
	case ir.DO_LOOP_WHILE:
		line("%s.do_loop_while(%s.pop())", rt, rt)
	case ir.DO_LOOP_UNTIL:
		line("%s.do_loop_until(%s.pop())", rt, rt)

	case ir.EXIT_FOR:
		line("%s.exit_for()", rt)
	case ir.EXIT_DO:
		line("%s.exit_do()", rt)
	case ir.EXIT_WHILE:
		line("%s.exit_while()", rt)
	case ir.EXIT_REPEAT:
		line("%s.exit_repeat()", rt)
	case ir.EXIT_FUNCTION:
		line("%s.exit_function()", rt)
	case ir.EXIT_SUB:
		line("%s.exit_sub()", rt)

	case ir.ON_GOTO:
		line("%s.on_goto(%s.pop(), %q)", rt, rt, op(0).Sym())
	case ir.ON_GOSUB:
		line("%s.on_gosub(%s.pop(), %q)", rt, rt, op(0).Sym())
	case ir.ON_CALL:
		line("%s.on_call(%s.pop(), %q)", rt, rt, op(0).Sym())
	case ir.ON_EVENT:
		line("%s.on_event(%q)", rt, op(0).Sym())

	case ir.CALL_BUILTIN:
		line("%s.call_builtin(%q, %d)", rt, op(0).Sym(), op(1).Int())
	case ir.CALL_FUNCTION:
		line("%s.call_function(%q, %d)", rt, op(0).Sym(), op(1).Int())
	case ir.CALL_SUB:
		line("%s.call_sub(%q, %d)", rt, op(0).Sym(), op(1).Int())
	case ir.CALL_GOSUB:
		line("%s.gosub(L%d)", rt, op(0).Label())
	case ir.RETURN_VALUE:
		line("%s.return_value(%s.pop())", rt, rt)
	case ir.RETURN_GOSUB:
		line("%s.return_gosub()", rt)
	case ir.DEFINE_FUNCTION:
		line("%s.define_function(%q)", rt, op(0).Sym())
	case ir.DEFINE_SUB:
		line("%s.define_sub(%q)", rt, op(0).Sym())
	case ir.END_FUNCTION:
		line("%s.end_function()", rt)
	case ir.END_SUB:
		line("%s.end_sub()", rt)

	case ir.PRINT:
		line("%s.print(%s.pop(), %d)", rt, rt, op(0).Int())
	case ir.PRINT_NEWLINE:
		line("%s.print_newline()", rt)
	case ir.PRINT_TAB:
		line("%s.print_tab(%d)", rt, op(0).Int())
	case ir.PRINT_USING:
		line("%s.print_using(%d)", rt, op(0).Int())
	case ir.CONSOLE:
		line("%s.console(%s.pop(), %d)", rt, rt, op(0).Int())
	case ir.PRINT_AT:
		line("%s.print_at()", rt)
	case ir.INPUT_PROMPT:
		line("%s.input_prompt(%q)", rt, op(0).Sym())
	case ir.INPUT:
		line("var_%s = %s.input()", sanitizeName(op(0).Sym()), rt)
	case ir.READ_DATA:
		line("var_%s = %s.read_data()", sanitizeName(op(0).Sym()), rt)
	case ir.RESTORE:
		switch {
		case len(in.Operands) == 0:
			line("%s.restore()", rt)
		case op(0).IsSet() && op(0).Sym() != "":
			line("%s.restore_label(%q)", rt, op(0).Sym())
		default:
			line("%s.restore_line(%d)", rt, op(0).Int())
		}
	case ir.OPEN_FILE:
		line("%s.open_file(%q)", rt, op(0).Sym())
	case ir.CLOSE_FILE:
		line("%s.close_file()", rt)
	case ir.CLOSE_FILE_ALL:
		line("%s.close_all_files()", rt)
	case ir.PRINT_FILE:
		line("%s.print_file(%q, %q)", rt, op(0).Sym(), op(1).Sym())
	case ir.PRINT_FILE_NEWLINE:
		line("%s.print_file_newline(%q)", rt, op(0).Sym())
	case ir.INPUT_FILE:
		line("%s.input_file(%q, %q)", rt, op(0).Sym(), op(1).Sym())
	case ir.LINE_INPUT_FILE:
		line("%s.line_input_file(%q, %q)", rt, op(0).Sym(), op(1).Sym())

	case ir.STR_CONCAT:
		binary("str_concat")
	case ir.UNICODE_CONCAT:
		binary("unicode_concat")
	case ir.STR_LEFT:
		binary("str_left")
	case ir.STR_RIGHT:
		binary("str_right")
	case ir.STR_MID:
		binary("str_mid")

	case ir.TO_INT:
		binary("to_int")
	case ir.TO_DOUBLE:
		binary("to_double")
	case ir.TO_STRING:
		binary("to_string")

	case ir.HALT:
		line("%s.halt()", rt)
	case ir.END:
		line("%s.stop()", rt)
	case ir.NOP:
		if e.opts.Comments {
			line("-- nop")
		}

	default:
		return fmt.Errorf("emit: unhandled opcode %v", in.Op)
	}
	return nil
}
