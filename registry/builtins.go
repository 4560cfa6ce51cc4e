package registry

import "github.com/albanread/FasterBASICT/ast"

// NewDefaultTable returns a Table seeded with the registry entries the
// host is expected to provide before compilation begins: the pure
// functions named in spec.md §4.5's constant-evaluator whitelist, the
// string/math/type-conversion functions a BASIC dialect needs at
// runtime as well as compile time, and the graphics/sound commands
// implied by the predefined constants in constants.Manager.AddPredefined
// (display modes, colors, waveforms, filters — spec.md §4.4).
func NewDefaultTable() *Table {
	t := NewTable()

	fn := func(name string, ret ast.Type, params ...Param) {
		t.Register(Entry{Name: name, Category: "CORE", Kind: Function, Params: params, ReturnType: ret})
	}
	cmd := func(name string, params ...Param) {
		t.Register(Entry{Name: name, Category: "CORE", Kind: Command, Params: params, ReturnType: ast.Void})
	}
	p := func(name string, typ ast.Type) Param { return Param{Name: name, Type: typ} }
	opt := func(name string, typ ast.Type, def interface{}) Param {
		return Param{Name: name, Type: typ, Optional: true, Default: def}
	}

	// Constant-evaluator whitelist (spec.md §4.5): pure, compile-time
	// foldable math and string functions.
	fn("ABS", ast.Double, p("x", ast.Double))
	fn("SIN", ast.Double, p("x", ast.Double))
	fn("COS", ast.Double, p("x", ast.Double))
	fn("TAN", ast.Double, p("x", ast.Double))
	fn("ATN", ast.Double, p("x", ast.Double))
	fn("EXP", ast.Double, p("x", ast.Double))
	fn("LOG", ast.Double, p("x", ast.Double))
	fn("SQR", ast.Double, p("x", ast.Double))
	fn("INT", ast.Int, p("x", ast.Double))
	fn("SGN", ast.Int, p("x", ast.Double))
	fn("LEN", ast.Int, p("s", ast.String))
	fn("LEFT$", ast.String, p("s", ast.String), p("n", ast.Int))
	fn("RIGHT$", ast.String, p("s", ast.String), p("n", ast.Int))
	fn("MID$", ast.String, p("s", ast.String), p("start", ast.Int), opt("length", ast.Int, nil))
	fn("CHR$", ast.String, p("code", ast.Int))
	fn("STR$", ast.String, p("x", ast.Double))
	fn("VAL", ast.Double, p("s", ast.String))
	fn("MIN", ast.Double, p("a", ast.Double), p("b", ast.Double))
	fn("MAX", ast.Double, p("a", ast.Double), p("b", ast.Double))

	// Additional string/math functions outside the constant evaluator's
	// whitelist, so never folded at compile time (RND and TIMER also
	// depend on randomness or host state).
	fn("ASC", ast.Int, p("s", ast.String))
	fn("INSTR", ast.Int, opt("start", ast.Int, 1), p("haystack", ast.String), p("needle", ast.String))
	fn("STRING$", ast.String, p("n", ast.Int), p("s", ast.String))
	fn("SPACE$", ast.String, p("n", ast.Int))
	fn("UCASE$", ast.String, p("s", ast.String))
	fn("LCASE$", ast.String, p("s", ast.String))
	fn("RND", ast.Double, opt("seed", ast.Double, nil))
	fn("TIMER", ast.Double)
	fn("ATAN2", ast.Double, p("y", ast.Double), p("x", ast.Double))

	// Display/graphics commands, exercising the display-mode and color
	// constants from the constants manager's predefined table.
	cmd("CLS")
	cmd("MODE", p("mode", ast.Int))
	cmd("PSET", p("x", ast.Double), p("y", ast.Double), opt("color", ast.Int, nil))
	cmd("LINE", p("x1", ast.Double), p("y1", ast.Double), p("x2", ast.Double), p("y2", ast.Double), opt("color", ast.Int, nil))
	cmd("CIRCLE", p("x", ast.Double), p("y", ast.Double), p("r", ast.Double), opt("color", ast.Int, nil))
	cmd("RECT", p("x", ast.Double), p("y", ast.Double), p("w", ast.Double), p("h", ast.Double), opt("color", ast.Int, nil))
	cmd("COLOR", p("foreground", ast.Int), opt("background", ast.Int, nil))
	fn("SCREEN_WIDTH", ast.Int)
	fn("SCREEN_HEIGHT", ast.Int)

	// Sound commands, exercising the waveform/filter/LFO constants.
	cmd("SOUND", p("freq", ast.Double), p("duration", ast.Double), opt("waveform", ast.Int, nil))
	cmd("VOICE", p("channel", ast.Int), p("waveform", ast.Int))
	cmd("FILTER", p("channel", ast.Int), p("kind", ast.Int), p("cutoff", ast.Double))

	return t
}
