// Command basicc is the batch compiler: it reads a BASIC source file,
// runs the full pipeline, and writes host-runtime script text (or an
// IR dump with -dump-ir).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/albanread/FasterBASICT/compiler"
	"github.com/albanread/FasterBASICT/diag"
	"github.com/albanread/FasterBASICT/emit"
	"github.com/albanread/FasterBASICT/ir"
	"github.com/albanread/FasterBASICT/registry"
)

const appName = "basicc"

func main() {
	dumpIR := flag.Bool("dump-ir", false, "print the IR listing instead of emitting script text")
	output := flag.String("o", "", "write output to this file instead of stdout")
	comments := flag.Bool("comments", false, "interleave provenance comments in emitted script")
	noWarn := flag.Bool("q", false, "suppress warnings")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file.bas>\n", appName)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	file := flag.Arg(0)

	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
		os.Exit(1)
	}

	c := compiler.New(registry.NewDefaultTable())
	c.SetWarnUnused(!*noWarn)
	res := c.Compile(file, string(src))

	for _, d := range res.Diagnostics {
		if d.Severity == diag.Warning && *noWarn {
			continue
		}
		fmt.Fprint(os.Stderr, diag.Render(string(src), d))
	}
	if !res.OK() {
		fmt.Fprintf(os.Stderr, "%s: %d error(s)\n", appName, len(res.Diagnostics.Errors()))
		os.Exit(1)
	}

	var out string
	if *dumpIR {
		out = ir.DumpString(res.IR)
	} else {
		script, emitErr := emit.New(emit.Options{Comments: *comments}).Emit(res.IR)
		if emitErr != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, emitErr)
			os.Exit(1)
		}
		out = script
	}

	if *output == "" {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(*output, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot write %s: %v\n", appName, *output, err)
		os.Exit(1)
	}
}
