// nexdis disassembles a neon object file, or wraps it in a CBOR image
// envelope for distribution.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm/dist"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nexdis", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cborOut := fs.Bool("cbor", false, "Write a CBOR image envelope instead of a listing")
	output := fs.String("o", "", "Output file (default: stdout)")
	legacyTypes := fs.Bool("legacy-types", false, "Read count-1 type table entries")
	verbose := fs.Bool("v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nexdis [options] file.nx\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  nexdis prog.nx                    # Print a listing\n")
		fmt.Fprintf(stderr, "  nexdis -cbor -o prog.nxe prog.nx  # Package for nex\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)

	level := 0
	if *verbose {
		level = 1
	}
	commonlog.Configure(level, nil)
	log := commonlog.GetLogger("nex.dis")

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// Loader tables are all accepted here; a listing should show whatever
	// the file carries.
	opts := []bytecode.Option{bytecode.WithExceptionTable(), bytecode.WithClassTable()}
	if *legacyTypes {
		opts = append(opts, bytecode.WithLegacyTypeCount())
	}

	var out []byte
	if *cborOut {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		env, err := dist.NewImageEnvelope(name, data, opts...)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			return 1
		}
		out, err = dist.MarshalImage(env)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		log.Infof("envelope %s: object %s, envelope %s", name,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(len(out))))
	} else {
		img, err := bytecode.Load(data, opts...)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			return 1
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "; %s: %s, %d instructions\n", filepath.Base(path),
			humanize.Bytes(uint64(len(data))), img.InstructionCount())
		sb.WriteString(img.DisassembleWithName(filepath.Base(path)))
		out = []byte(sb.String())
	}

	if *output == "" {
		if _, err := stdout.Write(out); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(*output, out, 0644); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
