// nex runs a compiled neon object file.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/nex/lib/builtins"
	"github.com/chazu/nex/manifest"
	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
	"github.com/chazu/nex/vm/dist"
)

// Process exit codes besides those chosen by sys$exit.
const (
	exitException = 1
	exitLoad      = 2
	exitFault     = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// verbosity is a repeatable -v flag.
type verbosity int

func (v *verbosity) String() string { return strconv.Itoa(int(*v)) }

func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = verbosity(n)
	return nil
}

func (v *verbosity) IsBoolFlag() bool { return true }

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nex", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var verbose verbosity
	fs.Var(&verbose, "v", "Increase log verbosity (repeatable)")
	configPath := fs.String("config", "", "Path to a nex.toml (default: search upward from the object file)")
	trace := fs.Bool("trace", false, "Log every executed instruction")
	snapshotPath := fs.String("snapshot", "", "Write a CBOR execution snapshot to this file when the run ends")
	historyPath := fs.String("history", "", "Record the run in this SQLite history database")
	legacyTypes := fs.Bool("legacy-types", false, "Read count-1 type table entries")
	exceptionTable := fs.Bool("exception-table", false, "Accept images with exception handlers")
	classTable := fs.Bool("class-table", false, "Accept images with classes")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nex [options] file.nx [args...]\n\n")
		fmt.Fprintf(stderr, "Loads a neon object file (raw or CBOR envelope) and runs it.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExit status:\n")
		fmt.Fprintf(stderr, "  0  normal completion\n")
		fmt.Fprintf(stderr, "  1  unhandled exception\n")
		fmt.Fprintf(stderr, "  2  object file could not be loaded\n")
		fmt.Fprintf(stderr, "  3  runtime fault\n")
		fmt.Fprintf(stderr, "  sys$exit(n) exits with n\n")
	}
	if err := fs.Parse(args); err != nil {
		return exitLoad
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitLoad
	}
	path := fs.Arg(0)

	m, err := loadManifest(*configPath, path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitLoad
	}

	// Flags override the manifest.
	if *trace {
		m.Executor.Trace = true
	}
	if *historyPath != "" {
		if m.Executor.History, err = filepath.Abs(*historyPath); err != nil {
			fmt.Fprintf(stderr, "Error: history database: %v\n", err)
			return exitLoad
		}
	}
	if *legacyTypes {
		m.Loader.LegacyTypeCount = true
	}
	if *exceptionTable {
		m.Loader.ExceptionTable = true
	}
	if *classTable {
		m.Loader.ClassTable = true
	}
	level := max(int(verbose), m.Log.Verbosity)
	if m.Executor.Trace {
		level = max(level, 2)
	}
	configureLogging(level, m.Log.File)
	log := commonlog.GetLogger("nex.cmd")

	cache := m.ImageCache()
	img, capability, err := loadImage(path, cache, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitLoad
	}

	if err := m.Policy().Check(capability); err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return exitLoad
	}

	bridge := vm.NewBridge()
	builtins.Register(bridge)
	m.ApplyExternals(bridge)
	if missing := capability.Missing(bridge); len(missing) > 0 {
		log.Warningf("%s calls host names this executor does not provide: %v", path, missing)
	}

	modules, err := m.LoadModulesWith(cache)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitLoad
	}

	opts := append(m.ExecutorOptions(),
		vm.WithBridge(bridge),
		vm.WithArgs(fs.Args()),
		vm.WithStdout(stdout),
	)
	for _, mod := range modules {
		log.Infof("module %s: %d code bytes, %d globals", mod.Name, len(mod.Image.Code), len(mod.Globals))
		opts = append(opts, vm.WithModule(mod))
	}
	e := vm.New(img, opts...)

	runErr := e.Run()
	if runErr != nil && log.AllowLevel(commonlog.Debug) {
		log.Debugf("final state:\n%s", pretty.Sprint(e.Snapshot()))
	}

	if *snapshotPath != "" {
		if err := writeSnapshot(*snapshotPath, e); err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	}
	if dbPath := m.HistoryPath(); dbPath != "" {
		if err := recordRun(dbPath, img, e, runErr); err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	}
	return exitStatus(runErr, stderr)
}

// loadManifest reads an explicit config file, or searches upward from the
// object file's directory, falling back to defaults.
func loadManifest(configPath, objectPath string) (*manifest.Manifest, error) {
	if configPath != "" {
		return manifest.LoadFile(configPath)
	}
	m, err := manifest.FindAndLoad(filepath.Dir(objectPath))
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func configureLogging(level int, file string) {
	var path *string
	if file != "" {
		path = &file
	}
	commonlog.Configure(level, path)
}

// loadImage accepts a raw object file or a CBOR image envelope and returns
// the loaded image with the host names it calls.
func loadImage(path string, cache *dist.ImageCache, log commonlog.Logger) (*bytecode.Image, *dist.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if !bytes.HasPrefix(data, bytecode.Signature) {
		// Anything that is not an envelope is loaded as a raw object so the
		// loader reports the format error.
		if env, err := dist.DecodeImageEnvelope(data); err == nil {
			img, err := cache.Open(env)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", path, err)
			}
			log.Infof("loaded envelope %s (%s, object %s)", path, humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(len(env.Object))))
			return img, env.Capability, nil
		}
	}

	img, err := cache.Load(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded %s (%s): %d strings, %d functions, %d globals",
		path, humanize.Bytes(uint64(len(data))), len(img.Strings), len(img.Functions), img.GlobalSize)

	builtinNames, extensionNames, err := img.HostNames()
	if err != nil {
		// Malformed code faults when executed; the scan is advisory.
		log.Debugf("host name scan stopped: %v", err)
	}
	return img, &dist.Manifest{Builtins: builtinNames, Extensions: extensionNames}, nil
}

func writeSnapshot(path string, e *vm.Executor) error {
	data, err := dist.MarshalSnapshot(e.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func recordRun(path string, img *bytecode.Image, e *vm.Executor, runErr error) error {
	h, err := dist.OpenHistory(path)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.Record(img.SourceHash, dist.Outcome(runErr), e.Snapshot())
}

// exitStatus reports err on stderr and maps it to a process exit code.
func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *vm.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	var x *vm.Exception
	if errors.As(err, &x) {
		fmt.Fprintf(stderr, "Unhandled exception %s (%s)\n", x.Name, x.Info)
		return exitException
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitFault
}
