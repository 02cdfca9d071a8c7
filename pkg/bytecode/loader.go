package bytecode

import (
	"fmt"
	"os"
)

// Options controls how strictly the loader treats optional sections.
type Options struct {
	// LegacyTypeCount reads count-1 type entries, matching object files
	// produced for the early executors that skipped the first entry.
	LegacyTypeCount bool

	// ExceptionTable accepts a non-empty exception handler table.
	ExceptionTable bool

	// ClassTable accepts a non-empty class table.
	ClassTable bool
}

// Option configures Load.
type Option func(*Options)

// WithLegacyTypeCount enables the count-1 type table read.
func WithLegacyTypeCount() Option {
	return func(o *Options) { o.LegacyTypeCount = true }
}

// WithExceptionTable allows images that carry exception handlers.
func WithExceptionTable() Option {
	return func(o *Options) { o.ExceptionTable = true }
}

// WithClassTable allows images that carry classes.
func WithClassTable() Option {
	return func(o *Options) { o.ClassTable = true }
}

// WithOptions copies a complete Options value, as produced from a config file.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// reservedSections must each hold a zero count in a version 1 object.
var reservedSections = []string{
	"constants",
	"variables",
	"function exports",
	"exception exports",
	"interface exports",
	"imports",
}

// LoadFile reads and loads an object file from disk.
func LoadFile(path string, opts ...Option) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object file: %w", err)
	}
	return Load(data, opts...)
}

// Load decodes an object file. Any structural problem is reported as a
// *FormatError; the returned image is nil in that case.
func Load(data []byte, opts ...Option) (*Image, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	r := &reader{data: data, section: "signature"}
	img := &Image{Size: len(data)}

	sig, err := r.bytes(len(Signature))
	if err != nil {
		return nil, err
	}
	if string(sig) != string(Signature) {
		return nil, r.failAt(0, fmt.Errorf("%w: got %q", ErrBadSignature, sig))
	}

	r.section = "version"
	if img.Version, err = r.varint(); err != nil {
		return nil, err
	}
	if img.Version != FormatVersion {
		return nil, r.fail(fmt.Errorf("%w: expected %d, got %d", ErrUnsupportedVersion, FormatVersion, img.Version))
	}

	r.section = "source hash"
	hash, err := r.bytes(HashSize)
	if err != nil {
		return nil, err
	}
	copy(img.SourceHash[:], hash)

	r.section = "global size"
	if img.GlobalSize, err = r.count(); err != nil {
		return nil, err
	}

	r.section = "string table"
	if img.Strings, err = r.stringTable(); err != nil {
		return nil, err
	}

	r.section = "type table"
	if img.Types, err = r.typeTable(o.LegacyTypeCount); err != nil {
		return nil, err
	}

	for _, name := range reservedSections {
		r.section = name
		n, err := r.varint()
		if err != nil {
			return nil, err
		}
		if n != 0 {
			return nil, r.fail(fmt.Errorf("%w: %s has %d entries", ErrUnsupportedSection, name, n))
		}
	}

	r.section = "function table"
	if img.Functions, err = r.functionTable(); err != nil {
		return nil, err
	}

	r.section = "exception table"
	if img.Exceptions, err = r.exceptionTable(o.ExceptionTable); err != nil {
		return nil, err
	}

	r.section = "class table"
	if img.Classes, err = r.classTable(o.ClassTable); err != nil {
		return nil, err
	}

	img.Code = make([]byte, len(data)-r.pos)
	copy(img.Code, data[r.pos:])
	return img, nil
}

// ---------------------------------------------------------------------------
// reader: cursor over an object file
// ---------------------------------------------------------------------------

type reader struct {
	data    []byte
	pos     int
	section string
}

func (r *reader) fail(err error) *FormatError {
	return r.failAt(r.pos, err)
}

func (r *reader) failAt(offset int, err error) *FormatError {
	return &FormatError{Offset: offset, Section: r.section, Err: err}
}

func (r *reader) varint() (uint64, error) {
	v, next, err := DecodeVarint(r.data, r.pos)
	if err != nil {
		if err == ErrTruncatedVarint {
			err = fmt.Errorf("%w: %v", ErrUnexpectedEOF, err)
		}
		return 0, r.fail(err)
	}
	r.pos = next
	return v, nil
}

// count reads a varint that sizes something held in memory, rejecting
// values no real object could need.
func (r *reader) count() (int, error) {
	start := r.pos
	v, err := r.varint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(r.data))*8+1<<20 {
		return 0, r.failAt(start, fmt.Errorf("%w: implausible count %d", ErrUnexpectedEOF, v))
	}
	return int(v), nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, r.fail(fmt.Errorf("%w: need %d bytes, have %d", ErrUnexpectedEOF, n, len(r.data)-r.pos))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) stringTable() ([]string, error) {
	size, err := r.count()
	if err != nil {
		return nil, err
	}
	table, err := r.bytes(size)
	if err != nil {
		return nil, err
	}
	base := r.pos - size

	var strs []string
	for i := 0; i < len(table); {
		n, next, err := DecodeVarint(table, i)
		if err != nil {
			return nil, r.failAt(base+i, fmt.Errorf("%w: entry %d length: %v", ErrInvalidString, len(strs), err))
		}
		if n > uint64(len(table)-next) {
			return nil, r.failAt(base+i, fmt.Errorf("%w: entry %d overruns table", ErrInvalidString, len(strs)))
		}
		// Entries are kept as raw bytes: PUSHY literals share the table.
		strs = append(strs, string(table[next:next+int(n)]))
		i = next + int(n)
	}
	return strs, nil
}

func (r *reader) typeTable(legacy bool) ([]TypeEntry, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	if legacy && n > 0 {
		n--
	}
	types := make([]TypeEntry, 0, n)
	for i := 0; i < n; i++ {
		name, err := r.varint()
		if err != nil {
			return nil, err
		}
		desc, err := r.varint()
		if err != nil {
			return nil, err
		}
		types = append(types, TypeEntry{Name: name, Descriptor: desc})
	}
	return types, nil
}

// MaxFrameSlots bounds the nesting depth, parameter count and local count
// a function table entry may declare.
const MaxFrameSlots = 1 << 20

var functionFieldNames = [5]string{"name", "nest", "params", "locals", "entry"}

// functionFieldLimit is the largest accepted value of a function table
// field. Code follows the tables, so an entry point never lies beyond the
// end of the file.
func (r *reader) functionFieldLimit(field int) uint64 {
	if field == 4 {
		return uint64(len(r.data))
	}
	return MaxFrameSlots
}

func (r *reader) functionTable() ([]Function, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	funcs := make([]Function, 0, n)
	for i := 0; i < n; i++ {
		var fields [5]uint64
		for j := range fields {
			start := r.pos
			if fields[j], err = r.varint(); err != nil {
				return nil, err
			}
			if j > 0 && fields[j] > r.functionFieldLimit(j) {
				return nil, r.failAt(start, fmt.Errorf("%w: function %d %s %d", ErrImplausibleFunction, i, functionFieldNames[j], fields[j]))
			}
		}
		funcs = append(funcs, Function{
			Name:   fields[0],
			Nest:   int(fields[1]),
			Params: int(fields[2]),
			Locals: int(fields[3]),
			Entry:  int(fields[4]),
		})
	}
	return funcs, nil
}

func (r *reader) exceptionTable(allowed bool) ([]ExceptionHandler, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if !allowed {
		return nil, r.fail(fmt.Errorf("%w: exception table has %d entries", ErrUnsupportedSection, n))
	}
	handlers := make([]ExceptionHandler, 0, n)
	for i := 0; i < n; i++ {
		var fields [5]uint64
		for j := range fields {
			start := r.pos
			if fields[j], err = r.varint(); err != nil {
				return nil, err
			}
			limit := uint64(len(r.data))
			if j == 4 {
				limit = MaxFrameSlots
			}
			if j != 2 && fields[j] > limit {
				return nil, r.failAt(start, fmt.Errorf("%w: handler %d field %d is %d", ErrImplausibleHandler, i, j, fields[j]))
			}
		}
		handlers = append(handlers, ExceptionHandler{
			Start:      int(fields[0]),
			End:        int(fields[1]),
			Name:       fields[2],
			Handler:    int(fields[3]),
			StackDepth: int(fields[4]),
		})
	}
	return handlers, nil
}

func (r *reader) classTable(allowed bool) ([]Class, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if !allowed {
		return nil, r.fail(fmt.Errorf("%w: class table has %d entries", ErrUnsupportedSection, n))
	}
	classes := make([]Class, 0, n)
	for i := 0; i < n; i++ {
		name, err := r.varint()
		if err != nil {
			return nil, err
		}
		ifaceCount, err := r.count()
		if err != nil {
			return nil, err
		}
		c := Class{Name: name, Interfaces: make([][]int, 0, ifaceCount)}
		for j := 0; j < ifaceCount; j++ {
			methodCount, err := r.count()
			if err != nil {
				return nil, err
			}
			methods := make([]int, 0, methodCount)
			for k := 0; k < methodCount; k++ {
				m, err := r.varint()
				if err != nil {
					return nil, err
				}
				methods = append(methods, int(m))
			}
			c.Interfaces = append(c.Interfaces, methods)
		}
		classes = append(classes, c)
	}
	return classes, nil
}
