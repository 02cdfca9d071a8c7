package bytecode

import "fmt"

// FormatVersion is the only object format version the loader accepts.
const FormatVersion = 1

// Signature opens every object file: "Ne\0n".
var Signature = []byte{'N', 'e', 0x00, 'n'}

// HashSize is the length of the source hash stored in the header.
const HashSize = 32

// TypeEntry pairs a type name with its descriptor, both string table indices.
type TypeEntry struct {
	Name       uint64
	Descriptor uint64
}

// Function describes one entry of the function table. Name is a string
// table index and Entry is the code offset of the first instruction.
type Function struct {
	Name   uint64
	Nest   int // Lexical nesting depth, 0 for top-level functions
	Params int // Values bound from the operand stack on call
	Locals int // Local slots in the frame, including params
	Entry  int
}

// ExceptionHandler covers the half-open code range [Start, End). Name is a
// string table index of the exception name the handler catches, and
// StackDepth is the operand stack height, relative to the frame, to restore
// before jumping to Handler.
type ExceptionHandler struct {
	Start      int
	End        int
	Name       uint64
	Handler    int
	StackDepth int
}

// Class lists, per implemented interface, the function indices of its
// methods in slot order.
type Class struct {
	Name       uint64
	Interfaces [][]int
}

// Image is a loaded program: the tables and code of one object file.
type Image struct {
	Version    uint64
	SourceHash [HashSize]byte
	GlobalSize int
	Strings    []string
	Types      []TypeEntry
	Functions  []Function
	Exceptions []ExceptionHandler
	Classes    []Class
	Code       []byte

	// Size is the length in bytes of the object file the image came from.
	Size int
}

// String returns the string table entry at index i.
func (img *Image) String(i uint64) (string, error) {
	if i >= uint64(len(img.Strings)) {
		return "", fmt.Errorf("%w: string %d of %d", ErrInvalidIndex, i, len(img.Strings))
	}
	return img.Strings[i], nil
}

// Function returns the function table entry at index i.
func (img *Image) Function(i uint64) (*Function, error) {
	if i >= uint64(len(img.Functions)) {
		return nil, fmt.Errorf("%w: function %d of %d", ErrInvalidIndex, i, len(img.Functions))
	}
	return &img.Functions[i], nil
}

// FunctionName returns the name of function i, or a placeholder when its
// name index is invalid.
func (img *Image) FunctionName(i int) string {
	if i < 0 || i >= len(img.Functions) {
		return fmt.Sprintf("<function %d>", i)
	}
	name, err := img.String(img.Functions[i].Name)
	if err != nil {
		return fmt.Sprintf("<function %d>", i)
	}
	return name
}

// LookupFunction finds a function by name.
func (img *Image) LookupFunction(name string) (int, bool) {
	for i, f := range img.Functions {
		if f.Name < uint64(len(img.Strings)) && img.Strings[f.Name] == name {
			return i, true
		}
	}
	return -1, false
}

// LookupClass finds a class by name.
func (img *Image) LookupClass(name string) (int, bool) {
	for i, c := range img.Classes {
		if c.Name < uint64(len(img.Strings)) && img.Strings[c.Name] == name {
			return i, true
		}
	}
	return -1, false
}

// FunctionAt returns the index of the function whose body contains the code
// offset ip, taken as the function with the greatest entry not after ip.
// It returns -1 for top-level code ahead of every function.
func (img *Image) FunctionAt(ip int) int {
	best := -1
	for i, f := range img.Functions {
		if f.Entry <= ip && (best < 0 || f.Entry > img.Functions[best].Entry) {
			best = i
		}
	}
	return best
}
