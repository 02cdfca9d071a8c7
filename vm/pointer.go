package vm

import "fmt"

// PointerKind identifies the storage a Pointer addresses.
type PointerKind uint8

const (
	PointerNil          PointerKind = iota
	PointerGlobal                   // Slot in the main module's globals
	PointerPredefined               // Named global provided by the runtime
	PointerModuleGlobal             // Exported slot of another module
	PointerLocal                    // Slot in the current frame
	PointerOuterLocal               // Slot in an enclosing frame
	PointerExternal                 // Named global provided by the host
	PointerHeap                     // Object allocated by ALLOC
	PointerElement                  // Array element or object field behind Base
	PointerEntry                    // Dictionary entry behind Base
)

var pointerKindNames = [...]string{
	PointerNil:          "nil",
	PointerGlobal:       "global",
	PointerPredefined:   "predefined",
	PointerModuleGlobal: "module global",
	PointerLocal:        "local",
	PointerOuterLocal:   "outer local",
	PointerExternal:     "external",
	PointerHeap:         "heap",
	PointerElement:      "element",
	PointerEntry:        "entry",
}

func (k PointerKind) String() string {
	if int(k) < len(pointerKindNames) {
		return pointerKindNames[k]
	}
	return fmt.Sprintf("PointerKind(%d)", k)
}

// Pointer is a location descriptor. It is resolved against execution state
// only when loaded through, stored through or indexed, so a pointer never
// dangles; an element that has gone away is reported at resolution time.
type Pointer struct {
	Kind   PointerKind
	Module *Module  // Global, ModuleGlobal
	Frame  *Frame   // Local, OuterLocal
	Index  int      // Slot or element index
	Name   string   // Predefined and external name, or dictionary key
	Target *Cell    // Heap
	Base   *Pointer // Element, Entry
}

// NilPointer is the pointer pushed by PUSHNIL.
var NilPointer = &Pointer{Kind: PointerNil}

// IsNil reports whether p addresses nothing.
func (p *Pointer) IsNil() bool {
	return p == nil || p.Kind == PointerNil
}

// storage folds kinds that address the same slots.
func (k PointerKind) storage() PointerKind {
	switch k {
	case PointerModuleGlobal:
		return PointerGlobal
	case PointerOuterLocal:
		return PointerLocal
	}
	return k
}

// Same reports whether two pointers address the same location.
func (p *Pointer) Same(q *Pointer) bool {
	if p.IsNil() || q.IsNil() {
		return p.IsNil() && q.IsNil()
	}
	if p == q {
		return true
	}
	if p.Kind.storage() != q.Kind.storage() || p.Index != q.Index || p.Name != q.Name {
		return false
	}
	switch p.Kind {
	case PointerGlobal, PointerModuleGlobal:
		return p.Module == q.Module
	case PointerLocal, PointerOuterLocal:
		return p.Frame == q.Frame
	case PointerHeap:
		return p.Target == q.Target
	case PointerElement, PointerEntry:
		return p.Base.Same(q.Base)
	}
	return true
}

func (p *Pointer) String() string {
	if p.IsNil() {
		return "<pointer nil>"
	}
	switch p.Kind {
	case PointerPredefined, PointerExternal:
		return fmt.Sprintf("<pointer %s %s>", p.Kind, p.Name)
	case PointerModuleGlobal:
		return fmt.Sprintf("<pointer %s %s.%d>", p.Kind, p.Module.Name, p.Index)
	case PointerHeap:
		return fmt.Sprintf("<pointer heap %p>", p.Target)
	case PointerElement:
		return fmt.Sprintf("<pointer %s[%d]>", p.Base, p.Index)
	case PointerEntry:
		return fmt.Sprintf("<pointer %s[%q]>", p.Base, p.Name)
	}
	return fmt.Sprintf("<pointer %s %d>", p.Kind, p.Index)
}
