// Package vm implements the nex executor: it runs the instruction stream of
// a loaded object file against a tagged value model.
//
// This package contains:
//   - Cell, the tagged value held in globals, locals, the operand stack and
//     composite values
//   - Pointer descriptors and their resolution to storage locations
//   - The Executor: frames, operand stack and the dispatch loop
//   - The Bridge between programs and host code (builtins, extensions and
//     external globals)
//   - Errors: *Fault for malformed execution, *Exception for raised
//     exceptions
//   - Snapshots of execution state for diagnostics
package vm
