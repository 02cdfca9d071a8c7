// Package bytecode reads and writes nex object files and describes the
// instruction set that the executor in package vm interprets.
//
// An object file is a compact, varint-encoded container produced by the
// neon compiler. It carries everything needed to run a program without the
// source text:
//
//   - Header: the "Ne\0n" signature, a format version and the 32-byte hash
//     of the source the object was compiled from
//   - Global size: the number of global cells the program allocates
//   - String table: every literal, name and numeric constant, referenced by
//     index from instruction operands
//   - Type table, function table and the optional exception and class tables
//   - Code: the instruction stream, executed starting at offset 0
//
// # Components
//
//   - Varint: the 7-bit group encoding used for every integer in the format
//     and for instruction operands
//
//   - Opcodes: 100 single-byte instructions with their operand layouts and
//     stack effects, used by the executor, the disassembler and the builder
//
//   - Loader: Load turns a byte buffer into an Image or reports a
//     *FormatError naming the offending section
//
//   - Builder: assembles code and tables and serializes them into the object
//     file format. Tests and tools use it to produce images without a
//     compiler
//
//   - Disassembler: renders an Image as an annotated listing
package bytecode
