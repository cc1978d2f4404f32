// Package bytecode defines the instruction set executed by the script
// processes in package vm, and the compiled units that carry it.
//
// An instruction (Opcode) is a fixed-size record of a major category, a
// minor sub-operation and a 16-bit operand. The same 4-byte record is used
// in memory, in object files and in bytecode embedded in saved auto-task
// scripts, so the layout must not change:
//
//	byte 0   major
//	byte 1   minor
//	byte 2-3 operand, little endian
//
// # Categories
//
//   - Push, Pop, Store, Dim: variable access by scope (named, local,
//     static, shared, named shared, literal, integer/boolean immediate)
//   - Unary, Binary, Ternary: arithmetic and string operations
//   - Jump: conditional/unconditional jumps, catch installation,
//     decrement-and-jump-if-zero
//   - Indirect, Memref: call/load/store/pop through a value or a member
//   - Stack: dup, drop, swap
//   - Special: return, with, iteration, eval, throw, suspend and friends
//
// # Fused opcodes
//
// The optimizer (Optimize) may replace the major of the first instruction of
// a short sequence with one of five fused majors so the interpreter can
// execute the sequence in one dispatch. The following instructions stay in
// place and the operand is untouched, so Major.External recovers the
// canonical program exactly. Fused majors never appear in encoded output or
// disassembly.
//
// # Compiled units
//
// An Object holds the instructions of one subroutine together with its
// literal and name tables. Objects are built by a compiler (or the
// assembler in this package), then frozen the first time a process executes
// them; from then on they are shared read-only by every frame that runs
// them.
package bytecode
