package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// InstructionSize is the encoded size of one Opcode.
const InstructionSize = 4

// ErrBadInstruction is returned when decoding an invalid instruction record.
var ErrBadInstruction = errors.New("invalid instruction")

// AppendBinary appends the canonical 4-byte record of o to buf.
func (o Opcode) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(o.Major.External()), o.Minor)
	return binary.LittleEndian.AppendUint16(buf, o.Arg)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (o Opcode) MarshalBinary() ([]byte, error) {
	return o.AppendBinary(make([]byte, 0, InstructionSize)), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Only canonical
// majors are accepted.
func (o *Opcode) UnmarshalBinary(data []byte) error {
	if len(data) != InstructionSize {
		return fmt.Errorf("%w: record has %d bytes", ErrBadInstruction, len(data))
	}
	m := Major(data[0])
	if m >= numCanonicalMajors {
		return fmt.Errorf("%w: major %d", ErrBadInstruction, data[0])
	}
	o.Major = m
	o.Minor = data[1]
	o.Arg = binary.LittleEndian.Uint16(data[2:])
	return nil
}

// EncodeCode encodes a code sequence into consecutive 4-byte records.
func EncodeCode(code []Opcode) []byte {
	buf := make([]byte, 0, len(code)*InstructionSize)
	for _, o := range code {
		buf = o.AppendBinary(buf)
	}
	return buf
}

// DecodeCode decodes consecutive 4-byte records.
func DecodeCode(data []byte) ([]Opcode, error) {
	if len(data)%InstructionSize != 0 {
		return nil, fmt.Errorf("%w: code length %d is not a multiple of %d", ErrBadInstruction, len(data), InstructionSize)
	}
	code := make([]Opcode, len(data)/InstructionSize)
	for i := range code {
		if err := code[i].UnmarshalBinary(data[i*InstructionSize : (i+1)*InstructionSize]); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return code, nil
}
