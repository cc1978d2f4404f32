package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/c2script/pkg/value"
)

// ObjectFileVersion is the current object file format version.
const ObjectFileVersion uint16 = 1

// ObjectFileMagic starts every object file.
var ObjectFileMagic = []byte{'C', '2', 'B', 'C'}

// ErrBadObjectFile is returned for malformed object files.
var ErrBadObjectFile = errors.New("bad object file")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type objectFile struct {
	Version uint16       `cbor:"1,keyasint"`
	Units   []unitRecord `cbor:"2,keyasint"`
}

// unitRecord stores one Object. Code holds the 4-byte instruction records,
// so a unit's code is byte-identical to what EncodeCode produces.
type unitRecord struct {
	Name      string          `cbor:"1,keyasint"`
	File      string          `cbor:"2,keyasint,omitempty"`
	Code      []byte          `cbor:"3,keyasint"`
	Literals  []literalRecord `cbor:"4,keyasint,omitempty"`
	Names     []string        `cbor:"5,keyasint,omitempty"`
	Locals    []string        `cbor:"6,keyasint,omitempty"`
	MinArgs   int             `cbor:"7,keyasint"`
	MaxArgs   int             `cbor:"8,keyasint"`
	Varargs   bool            `cbor:"9,keyasint"`
	Procedure bool            `cbor:"10,keyasint"`
}

// literalRecord stores a literal. Subroutine literals refer to units of the
// same file by index.
type literalRecord struct {
	Kind   value.Kind `cbor:"1,keyasint"`
	Int    int64      `cbor:"2,keyasint,omitempty"`
	Float  float64    `cbor:"3,keyasint,omitempty"`
	Str    string     `cbor:"4,keyasint,omitempty"`
	Unit   int        `cbor:"5,keyasint,omitempty"`
	Fields []string   `cbor:"6,keyasint,omitempty"`
}

// WriteObjectFile writes objs to w. Every subroutine literal must refer to
// one of objs.
func WriteObjectFile(w io.Writer, objs []*Object) error {
	index := make(map[*Object]int, len(objs))
	for i, o := range objs {
		index[o] = i
	}

	file := objectFile{Version: ObjectFileVersion, Units: make([]unitRecord, len(objs))}
	for i, o := range objs {
		rec := unitRecord{
			Name:      o.name,
			File:      o.file,
			Code:      EncodeCode(o.code),
			Names:     o.names,
			Locals:    o.locals,
			MinArgs:   o.minArgs,
			MaxArgs:   o.maxArgs,
			Varargs:   o.varargs,
			Procedure: o.procedure,
		}
		for j, l := range o.literals {
			lr, err := encodeLiteral(l, index)
			if err != nil {
				return fmt.Errorf("%s: literal %d: %w", o.name, j, err)
			}
			rec.Literals = append(rec.Literals, lr)
		}
		file.Units[i] = rec
	}

	data, err := cborEncMode.Marshal(&file)
	if err != nil {
		return fmt.Errorf("bytecode: marshal object file: %w", err)
	}
	if _, err := w.Write(ObjectFileMagic); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadObjectFile reads an object file written by WriteObjectFile. The
// returned objects are not frozen.
func ReadObjectFile(r io.Reader) ([]*Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, ObjectFileMagic) {
		return nil, fmt.Errorf("%w: missing magic", ErrBadObjectFile)
	}
	var file objectFile
	if err := cbor.Unmarshal(data[len(ObjectFileMagic):], &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadObjectFile, err)
	}
	if file.Version != ObjectFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadObjectFile, file.Version)
	}

	objs := make([]*Object, len(file.Units))
	for i, rec := range file.Units {
		code, err := DecodeCode(rec.Code)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadObjectFile, rec.Name, err)
		}
		objs[i] = &Object{
			name:      rec.Name,
			file:      rec.File,
			code:      code,
			names:     rec.Names,
			locals:    rec.Locals,
			minArgs:   rec.MinArgs,
			maxArgs:   rec.MaxArgs,
			varargs:   rec.Varargs,
			procedure: rec.Procedure,
		}
	}
	for i, rec := range file.Units {
		for j, lr := range rec.Literals {
			v, err := decodeLiteral(lr, objs)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: literal %d: %v", ErrBadObjectFile, rec.Name, j, err)
			}
			objs[i].literals = append(objs[i].literals, v)
		}
	}
	return objs, nil
}

func encodeLiteral(v value.Value, index map[*Object]int) (literalRecord, error) {
	switch x := v.(type) {
	case nil:
		return literalRecord{Kind: value.KindEmpty}, nil
	case value.Int:
		return literalRecord{Kind: value.KindInt, Int: int64(x)}, nil
	case value.Float:
		return literalRecord{Kind: value.KindFloat, Float: float64(x)}, nil
	case value.Bool:
		var i int64
		if x {
			i = 1
		}
		return literalRecord{Kind: value.KindBool, Int: i}, nil
	case value.String:
		return literalRecord{Kind: value.KindString, Str: string(x)}, nil
	case *value.StructType:
		return literalRecord{Kind: value.KindStructType, Str: x.Name, Fields: x.Fields}, nil
	case *SubroutineValue:
		i, ok := index[x.Object]
		if !ok {
			return literalRecord{}, fmt.Errorf("subroutine %s is not part of the file", x.Object.Name())
		}
		return literalRecord{Kind: value.KindCallable, Unit: i}, nil
	default:
		return literalRecord{}, fmt.Errorf("%s literal cannot be stored", value.KindOf(v))
	}
}

func decodeLiteral(lr literalRecord, objs []*Object) (value.Value, error) {
	switch lr.Kind {
	case value.KindEmpty:
		return nil, nil
	case value.KindInt:
		return value.Int(lr.Int), nil
	case value.KindFloat:
		return value.Float(lr.Float), nil
	case value.KindBool:
		return value.Bool(lr.Int != 0), nil
	case value.KindString:
		return value.String(lr.Str), nil
	case value.KindStructType:
		return &value.StructType{Name: lr.Str, Fields: lr.Fields}, nil
	case value.KindCallable:
		if lr.Unit < 0 || lr.Unit >= len(objs) {
			return nil, fmt.Errorf("unit index %d out of range", lr.Unit)
		}
		return &SubroutineValue{Object: objs[lr.Unit]}, nil
	default:
		return nil, fmt.Errorf("unknown literal kind %d", lr.Kind)
	}
}
