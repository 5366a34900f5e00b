// SPDX-License-Identifier: MIT

// Package dtype describes the element types a device array can hold and the
// casting rules between them.
//
// Purpose:
//   - Provide a closed set of element types (DType) shared by the device layer
//     and the linear-algebra core.
//   - Encode the "safe" casting table (no loss of range or precision).
//   - Offer FindCommonType, the promotion search used to pick a floating
//     working precision for integer and half-precision inputs.
//
// Determinism:
//   - All functions are pure; the common-type search walks a fixed order.
package dtype

import (
	"errors"
	"fmt"
	"strings"
)

// DType enumerates supported element types.
type DType uint8

// Supported element types. Invalid is the zero value.
const (
	Invalid DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	Complex64
	Complex128
)

// Kind letters, matching the conventional array-protocol kinds.
const (
	KindBool    byte = 'b'
	KindInt     byte = 'i'
	KindUint    byte = 'u'
	KindFloat   byte = 'f'
	KindComplex byte = 'c'
)

const (
	kindInvalid byte = 0
	charInvalid byte = 0
	nameInvalid      = "invalid"
)

// ErrUnknownDType is returned by Parse for names that map to no DType.
var ErrUnknownDType = errors.New("dtype: unknown type name")

// info is the static description of one DType.
type info struct {
	name string
	char byte
	kind byte
	size int
}

var table = [...]info{
	Invalid:    {nameInvalid, charInvalid, kindInvalid, 0},
	Bool:       {"bool", '?', KindBool, 1},
	Int8:       {"int8", 'b', KindInt, 1},
	Int16:      {"int16", 'h', KindInt, 2},
	Int32:      {"int32", 'i', KindInt, 4},
	Int64:      {"int64", 'l', KindInt, 8},
	Uint8:      {"uint8", 'B', KindUint, 1},
	Uint16:     {"uint16", 'H', KindUint, 2},
	Uint32:     {"uint32", 'I', KindUint, 4},
	Uint64:     {"uint64", 'L', KindUint, 8},
	Float16:    {"float16", 'e', KindFloat, 2},
	Float32:    {"float32", 'f', KindFloat, 4},
	Float64:    {"float64", 'd', KindFloat, 8},
	Complex64:  {"complex64", 'F', KindComplex, 8},
	Complex128: {"complex128", 'D', KindComplex, 16},
}

// aliases accepted by Parse in addition to canonical names and chars.
var aliases = map[string]DType{
	"half":    Float16,
	"single":  Float32,
	"float":   Float64,
	"double":  Float64,
	"int":     Int64,
	"uint":    Uint64,
	"byte":    Uint8,
	"complex": Complex128,
	"f2":      Float16,
	"f4":      Float32,
	"f8":      Float64,
	"i1":      Int8,
	"i2":      Int16,
	"i4":      Int32,
	"i8":      Int64,
	"u1":      Uint8,
	"u2":      Uint16,
	"u4":      Uint32,
	"u8":      Uint64,
	"c8":      Complex64,
	"c16":     Complex128,
}

// All returns every valid DType in declaration order.
func All() []DType {
	out := make([]DType, 0, len(table)-1)
	for d := Bool; int(d) < len(table); d++ {
		out = append(out, d)
	}
	return out
}

// Valid reports whether d is one of the declared element types.
func (d DType) Valid() bool {
	return d > Invalid && int(d) < len(table)
}

func (d DType) info() info {
	if !d.Valid() {
		return table[Invalid]
	}
	return table[d]
}

// String returns the canonical lower-case name ("float32").
func (d DType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("%s(%d)", nameInvalid, uint8(d))
	}
	return table[d].name
}

// Char returns the one-letter type code ('f' for float32), 0 for Invalid.
func (d DType) Char() byte { return d.info().char }

// Kind returns the kind letter: 'b', 'i', 'u', 'f' or 'c'.
func (d DType) Kind() byte { return d.info().kind }

// ItemSize returns the element width in bytes.
func (d DType) ItemSize() int { return d.info().size }

// IsFloat reports real floating-point types.
func (d DType) IsFloat() bool { return d.Kind() == KindFloat }

// IsComplex reports complex types.
func (d DType) IsComplex() bool { return d.Kind() == KindComplex }

// IsInteger reports signed and unsigned integer types (not bool).
func (d DType) IsInteger() bool {
	k := d.Kind()
	return k == KindInt || k == KindUint
}

// Parse maps a canonical name, an alias or a one-letter code to a DType.
// Matching of names is case-insensitive; one-letter codes are case-sensitive
// because 'f' and 'F' differ.
func Parse(s string) (DType, error) {
	raw := strings.TrimSpace(s)
	if len(raw) == 1 {
		for d := Bool; int(d) < len(table); d++ {
			if table[d].char == raw[0] {
				return d, nil
			}
		}
	}
	name := strings.ToLower(raw)
	for d := Bool; int(d) < len(table); d++ {
		if table[d].name == name {
			return d, nil
		}
	}
	if d, ok := aliases[name]; ok {
		return d, nil
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownDType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDType, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text leaves Invalid.
func (d *DType) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*d = Invalid
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
