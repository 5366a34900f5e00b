// SPDX-License-Identifier: MIT

package dtype

// searchOrder is the fixed order FindCommonType walks. Signed and unsigned
// integers of the same width are interleaved so the narrowest type that
// holds every input wins.
var searchOrder = [...]DType{
	Bool,
	Int8, Uint8,
	Int16, Uint16,
	Int32, Uint32,
	Int64, Uint64,
	Float16, Float32, Float64,
	Complex64, Complex128,
}

// CanCast reports whether every value of type from is exactly representable
// in type to ("safe" casting).
//
// Rules:
//   - bool casts to everything.
//   - signed ints widen to wider-or-equal signed ints.
//   - unsigned ints widen to wider-or-equal unsigned ints and strictly wider signed ints.
//   - an integer of w bytes fits a float whose mantissa covers it:
//     1 byte → float16, 2 bytes → float32, 4 and 8 bytes → float64
//     (the 8-byte case is the conventional exception).
//   - floats widen to wider floats and to complex types with wider-or-equal parts.
//   - complex widens to wider complex only.
//
// Complexity: O(1).
func CanCast(from, to DType) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || from == Bool {
		return true
	}
	fs, ts := from.ItemSize(), to.ItemSize()
	switch from.Kind() {
	case KindInt:
		switch to.Kind() {
		case KindInt:
			return ts >= fs
		case KindFloat:
			return ts >= intFloatWidth(fs)
		case KindComplex:
			return ts/2 >= intFloatWidth(fs)
		}
	case KindUint:
		switch to.Kind() {
		case KindUint:
			return ts >= fs
		case KindInt:
			return ts > fs
		case KindFloat:
			return ts >= intFloatWidth(fs)
		case KindComplex:
			return ts/2 >= intFloatWidth(fs)
		}
	case KindFloat:
		switch to.Kind() {
		case KindFloat:
			return ts >= fs
		case KindComplex:
			return ts/2 >= fs
		}
	case KindComplex:
		return to.Kind() == KindComplex && ts >= fs
	}
	return false
}

// intFloatWidth returns the narrowest float width (bytes) that holds every
// integer of the given width.
func intFloatWidth(intSize int) int {
	switch intSize {
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

// FindCommonType returns the first type in the fixed search order into which
// every input can be safely cast. A single input is returned unchanged; an
// empty input or an input containing Invalid yields Invalid.
//
// Example: FindCommonType(Int16, Float32) == Float32,
// FindCommonType(Int32, Float32) == Float64.
//
// Complexity: O(len(searchOrder) * len(types)).
func FindCommonType(types ...DType) DType {
	switch len(types) {
	case 0:
		return Invalid
	case 1:
		if !types[0].Valid() {
			return Invalid
		}
		return types[0]
	}
	for _, t := range types {
		if !t.Valid() {
			return Invalid
		}
	}
	for _, candidate := range searchOrder {
		all := true
		for _, t := range types {
			if !CanCast(t, candidate) {
				all = false
				break
			}
		}
		if all {
			return candidate
		}
	}
	return Invalid
}
