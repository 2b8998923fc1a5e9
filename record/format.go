// Package record implements the typed column codec spec.md calls the
// "record codec" (§3): Format strings, Records, and the big-endian row
// payload encoding segments store.
//
// Grounded on mebo's section/numeric_flag.go (bit-packed type tags parsed
// byte-by-byte with a Validate step) and encoding/varstring.go (the
// varint-length-prefixed string convention), adapted from mebo's fixed
// two-column (timestamp, value) schema to spec.md's arbitrary
// column-per-key Format string.
package record

import "github.com/arloliu/tsdb/errs"

// Format is a non-empty ASCII string over the column alphabet
// {i,u,I,U,f,F,s}, one character per column, in column order (§3).
type Format string

// Column type codes, one ASCII byte each.
const (
	TypeInt32  = 'i' // 4-byte big-endian signed int
	TypeUint32 = 'u' // 4-byte big-endian unsigned int
	TypeInt64  = 'I' // 8-byte big-endian signed int
	TypeUint64 = 'U' // 8-byte big-endian unsigned int
	TypeFloat32 = 'f' // 4-byte big-endian IEEE-754 float
	TypeFloat64 = 'F' // 8-byte big-endian IEEE-754 float
	TypeString  = 's' // unsigned-varint(len) ++ UTF-8 bytes
)

// Validate reports whether every character of f is a recognized column
// type and f is non-empty.
func (f Format) Validate() error {
	if len(f) == 0 {
		return errs.ErrEmptyFormat
	}
	for i := 0; i < len(f); i++ {
		if !isValidTypeChar(f[i]) {
			return errs.ErrInvalidFormatChar
		}
	}
	return nil
}

func isValidTypeChar(c byte) bool {
	switch c {
	case TypeInt32, TypeUint32, TypeInt64, TypeUint64, TypeFloat32, TypeFloat64, TypeString:
		return true
	default:
		return false
	}
}

// ColumnCount returns the number of columns f describes (its length, since
// every column is exactly one format character).
func (f Format) ColumnCount() int {
	return len(f)
}

// FixedWidth returns the total row size in bytes if every column in f is
// fixed-width (no 's' column), and true. If f contains any 's' column the
// row is variable-length and FixedWidth returns (0, false).
//
// The returned size does not include the 8-byte timestamp prefix (§3: "Row
// payload (on disk): timestamp(8 bytes) ++ encoded columns").
func (f Format) FixedWidth() (size int, ok bool) {
	for i := 0; i < len(f); i++ {
		w, fixed := columnWidth(f[i])
		if !fixed {
			return 0, false
		}
		size += w
	}
	return size, true
}

// columnWidth returns the on-disk width of a fixed-width column type, or
// (0, false) for the variable-width 's' type.
func columnWidth(c byte) (int, bool) {
	switch c {
	case TypeInt32, TypeUint32, TypeFloat32:
		return 4, true
	case TypeInt64, TypeUint64, TypeFloat64:
		return 8, true
	case TypeString:
		return 0, false
	default:
		return 0, false
	}
}
