package record

// ColumnValue is a single typed column value within a Record. Exactly one
// of its accessor methods is meaningful for a given value, determined by
// Kind(), which always matches one of the Format type codes.
type ColumnValue struct {
	kind byte
	bits uint64 // holds int32/uint32/int64/uint64/float32/float64 payload
	str  string // holds the string payload when kind == TypeString
}

// Kind returns the column's Format type code.
func (c ColumnValue) Kind() byte { return c.kind }

// Int32 returns the column's value as an int32. Valid only when Kind() == TypeInt32.
func (c ColumnValue) Int32() int32 { return int32(c.bits) }

// Uint32 returns the column's value as a uint32. Valid only when Kind() == TypeUint32.
func (c ColumnValue) Uint32() uint32 { return uint32(c.bits) }

// Int64 returns the column's value as an int64. Valid only when Kind() == TypeInt64.
func (c ColumnValue) Int64() int64 { return int64(c.bits) }

// Uint64 returns the column's value as a uint64. Valid only when Kind() == TypeUint64.
func (c ColumnValue) Uint64() uint64 { return c.bits }

// Float32 returns the column's value as a float32. Valid only when Kind() == TypeFloat32.
func (c ColumnValue) Float32() float32 { return float32FromBits(uint32(c.bits)) }

// Float64 returns the column's value as a float64. Valid only when Kind() == TypeFloat64.
func (c ColumnValue) Float64() float64 { return float64FromBits(c.bits) }

// String returns the column's value as a string. Valid only when Kind() == TypeString.
func (c ColumnValue) String() string { return c.str }

// Int32Column constructs an 'i' column.
func Int32Column(v int32) ColumnValue { return ColumnValue{kind: TypeInt32, bits: uint64(uint32(v))} }

// Uint32Column constructs a 'u' column.
func Uint32Column(v uint32) ColumnValue { return ColumnValue{kind: TypeUint32, bits: uint64(v)} }

// Int64Column constructs an 'I' column.
func Int64Column(v int64) ColumnValue { return ColumnValue{kind: TypeInt64, bits: uint64(v)} }

// Uint64Column constructs a 'U' column.
func Uint64Column(v uint64) ColumnValue { return ColumnValue{kind: TypeUint64, bits: v} }

// Float32Column constructs an 'f' column.
func Float32Column(v float32) ColumnValue {
	return ColumnValue{kind: TypeFloat32, bits: uint64(float32Bits(v))}
}

// Float64Column constructs an 'F' column.
func Float64Column(v float64) ColumnValue {
	return ColumnValue{kind: TypeFloat64, bits: float64Bits(v)}
}

// StringColumn constructs an 's' column.
func StringColumn(v string) ColumnValue { return ColumnValue{kind: TypeString, str: v} }

// MatchesFormatChar reports whether the column's kind matches a given
// Format type code.
func (c ColumnValue) MatchesFormatChar(ch byte) bool { return c.kind == ch }
