package record

import (
	"encoding/binary"
	"fmt"
)

// AppendRow appends a record's on-disk row payload to dst and returns the
// extended slice: timestamp(8 bytes BE) ++ columns in format order, fixed
// types as big-endian natural width, 's' columns as
// unsigned-varint(len) ++ bytes (§3).
//
// The caller is responsible for having validated r against its Format
// beforehand (e.g. via Record.Validate); AppendRow trusts its input.
func AppendRow(dst []byte, r Record) []byte {
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], r.Timestamp)
	dst = append(dst, tsBuf[:]...)

	for _, col := range r.Columns {
		dst = appendColumn(dst, col)
	}
	return dst
}

func appendColumn(dst []byte, col ColumnValue) []byte {
	switch col.Kind() {
	case TypeInt32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(col.Int32()))
		return append(dst, b[:]...)
	case TypeUint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], col.Uint32())
		return append(dst, b[:]...)
	case TypeInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(col.Int64()))
		return append(dst, b[:]...)
	case TypeUint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], col.Uint64())
		return append(dst, b[:]...)
	case TypeFloat32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], float32Bits(col.Float32()))
		return append(dst, b[:]...)
	case TypeFloat64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], float64Bits(col.Float64()))
		return append(dst, b[:]...)
	case TypeString:
		s := col.String()
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		dst = append(dst, lenBuf[:n]...)
		return append(dst, s...)
	default:
		panic(fmt.Sprintf("record: unknown column kind %q", col.Kind()))
	}
}

// RowSize returns the on-disk size in bytes of a single row (including the
// 8-byte timestamp prefix) for the given format and data starting at the
// row's first byte. For fixed-width formats this is computed without
// inspecting data; for formats containing 's' columns, data must contain
// at least the row's bytes so the varint string lengths can be read.
func RowSize(format Format, data []byte) (int, error) {
	if fixed, ok := format.FixedWidth(); ok {
		return 8 + fixed, nil
	}

	size := 8
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case TypeInt32, TypeUint32, TypeFloat32:
			size += 4
		case TypeInt64, TypeUint64, TypeFloat64:
			size += 8
		case TypeString:
			if size > len(data) {
				return 0, fmt.Errorf("record: truncated row while reading string length")
			}
			strLen, n := binary.Uvarint(data[size:])
			if n <= 0 {
				return 0, fmt.Errorf("record: invalid varint string length")
			}
			size += n + int(strLen)
		default:
			return 0, fmt.Errorf("record: invalid format character %q", format[i])
		}
	}
	return size, nil
}

// DecodeRow decodes a single row's bytes (as produced by AppendRow) into a
// Record with the given key and format. It returns the number of bytes
// consumed from data.
func DecodeRow(key string, format Format, data []byte) (Record, int, error) {
	size, err := RowSize(format, data)
	if err != nil {
		return Record{}, 0, err
	}
	if size > len(data) {
		return Record{}, 0, fmt.Errorf("record: truncated row: need %d bytes, have %d", size, len(data))
	}

	ts := binary.BigEndian.Uint64(data[:8])
	cols := make([]ColumnValue, 0, len(format))

	off := 8
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case TypeInt32:
			cols = append(cols, Int32Column(int32(binary.BigEndian.Uint32(data[off:]))))
			off += 4
		case TypeUint32:
			cols = append(cols, Uint32Column(binary.BigEndian.Uint32(data[off:])))
			off += 4
		case TypeInt64:
			cols = append(cols, Int64Column(int64(binary.BigEndian.Uint64(data[off:]))))
			off += 8
		case TypeUint64:
			cols = append(cols, Uint64Column(binary.BigEndian.Uint64(data[off:])))
			off += 8
		case TypeFloat32:
			cols = append(cols, Float32Column(float32FromBits(binary.BigEndian.Uint32(data[off:]))))
			off += 4
		case TypeFloat64:
			cols = append(cols, Float64Column(float64FromBits(binary.BigEndian.Uint64(data[off:]))))
			off += 8
		case TypeString:
			strLen, n := binary.Uvarint(data[off:])
			off += n
			cols = append(cols, StringColumn(string(data[off:off+int(strLen)])))
			off += int(strLen)
		}
	}

	return Record{Key: key, Format: format, Timestamp: ts, Columns: cols}, size, nil
}
