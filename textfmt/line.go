package textfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/record"
)

// EncodeLine renders rec as one text line: `escape(key) \t timestamp \t
// [format \t] column-values-separated-by-spaces` (§4.8). includeFormat
// controls whether the format string is written as its own field (the
// `add_from_stream_with_fmt` shape) or omitted (the caller already knows
// the format for every row, the plain `add_from_stream` shape).
func EncodeLine(rec record.Record, includeFormat bool, ts TimestampCodec) (string, error) {
	var b strings.Builder
	b.WriteString(Escape(rec.Key))
	b.WriteByte('\t')
	b.WriteString(ts.Format(rec.Timestamp))
	b.WriteByte('\t')
	if includeFormat {
		b.WriteString(string(rec.Format))
		b.WriteByte('\t')
	}

	for i, col := range rec.Columns {
		if i > 0 {
			b.WriteByte(' ')
		}
		s, err := encodeColumn(col)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}

	return b.String(), nil
}

func encodeColumn(col record.ColumnValue) (string, error) {
	switch col.Kind() {
	case record.TypeInt32:
		return strconv.FormatInt(int64(col.Int32()), 10), nil
	case record.TypeUint32:
		return strconv.FormatUint(uint64(col.Uint32()), 10), nil
	case record.TypeInt64:
		return strconv.FormatInt(col.Int64(), 10), nil
	case record.TypeUint64:
		return strconv.FormatUint(col.Uint64(), 10), nil
	case record.TypeFloat32:
		return strconv.FormatFloat(float64(col.Float32()), 'g', -1, 32), nil
	case record.TypeFloat64:
		return strconv.FormatFloat(col.Float64(), 'g', -1, 64), nil
	case record.TypeString:
		return Escape(col.String()), nil
	default:
		return "", fmt.Errorf("textfmt: unknown column kind %q", col.Kind())
	}
}

// ParseLine parses one text line in the fixed-format shape (the format is
// not present in the line itself; the caller supplies it, matching
// add_from_stream's `format` parameter). Blank lines (after trimming
// trailing whitespace) are reported via ok=false.
func ParseLine(line string, format record.Format, ts TimestampCodec) (rec record.Record, ok bool, err error) {
	trimmed := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return record.Record{}, false, nil
	}

	key, rest, good := SplitOne(trimmed)
	if !good {
		return record.Record{}, false, fmt.Errorf("textfmt: dangling escape in line key")
	}
	tsField, rest, good := SplitOne(rest)
	if !good {
		return record.Record{}, false, fmt.Errorf("textfmt: dangling escape in line timestamp")
	}

	tsVal, err := ts.Parse(tsField)
	if err != nil {
		return record.Record{}, false, err
	}

	cols, err := parseColumns(rest, format)
	if err != nil {
		return record.Record{}, false, err
	}

	rec = record.Record{Key: key, Format: format, Timestamp: tsVal, Columns: cols}
	return rec, true, nil
}

// ParseLineWithFormat parses one text line where the format string is
// itself the third field (add_from_stream_with_fmt's shape): `key \t
// timestamp \t format \t column-values`.
func ParseLineWithFormat(line string, ts TimestampCodec) (rec record.Record, ok bool, err error) {
	trimmed := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return record.Record{}, false, nil
	}

	key, rest, good := SplitOne(trimmed)
	if !good {
		return record.Record{}, false, fmt.Errorf("textfmt: dangling escape in line key")
	}
	tsField, rest, good := SplitOne(rest)
	if !good {
		return record.Record{}, false, fmt.Errorf("textfmt: dangling escape in line timestamp")
	}
	fmtField, rest, good := SplitOne(rest)
	if !good {
		return record.Record{}, false, fmt.Errorf("textfmt: dangling escape in line format")
	}

	tsVal, err := ts.Parse(tsField)
	if err != nil {
		return record.Record{}, false, err
	}

	format := record.Format(fmtField)
	if err := format.Validate(); err != nil {
		return record.Record{}, false, err
	}

	cols, err := parseColumns(rest, format)
	if err != nil {
		return record.Record{}, false, err
	}

	rec = record.Record{Key: key, Format: format, Timestamp: tsVal, Columns: cols}
	return rec, true, nil
}

func parseColumns(rest string, format record.Format) ([]record.ColumnValue, error) {
	fields, good := SplitFields(rest)
	if !good {
		return nil, fmt.Errorf("textfmt: dangling escape in column values")
	}
	if len(fields) != len(format) {
		return nil, errs.ErrColumnCountMismatch
	}

	cols := make([]record.ColumnValue, len(format))
	for i := 0; i < len(format); i++ {
		col, err := parseColumn(format[i], fields[i])
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

func parseColumn(typ byte, field string) (record.ColumnValue, error) {
	switch typ {
	case record.TypeInt32:
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return record.ColumnValue{}, fmt.Errorf("textfmt: invalid i32 %q: %w", field, err)
		}
		return record.Int32Column(int32(v)), nil
	case record.TypeUint32:
		v, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return record.ColumnValue{}, fmt.Errorf("textfmt: invalid u32 %q: %w", field, err)
		}
		return record.Uint32Column(uint32(v)), nil
	case record.TypeInt64:
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return record.ColumnValue{}, fmt.Errorf("textfmt: invalid i64 %q: %w", field, err)
		}
		return record.Int64Column(v), nil
	case record.TypeUint64:
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return record.ColumnValue{}, fmt.Errorf("textfmt: invalid u64 %q: %w", field, err)
		}
		return record.Uint64Column(v), nil
	case record.TypeFloat32:
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return record.ColumnValue{}, fmt.Errorf("textfmt: invalid f32 %q: %w", field, err)
		}
		return record.Float32Column(float32(v)), nil
	case record.TypeFloat64:
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return record.ColumnValue{}, fmt.Errorf("textfmt: invalid f64 %q: %w", field, err)
		}
		return record.Float64Column(v), nil
	case record.TypeString:
		return record.StringColumn(field), nil
	default:
		return record.ColumnValue{}, errs.ErrInvalidFormatChar
	}
}

// CheckFormat implements the `nocheck` cross-reference of §4.8: when not
// skipped, add verifies an incoming row's format string matches the
// format already on record for its key (formatted.rs's
// `db.get(&key).next()` comparison). Returns *errs.HeterogeneousFormats
// if they differ.
func CheckFormat(key string, existing, offered record.Format) error {
	if existing == "" || existing == offered {
		return nil
	}
	return &errs.HeterogeneousFormats{Key: key, PriorFormat: string(existing), OfferedFormat: string(offered)}
}
