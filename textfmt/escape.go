// Package textfmt implements the text line bridge of §4.8: the
// tab/space-delimited row format the CLI's `add` and `read` subcommands
// speak, its backslash escape sequences, and the nanosecond/strftime-like
// timestamp encodings.
//
// Grounded on original_source/escape_string/src/lib.rs for the escape
// alphabet and the whitespace-aware tokenizer (split_one_bytes), and
// original_source/src/formatted.rs for the line shape and timestamp
// format handling; neither mebo nor the rest of the pack has a text
// bridge of its own.
package textfmt

import "strings"

// Escape returns s with every backslash and the eight named whitespace
// characters (§4.8: `\a \b \t \n \v \f \r \\ \<space>`) replaced by their
// two-character backslash sequence. Used when writing keys and string
// columns to the text form.
func Escape(s string) string {
	if !strings.ContainsAny(s, "\a\b\t\n\v\f\r\\ ") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\a':
			b.WriteString(`\a`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\v':
			b.WriteString(`\v`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case ' ':
			b.WriteString(`\ `)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SplitOne splits text at the first unescaped whitespace run, returning
// the unescaped token before it and the remaining text after it (leading
// and trailing whitespace around the token is consumed). It mirrors
// escape_string::split_one_bytes: an escape character followed by one of
// the named letters decodes to that control byte, `\<space>` and `\\`
// decode to themselves, and any other character following a backslash is
// taken literally (the backslash is simply dropped). ok is false if text
// ends with a dangling backslash.
func SplitOne(text string) (token string, rest string, ok bool) {
	i := 0
	for i < len(text) && isSpace(text[i]) {
		i++
	}

	var b strings.Builder
	start := i
	escaped := false

	for i < len(text) {
		c := text[i]
		if c == '\\' {
			if !escaped {
				escaped = true
				b.WriteString(text[start:i])
			}
			i++
			if i >= len(text) {
				return "", "", false
			}
			switch text[i] {
			case 'a':
				b.WriteByte('\a')
			case 'b':
				b.WriteByte('\b')
			case 't':
				b.WriteByte('\t')
			case 'n':
				b.WriteByte('\n')
			case 'v':
				b.WriteByte('\v')
			case 'f':
				b.WriteByte('\f')
			case 'r':
				b.WriteByte('\r')
			case ' ':
				b.WriteByte(' ')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(text[i])
			}
			i++
			start = i
			continue
		}
		if isSpace(c) {
			break
		}
		i++
	}

	if escaped {
		b.WriteString(text[start:i])
		token = b.String()
	} else {
		token = text[start:i]
	}

	j := i
	for j < len(text) && isSpace(text[j]) {
		j++
	}
	return token, text[j:], true
}

// SplitFields splits text into every whitespace-delimited, escape-aware
// token (§4.8's column-values, which are space separated). Returns false
// if a token has a dangling trailing backslash.
func SplitFields(text string) ([]string, bool) {
	var fields []string
	for len(text) > 0 {
		tok, rest, ok := SplitOne(text)
		if !ok {
			return nil, false
		}
		fields = append(fields, tok)
		text = rest
	}
	return fields, true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
