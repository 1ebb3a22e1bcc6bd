package frame

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// maxEscapePasses bounds how many layers of double-encoding are unwrapped.
const maxEscapePasses = 4

// DecodeEscapes replaces literal \uXXXX sequences with the characters they
// name. Text that was escaped more than once is unwrapped until it stops
// changing. Surrogate pairs are joined; lone surrogates become U+FFFD.
func DecodeEscapes(s string) string {
	for i := 0; i < maxEscapePasses; i++ {
		if !strings.Contains(s, `\u`) && !strings.Contains(s, `\U`) {
			return s
		}
		next := decodeEscapesOnce(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

func decodeEscapesOnce(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		r, ok := escapeAt(s, i)
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}
		i += 6

		if utf16.IsSurrogate(r) {
			if lo, ok := escapeAt(s, i); ok {
				if pair := utf16.DecodeRune(r, lo); pair != utf8.RuneError {
					b.WriteRune(pair)
					i += 6
					continue
				}
			}
			b.WriteRune(utf8.RuneError)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeAt reports the code unit of a \uXXXX sequence starting at s[i].
func escapeAt(s string, i int) (rune, bool) {
	if i+6 > len(s) || s[i] != '\\' || (s[i+1] != 'u' && s[i+1] != 'U') {
		return 0, false
	}
	var r rune
	for _, c := range []byte(s[i+2 : i+6]) {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | rune(v)
	}
	return r, true
}
