package record

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Charset selects the character encoding applied to textual fields.
// Binary fields are never converted.
type Charset int

const (
	// EBCDIC is code page 037, the encoding named by the X9.37 standard.
	EBCDIC Charset = iota

	// ASCII is accepted by most receiving banks for X9.100-187 files.
	ASCII
)

// String returns the configuration name of the charset.
func (c Charset) String() string {
	if c == ASCII {
		return "ascii"
	}
	return "ebcdic"
}

// ParseCharset maps a configuration value to a Charset. An empty value
// selects EBCDIC.
func ParseCharset(s string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ebcdic", "cp037":
		return EBCDIC, nil
	case "ascii":
		return ASCII, nil
	}
	return EBCDIC, fmt.Errorf("unknown record encoding %q", s)
}

// encode converts laid-out field text into wire bytes.
func (c Charset) encode(text string) ([]byte, error) {
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 || text[i] > 0x7e {
			return nil, fmt.Errorf("character %q at offset %d is not printable ASCII", text[i], i)
		}
	}
	if c == ASCII {
		return []byte(text), nil
	}
	return charmap.CodePage037.NewEncoder().Bytes([]byte(text))
}

// Fold reduces text to printable ASCII before it is laid out: accents are
// stripped ("José" becomes "Jose"), control characters become blanks and
// anything else outside ASCII becomes '?'.
func Fold(text string) string {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 || text[i] > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		return text
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return ' '
		case r > 0x7e:
			return '?'
		}
		return r
	}, stripped)
}
