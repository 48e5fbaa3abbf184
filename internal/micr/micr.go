// =============================================================================
// X9 Cash Letter Encoder - MICR Line Parser
// =============================================================================
//
// Decodes the E-13B MICR line read from a check by the scanner into the
// values the check detail record needs.
//
// LINE LAYOUT (right to left, positions relative to the transit field):
//   Amount field          : between two amount symbols, rightmost
//   On-Us field           : account number, on-us symbol, check number
//   Transit field         : transit symbol, 9-digit routing number, transit symbol
//   External processing   : one digit immediately left of the transit field
//   Auxiliary On-Us field : leftmost, bracketed by on-us symbols
//
// SYMBOLS:
//   Scanners transliterate the E-13B control symbols. Both the Ranger
//   lowercase set (d c b -) and the uppercase set (T U A D) are accepted,
//   as are the Unicode OCR glyphs.
//
// =============================================================================

package micr

import (
	"regexp"
	"strings"
)

const (
	transitSymbol = 'T'
	onUsSymbol    = 'U'
	amountSymbol  = 'A'
	dashSymbol    = '-'
)

// symbols maps every accepted transliteration to its canonical symbol.
var symbols = map[rune]rune{
	'd': transitSymbol, 'T': transitSymbol, '⑆': transitSymbol,
	'c': onUsSymbol, 'U': onUsSymbol, '⑈': onUsSymbol,
	'b': amountSymbol, 'A': amountSymbol, '$': amountSymbol, '⑇': amountSymbol,
	'-': dashSymbol, 'D': dashSymbol, '⑉': dashSymbol,
}

var transitField = regexp.MustCompile(`T(\d{9})T`)

// Line is a parsed MICR line.
type Line struct {
	routing string
	account string
	check   string
	auxOnUs string
	epc     string
	amount  string
}

// Parse decodes a decrypted MICR line. It fails with a *DataError when the
// line is empty or has no parseable routing number.
func Parse(raw string) (*Line, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &DataError{Reason: "MICR line is empty"}
	}

	line := normalize(raw)

	loc := transitField.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, &DataError{Reason: "MICR line has no parseable routing number field"}
	}

	parsed := &Line{routing: line[loc[2]:loc[3]]}

	left := strings.TrimRight(line[:loc[0]], " ")
	if n := len(left); n > 0 && isDigit(left[n-1]) && (n == 1 || !isDigit(left[n-2])) {
		parsed.epc = left[n-1:]
		left = left[:n-1]
	}
	parsed.auxOnUs = clean(left)

	right := line[loc[1]:]
	onUs := right
	if i := strings.IndexRune(right, amountSymbol); i >= 0 {
		onUs = right[:i]
		rest := right[i+1:]
		if j := strings.IndexRune(rest, amountSymbol); j >= 0 {
			rest = rest[:j]
		}
		parsed.amount = clean(rest)
	}

	onUs = strings.TrimSpace(onUs)
	if i := strings.LastIndexByte(onUs, onUsSymbol); i >= 0 {
		parsed.account = clean(onUs[:i])
		parsed.check = clean(onUs[i+1:])
	} else {
		parsed.account = clean(onUs)
	}

	// Business checks carry the serial number in the auxiliary on-us field.
	if parsed.check == "" {
		parsed.check = parsed.auxOnUs
	}

	return parsed, nil
}

// RoutingNumber returns the 9-digit payor bank routing number.
func (l *Line) RoutingNumber() string { return l.routing }

// PayorBankRouting splits the routing number into its 8-digit institution
// identifier and check digit.
func (l *Line) PayorBankRouting() (string, string) {
	return l.routing[:8], l.routing[8:]
}

// AccountNumber returns the account number from the on-us field.
func (l *Line) AccountNumber() string { return l.account }

// CheckNumber returns the check serial number.
func (l *Line) CheckNumber() string { return l.check }

// AuxOnUs returns the auxiliary on-us field.
func (l *Line) AuxOnUs() string { return l.auxOnUs }

// ExternalProcessingCode returns the single EPC digit, or "".
func (l *Line) ExternalProcessingCode() string { return l.epc }

// Amount returns the encoded amount digits, or "" for unencoded checks.
func (l *Line) Amount() string { return l.amount }

// OnUs returns the composed On-Us value for the check detail record.
func (l *Line) OnUs() string {
	return ComposeOnUs(l.account, l.check)
}

// RawOnUs joins account and check number without trimming or truncation.
func (l *Line) RawOnUs() string {
	return l.account + "/" + l.check
}

// =============================================================================
// ON-US COMPOSITION
// =============================================================================

// MaxOnUsLength is the width of the check detail On-Us field.
const MaxOnUsLength = 20

// ComposeOnUs joins account and check number as "account/check" after
// stripping leading zeros. When the result is too long the leftmost account
// characters are dropped so the check number survives whole; a check number
// that cannot fit on its own keeps its rightmost digits.
func ComposeOnUs(account, check string) string {
	account = strings.TrimLeft(account, "0")
	check = strings.TrimLeft(check, "0")

	if room := MaxOnUsLength - 2; len(check) > room {
		check = check[len(check)-room:]
	}

	onUs := account + "/" + check
	if len(onUs) > MaxOnUsLength {
		onUs = onUs[len(onUs)-MaxOnUsLength:]
	}
	return onUs
}

// =============================================================================
// HELPERS
// =============================================================================

// normalize maps symbol transliterations to canonical symbols and drops
// anything that is not a digit, symbol or space.
func normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		default:
			if s, ok := symbols[r]; ok {
				b.WriteRune(s)
			}
		}
	}
	return b.String()
}

// clean keeps digits and dashes.
func clean(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) || s[i] == dashSymbol {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
