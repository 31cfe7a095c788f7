package ir

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Literal forms:
//
//	number    3, -0.5, 1e+21, NaN, +Inf
//	text      "kitchen" (Go quoting, NFC normalized)
//	bool      true, false
//	location  geo(52.37,4.89)
//	blob      0x00ff (lowercase hex)

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatBlob(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// NewText returns s as a Text in NFC form, the form QuoteText writes.
func NewText(s string) Text {
	return Text(norm.NFC.String(s))
}

// QuoteText renders a text literal. Strings are NFC normalized at the
// serialization boundary so equivalent inputs produce identical output.
func QuoteText(s string) string {
	return strconv.Quote(norm.NFC.String(s))
}

// ParseLiteral parses exactly one literal, ignoring surrounding spaces.
func ParseLiteral(s string) (Value, error) {
	trimmed := strings.TrimSpace(s)
	v, n, err := ScanLiteral(trimmed)
	if err != nil {
		return nil, err
	}
	if n != len(trimmed) {
		return nil, fmt.Errorf("unexpected %q after literal", trimmed[n:])
	}
	return v, nil
}

// ScanLiteral parses the literal at the start of s and returns the value
// and the number of bytes consumed.
func ScanLiteral(s string) (Value, int, error) {
	switch {
	case s == "":
		return nil, 0, fmt.Errorf("empty literal")
	case s[0] == '"':
		return scanText(s)
	case strings.HasPrefix(s, "geo("):
		return scanLocation(s)
	case strings.HasPrefix(s, "0x"):
		return scanBlob(s)
	case hasWord(s, "true"):
		return Bool(true), 4, nil
	case hasWord(s, "false"):
		return Bool(false), 5, nil
	default:
		return scanNumber(s)
	}
}

func hasWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	return len(s) == len(word) || !isWordByte(s[len(word)])
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func scanText(s string) (Value, int, error) {
	escaped := false
	for i := 1; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			str, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return nil, 0, fmt.Errorf("text literal %s: %w", s[:i+1], err)
			}
			return NewText(str), i + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("unterminated text literal")
}

func scanLocation(s string) (Value, int, error) {
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return nil, 0, fmt.Errorf("unterminated location literal")
	}
	parts := strings.Split(s[len("geo("):end], ",")
	if len(parts) != 2 {
		return nil, 0, fmt.Errorf("location literal %s: want geo(lat,lon)", s[:end+1])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, 0, fmt.Errorf("location latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, 0, fmt.Errorf("location longitude: %w", err)
	}
	return Location{Lat: lat, Lon: lon}, end + 1, nil
}

func scanBlob(s string) (Value, int, error) {
	i := 2
	for i < len(s) && isHexByte(s[i]) {
		i++
	}
	b, err := hex.DecodeString(s[2:i])
	if err != nil {
		return nil, 0, fmt.Errorf("blob literal %s: %w", s[:i], err)
	}
	return Blob(b), i, nil
}

func isHexByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func scanNumber(s string) (Value, int, error) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for ; i < len(s); i++ {
		c := s[i]
		word := c >= '0' && c <= '9' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		exponentSign := (c == '+' || c == '-') && i > 0 && (s[i-1] == 'e' || s[i-1] == 'E')
		if !word && !exponentSign {
			break
		}
	}
	if i == 0 {
		return nil, 0, fmt.Errorf("expected literal at %q", s)
	}
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return nil, 0, fmt.Errorf("number literal %q: %w", s[:i], err)
	}
	return Number(f), i, nil
}
