package report

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Annotations is an ordered list of advisory messages. Older stores hold the
// "; "-joined CSV string (or null) instead of an array; both decode.
type Annotations []string

// SplitAnnotations splits a ";"-joined cell, trimming and dropping empties.
func SplitAnnotations(s string) Annotations {
	var out Annotations
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Join renders the list the way the CSV stores it.
func (a Annotations) Join() string {
	return strings.Join(a, "; ")
}

func (a Annotations) has(msg string) bool {
	for _, v := range a {
		if v == msg {
			return true
		}
	}
	return false
}

func (a Annotations) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

func (a *Annotations) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = SplitAnnotations(s)
		return nil
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*a = list
		return nil
	}
}

// Decimal is a float rendered with two decimals as a JSON string, the format
// of the per-source breakdown. Bare numbers decode too.
type Decimal float64

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatFloat(float64(d), 'f', 2, 64))), nil
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	*d = Decimal(ParseFloat(s))
	return nil
}

// ParseInt reads the leading integer of s, ignoring anything after it.
// Unparsable input yields 0.
func ParseInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseFloat reads the leading decimal number of s, ignoring anything after
// it. Unparsable input yields 0.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	// optional exponent, only when followed by digits
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		expDigits := exp
		for expDigits < len(s) && s[expDigits] >= '0' && s[expDigits] <= '9' {
			expDigits++
		}
		if expDigits > exp {
			end = expDigits
		}
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}
