package perception

import (
	"bytes"
	"fmt"
	"strings"
)

// Color is a traffic-light state. Numeric values follow the simulator's
// TrafficLight message so recorded scenarios decode unchanged.
//
// The zero Color is Red. Every Result, Decision and stabilizer State is
// built with its colours set to Unknown explicitly (see NoDecision); a
// zero-valued one must never be published.
type Color int

const (
	Red     Color = 0
	Yellow  Color = 1
	Green   Color = 2
	Unknown Color = 4
)

var colorNames = map[Color]string{
	Red:     "RED",
	Yellow:  "YELLOW",
	Green:   "GREEN",
	Unknown: "UNKNOWN",
}

func (c Color) String() string {
	if s, ok := colorNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Color(%d)", int(c))
}

// Valid reports whether c is one of the four defined states.
func (c Color) Valid() bool {
	_, ok := colorNames[c]
	return ok
}

// Normalize maps any out-of-range value to Unknown.
func (c Color) Normalize() Color {
	if c.Valid() {
		return c
	}
	return Unknown
}

// ParseColor accepts a case-insensitive name ("red") or the numeric
// message value ("0").
func ParseColor(s string) (Color, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for c, name := range colorNames {
		if s == name || s == fmt.Sprint(int(c)) {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("unknown colour %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Normalize().String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalJSON accepts either the numeric message value or a quoted name.
func (c *Color) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	return c.UnmarshalText(bytes.Trim(b, `"`))
}
