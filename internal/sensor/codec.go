package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Record kinds on the serial link
const (
	KindHeight       = "H" // H,<value>
	KindLongitudinal = "X" // X,<value>
	KindLateral      = "Y" // Y,<value>
	KindPilot        = "P" // P,<lon>,<lat>,<vert>,<rot>
	KindCommand      = "M" // M,<command>
)

// ErrMalformedLine is returned for lines that do not decode to a record
var ErrMalformedLine = errors.New("malformed link line")

// Record is one decoded line from the link
type Record struct {
	Kind    string
	Value   float64
	Sticks  [4]int
	Command string
}

// ParseLine decodes one newline-stripped line
func ParseLine(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, ",") {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	parts := strings.Split(line, ",")
	kind := strings.ToUpper(strings.TrimSpace(parts[0]))

	switch kind {
	case KindHeight, KindLongitudinal, KindLateral:
		if len(parts) != 2 {
			return Record{}, fmt.Errorf("%w: %s expects 1 field, got %d", ErrMalformedLine, kind, len(parts)-1)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		return Record{Kind: kind, Value: value}, nil

	case KindPilot:
		if len(parts) != 5 {
			return Record{}, fmt.Errorf("%w: %s expects 4 fields, got %d", ErrMalformedLine, kind, len(parts)-1)
		}
		var rec Record
		rec.Kind = kind
		for i := 0; i < 4; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(parts[i+1]))
			if err != nil {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
			}
			rec.Sticks[i] = v
		}
		return rec, nil

	case KindCommand:
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return Record{}, fmt.Errorf("%w: %s expects a command name", ErrMalformedLine, kind)
		}
		return Record{Kind: kind, Command: strings.ToLower(strings.TrimSpace(parts[1]))}, nil
	}

	return Record{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedLine, kind)
}
