// Package position holds the line/character coordinate model shared by the
// record store, the document accessors and the toggle engine.
//
// Lines are 0-based. Characters are 0-based columns measured in UTF-16 code
// units, the convention editors and the LSP protocol use.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrOutOfBounds is returned when a position does not exist in a text.
var ErrOutOfBounds = errors.New("position out of bounds")

// Position is a line/character location.
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
}

// String returns "line:character".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Compare returns -1 if p < other, 0 if p == other, 1 if p > other.
func (p Position) Compare(other Position) int {
	switch {
	case p.Line < other.Line:
		return -1
	case p.Line > other.Line:
		return 1
	case p.Character < other.Character:
		return -1
	case p.Character > other.Character:
		return 1
	}
	return 0
}

// Before reports whether p comes before other.
func (p Position) Before(other Position) bool { return p.Compare(other) < 0 }

// After reports whether p comes after other.
func (p Position) After(other Position) bool { return p.Compare(other) > 0 }

// Range is a half-open span [Start, End).
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// NewRange builds a range from four coordinates.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// String returns "[l:c-l:c)".
func (r Range) String() string {
	return "[" + r.Start.String() + "-" + r.End.String() + ")"
}

// Key is a stable identifier for the range, used to group version chains.
func (r Range) Key() string {
	return r.Start.String() + "-" + r.End.String()
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool { return r.Start.Compare(r.End) == 0 }

// IsValid reports whether Start <= End.
func (r Range) IsValid() bool { return r.Start.Compare(r.End) <= 0 }

// Overlaps reports whether two ranges share any text, or are the same range.
// Ranges that only touch at a boundary do not overlap.
func (r Range) Overlaps(other Range) bool {
	if r == other {
		return true
	}
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// ParseRange parses "L:C-L:C" into a Range.
func ParseRange(s string) (Range, error) {
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range %q: want L:C-L:C", s)
	}
	start, err := parsePosition(startStr)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	end, err := parsePosition(endStr)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return Range{Start: start, End: end}, nil
}

func parsePosition(s string) (Position, error) {
	lineStr, charStr, ok := strings.Cut(s, ":")
	if !ok {
		return Position{}, fmt.Errorf("invalid position %q", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return Position{}, fmt.Errorf("invalid line in %q: %w", s, err)
	}
	char, err := strconv.Atoi(charStr)
	if err != nil {
		return Position{}, fmt.Errorf("invalid character in %q: %w", s, err)
	}
	return Position{Line: line, Character: char}, nil
}
