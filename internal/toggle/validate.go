package toggle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/baicai99/ilovelie/internal/position"
)

// ViolationKind classifies a structural problem with a range.
type ViolationKind string

const (
	KindOutOfBounds ViolationKind = "range-out-of-bounds"
	KindOverlap     ViolationKind = "range-overlap"
	KindInvalid     ViolationKind = "invalid-range"
)

// Violation is one offending range.
type Violation struct {
	Kind  ViolationKind  `json:"kind"`
	Range position.Range `json:"range"`
	// With is the second range of an overlap.
	With   *position.Range `json:"with,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

func (v Violation) String() string {
	switch v.Kind {
	case KindOverlap:
		return fmt.Sprintf("range %s overlaps %s", v.Range, v.With)
	case KindInvalid:
		if v.Detail != "" {
			return fmt.Sprintf("range %s invalid: %s", v.Range, v.Detail)
		}
		return fmt.Sprintf("range %s starts after it ends", v.Range)
	default:
		return fmt.Sprintf("range %s out of bounds: %s", v.Range, v.Detail)
	}
}

// ValidationError aborts an operation before anything was changed. It
// lists every offending range, not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid edit ranges: " + strings.Join(parts, "; ")
}

// Lines is the read-only view ValidateRanges checks bounds against.
type Lines interface {
	LineCount() int
	LineAt(n int) (string, error)
}

// ValidateRanges checks each range against the bounds of doc and every
// pair of in-bounds ranges for overlap.
func ValidateRanges(doc Lines, ranges []position.Range) []Violation {
	var (
		out    []Violation
		sorted []position.Range
	)
	for _, r := range ranges {
		if v, ok := checkBounds(doc, r); !ok {
			out = append(out, v)
			continue
		}
		sorted = append(sorted, r)
	}

	// Overlap is only meaningful between ranges that exist in doc.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].Overlaps(sorted[j]) {
				with := sorted[j]
				out = append(out, Violation{Kind: KindOverlap, Range: sorted[i], With: &with})
			}
		}
	}
	return out
}

func checkBounds(doc Lines, r position.Range) (Violation, bool) {
	oob := func(format string, args ...any) (Violation, bool) {
		return Violation{Kind: KindOutOfBounds, Range: r, Detail: fmt.Sprintf(format, args...)}, false
	}
	if r.Start.Line < 0 || r.End.Line < 0 {
		return oob("negative line")
	}
	if r.Start.Character < 0 || r.End.Character < 0 {
		return oob("negative character")
	}
	if !r.IsValid() {
		return Violation{Kind: KindInvalid, Range: r}, false
	}
	if n := doc.LineCount(); r.End.Line >= n {
		return oob("line %d beyond last line %d", r.End.Line, n-1)
	}
	for _, p := range []position.Position{r.Start, r.End} {
		line, err := doc.LineAt(p.Line)
		if err != nil {
			return oob("%v", err)
		}
		if cols := position.ColumnCount(line); p.Character > cols {
			return oob("character %d beyond end of line %d (%d)", p.Character, p.Line, cols)
		}
	}
	return Violation{}, true
}
