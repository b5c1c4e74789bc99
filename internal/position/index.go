package position

import (
	"fmt"
	"sort"
)

// LineIndex is a line-start offset table over a fixed text. It converts
// between line/character positions and byte offsets.
type LineIndex struct {
	text   string
	starts []int // byte offset of each line start
}

// NewLineIndex indexes text. A text with N newlines has N+1 lines.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Text returns the indexed text.
func (ix *LineIndex) Text() string { return ix.text }

// LineCount returns the number of lines.
func (ix *LineIndex) LineCount() int { return len(ix.starts) }

// lineBounds returns the byte span of line n without its line terminator.
func (ix *LineIndex) lineBounds(n int) (start, end int) {
	start = ix.starts[n]
	if n+1 < len(ix.starts) {
		end = ix.starts[n+1] - 1
	} else {
		end = len(ix.text)
	}
	if end > start && ix.text[end-1] == '\r' {
		end--
	}
	return start, end
}

// Line returns the content of line n without its terminator.
func (ix *LineIndex) Line(n int) (string, error) {
	if n < 0 || n >= len(ix.starts) {
		return "", fmt.Errorf("line %d of %d: %w", n, len(ix.starts), ErrOutOfBounds)
	}
	start, end := ix.lineBounds(n)
	return ix.text[start:end], nil
}

// LineLength returns the length of line n in UTF-16 code units.
func (ix *LineIndex) LineLength(n int) (int, error) {
	line, err := ix.Line(n)
	if err != nil {
		return 0, err
	}
	return utf16Len(line), nil
}

// End returns the position just past the last character of the text.
func (ix *LineIndex) End() Position {
	last := len(ix.starts) - 1
	start, end := ix.lineBounds(last)
	return Position{Line: last, Character: utf16Len(ix.text[start:end])}
}

// Offset converts p to a byte offset. Positions outside the text are an
// error.
func (ix *LineIndex) Offset(p Position) (int, error) {
	if p.Line < 0 || p.Line >= len(ix.starts) {
		return 0, fmt.Errorf("%s: line outside 0..%d: %w", p, len(ix.starts)-1, ErrOutOfBounds)
	}
	if p.Character < 0 {
		return 0, fmt.Errorf("%s: negative character: %w", p, ErrOutOfBounds)
	}
	start, end := ix.lineBounds(p.Line)
	content := ix.text[start:end]
	if p.Character > utf16Len(content) {
		return 0, fmt.Errorf("%s: line has %d characters: %w", p, utf16Len(content), ErrOutOfBounds)
	}
	return start + utf16ToByteOffset(content, p.Character), nil
}

// Clamp moves p to the nearest position that exists in the text.
func (ix *LineIndex) Clamp(p Position) Position {
	if p.Line < 0 {
		return Position{}
	}
	if p.Line >= len(ix.starts) {
		return ix.End()
	}
	if p.Character < 0 {
		return Position{Line: p.Line}
	}
	n, _ := ix.LineLength(p.Line)
	if p.Character > n {
		return Position{Line: p.Line, Character: n}
	}
	return p
}

// PositionAt converts a byte offset to a position, clamping to the text.
func (ix *LineIndex) PositionAt(offset int) Position {
	if offset <= 0 {
		return Position{}
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}
	line := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > offset }) - 1
	start, end := ix.lineBounds(line)
	if offset > end {
		offset = end
	}
	return Position{Line: line, Character: utf16Len(ix.text[start:offset])}
}

// Slice returns the text covered by r. Out-of-bounds or inverted ranges
// are an error.
func (ix *LineIndex) Slice(r Range) (string, error) {
	start, end, err := ix.Offsets(r)
	if err != nil {
		return "", err
	}
	return ix.text[start:end], nil
}

// SliceClamped returns the text covered by r after clamping both ends, the
// way an editor reads a range that no longer fits the document.
func (ix *LineIndex) SliceClamped(r Range) string {
	start, _ := ix.Offset(ix.Clamp(r.Start))
	end, _ := ix.Offset(ix.Clamp(r.End))
	if end < start {
		return ""
	}
	return ix.text[start:end]
}

// Offsets converts r to a byte span.
func (ix *LineIndex) Offsets(r Range) (start, end int, err error) {
	if !r.IsValid() {
		return 0, 0, fmt.Errorf("range %s: start after end: %w", r, ErrOutOfBounds)
	}
	if start, err = ix.Offset(r.Start); err != nil {
		return 0, 0, err
	}
	if end, err = ix.Offset(r.End); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ColumnCount returns the number of character columns in s.
func ColumnCount(s string) int { return utf16Len(s) }

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// utf16ToByteOffset converts a UTF-16 offset within s to a byte offset.
func utf16ToByteOffset(s string, off int) int {
	if off <= 0 {
		return 0
	}
	count := 0
	for i, r := range s {
		if count >= off {
			return i
		}
		if r >= 0x10000 {
			count += 2
		} else {
			count++
		}
	}
	return len(s)
}
