// Package document provides the document accessor the toggle engine reads
// and edits through: range reads, line queries and one atomic batch replace.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/baicai99/ilovelie/internal/position"
)

// ErrOverlappingEdits is returned by ApplyBatch when two edits touch the
// same text.
var ErrOverlappingEdits = errors.New("overlapping edits")

// Edit replaces the text in Range with NewText.
type Edit struct {
	Range   position.Range
	NewText string
}

// Document is a mutable text addressed by line/character ranges.
type Document interface {
	// Path identifies the document; records are keyed by it.
	Path() string
	// Text returns the whole content.
	Text() string
	// TextInRange returns the text in r, clamping r to the document the
	// way an editor does.
	TextInRange(r position.Range) string
	LineCount() int
	LineAt(n int) (string, error)
	// End is the position just past the last character.
	End() position.Position
	// ApplyBatch applies all edits as one transaction. Every range refers
	// to the document as it was before the batch. On error nothing changed.
	ApplyBatch(ctx context.Context, edits []Edit) error
}

// FullRange returns the range covering all of doc.
func FullRange(doc Document) position.Range {
	return position.Range{End: doc.End()}
}

// Buffer is an in-memory Document.
type Buffer struct {
	path  string
	index *position.LineIndex
}

// NewBuffer creates a buffer holding text.
func NewBuffer(path, text string) *Buffer {
	return &Buffer{path: path, index: position.NewLineIndex(text)}
}

func (b *Buffer) Path() string { return b.path }

func (b *Buffer) Text() string { return b.index.Text() }

func (b *Buffer) TextInRange(r position.Range) string { return b.index.SliceClamped(r) }

func (b *Buffer) LineCount() int { return b.index.LineCount() }

func (b *Buffer) LineAt(n int) (string, error) { return b.index.Line(n) }

func (b *Buffer) End() position.Position { return b.index.End() }

// ApplyBatch implements Document.
func (b *Buffer) ApplyBatch(ctx context.Context, edits []Edit) error {
	text, err := b.render(ctx, edits)
	if err != nil {
		return err
	}
	b.index = position.NewLineIndex(text)
	return nil
}

// render computes the text that results from applying edits without
// touching the buffer.
func (b *Buffer) render(ctx context.Context, edits []Edit) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type span struct {
		start, end int
		text       string
		rng        position.Range
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		start, end, err := b.index.Offsets(e.Range)
		if err != nil {
			return "", fmt.Errorf("edit %s: %w", e.Range, err)
		}
		spans = append(spans, span{start: start, end: end, text: e.NewText, rng: e.Range})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})
	for i := 1; i < len(spans); i++ {
		if spans[i].rng.Overlaps(spans[i-1].rng) {
			return "", fmt.Errorf("%s and %s: %w", spans[i-1].rng, spans[i].rng, ErrOverlappingEdits)
		}
	}

	src := b.index.Text()
	var sb strings.Builder
	prev := 0
	for _, s := range spans {
		sb.WriteString(src[prev:s.start])
		sb.WriteString(s.text)
		prev = s.end
	}
	sb.WriteString(src[prev:])
	return sb.String(), nil
}
