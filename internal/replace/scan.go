package replace

import (
	"context"
	"strings"

	"github.com/baicai99/ilovelie/internal/document"
	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/position"
)

// Comment is one span found by a Scanner.
type Comment struct {
	Content   string
	CleanText string
	Range     position.Range
	Format    string
}

// Scanner finds candidate spans in a text.
type Scanner interface {
	Scan(text, lang string) ([]Comment, error)
}

// Source produces the replacement for a comment. An error means no
// substitution for that comment.
type Source interface {
	Substitute(ctx context.Context, cleanText string) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, cleanText string) (string, error)

func (f SourceFunc) Substitute(ctx context.Context, cleanText string) (string, error) {
	return f(ctx, cleanText)
}

// ScanReport summarises ApplyScanned.
type ScanReport struct {
	Found   int
	Applied []history.Record
	// Failed counts comments the source produced nothing for.
	Failed int
	// Skipped counts comments overlapping an existing record.
	Skipped int
}

// ApplyScanned scans the session baseline of doc, asks source for a
// replacement for every comment found and applies the results as one
// batch of typ records.
func (e *Engine) ApplyScanned(ctx context.Context, doc document.Document, scanner Scanner, source Source, lang string, typ history.RecordType) (ScanReport, error) {
	var report ScanReport
	if doc == nil {
		return report, errNoDocument()
	}
	path := doc.Path()
	snapshot, ok := e.sessions.LatestSnapshot(path)
	if !ok || !e.sessions.HasActiveSession(path) {
		return report, errNoSession(path)
	}

	comments, err := scanner.Scan(snapshot, lang)
	if err != nil {
		return report, err
	}
	report.Found = len(comments)

	existing := history.Latest(history.Substitutions(e.sessions.RecordsForFile(path)))
	var subs []Substitution
	for _, c := range comments {
		if overlapsAny(c.Range, existing) || overlapsSubs(c.Range, subs) {
			report.Skipped++
			continue
		}
		clean := c.CleanText
		if clean == "" {
			clean = position.StripCommentSyntax(c.Content)
		}
		text, err := source.Substitute(ctx, clean)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			e.log.Warn().Err(err).Str("file", path).Str("range", c.Range.String()).Msg("no substitution produced")
			continue
		}
		subs = append(subs, Substitution{Range: c.Range, NewText: text, Type: typ})
	}

	report.Applied, err = e.Apply(ctx, doc, subs)
	return report, err
}

func overlapsAny(r position.Range, recs []history.Record) bool {
	for _, rec := range recs {
		if old := rec.Range(); old != r && old.Overlaps(r) {
			return true
		}
	}
	return false
}

func overlapsSubs(r position.Range, subs []Substitution) bool {
	for _, s := range subs {
		if s.Range.Overlaps(r) {
			return true
		}
	}
	return false
}

// MatchScanner reports every occurrence of Needle as a comment.
type MatchScanner struct {
	Needle string
}

// Scan implements Scanner.
func (m MatchScanner) Scan(text, _ string) ([]Comment, error) {
	if m.Needle == "" {
		return nil, nil
	}
	ix := position.NewLineIndex(text)
	var out []Comment
	for off := 0; ; {
		i := strings.Index(text[off:], m.Needle)
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(m.Needle)
		out = append(out, Comment{
			Content:   m.Needle,
			CleanText: m.Needle,
			Range:     position.Range{Start: ix.PositionAt(start), End: ix.PositionAt(end)},
			Format:    "match",
		})
		off = end
	}
	return out, nil
}

// Fixed is a Source that always answers text.
func Fixed(text string) Source {
	return SourceFunc(func(context.Context, string) (string, error) { return text, nil })
}
