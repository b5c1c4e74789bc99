// Package replace writes substitutions into a document under its active
// session and records them.
package replace

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/baicai99/ilovelie/internal/document"
	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/position"
	"github.com/baicai99/ilovelie/internal/toggle"
)

// ErrDocumentDrifted is returned when the live document equals neither the
// TRUTH nor the LIE rendering of its session.
var ErrDocumentDrifted = errors.New("document no longer matches its session baseline")

// Substitution replaces the snapshot text at Range with NewText.
type Substitution struct {
	Range   position.Range
	NewText string
	// Type defaults to manual-replace.
	Type history.RecordType
}

// Engine applies substitutions.
type Engine struct {
	sessions *history.Manager
	toggles  *toggle.Machine
	log      zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// New returns an Engine recording into sessions and reporting new lies to
// toggles.
func New(sessions *history.Manager, toggles *toggle.Machine, opts ...Option) *Engine {
	e := &Engine{sessions: sessions, toggles: toggles, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply writes subs into doc and records them under the active session of
// the document. Ranges are in session snapshot coordinates. A range equal
// to an already recorded one adds a new version to that chain; any other
// overlap is rejected. Nothing is recorded unless the document write
// succeeded.
func (e *Engine) Apply(ctx context.Context, doc document.Document, subs []Substitution) ([]history.Record, error) {
	if doc == nil {
		return nil, errNoDocument()
	}
	if len(subs) == 0 {
		return nil, nil
	}
	path := doc.Path()
	sessionID, ok := e.sessions.CurrentSessionID(path)
	if !ok {
		return nil, errNoSession(path)
	}
	snapshot, ok := e.sessions.LatestSnapshot(path)
	if !ok {
		return nil, fmt.Errorf("%s: session has no baseline: %w", path, history.ErrNoActiveSession)
	}

	records := e.sessions.RecordsForFile(path)
	if err := validate(snapshot, history.Latest(history.Substitutions(records)), subs); err != nil {
		return nil, err
	}

	lie, err := toggle.Render(snapshot, records)
	if err != nil {
		return nil, err
	}
	if live := doc.Text(); live != snapshot && live != lie {
		return nil, fmt.Errorf("%s: %w", path, ErrDocumentDrifted)
	}

	base := position.NewLineIndex(snapshot)
	pending := make([]history.Record, 0, len(subs))
	for _, s := range subs {
		original, err := base.Slice(s.Range)
		if err != nil {
			return nil, err
		}
		typ := s.Type
		if typ == "" {
			typ = history.TypeManualReplace
		}
		pending = append(pending, history.Record{
			FilePath:      path,
			OriginalText:  original,
			NewText:       s.NewText,
			Type:          typ,
			StartPosition: s.Range.Start,
			EndPosition:   s.Range.End,
			SessionID:     sessionID,
			IsActive:      true,
		})
	}

	text, err := toggle.Render(snapshot, append(records, pending...))
	if err != nil {
		return nil, err
	}
	edit := document.Edit{Range: document.FullRange(doc), NewText: text}
	if err := doc.ApplyBatch(ctx, []document.Edit{edit}); err != nil {
		return nil, fmt.Errorf("%w: %w", toggle.ErrEditApplyFailed, err)
	}

	added := make([]history.Record, 0, len(pending))
	for _, rec := range pending {
		stored, err := e.sessions.Store().AddRecord(ctx, rec)
		if err != nil {
			return added, err
		}
		added = append(added, stored)
	}
	e.log.Info().Str("file", path).Str("session", sessionID).Int("records", len(added)).Msg("substitutions applied")

	return added, e.toggles.MarkLies(ctx, path)
}

// Hide blanks out each range, recording it as a hidden comment.
func (e *Engine) Hide(ctx context.Context, doc document.Document, ranges []position.Range) ([]history.Record, error) {
	return e.Apply(ctx, doc, HideSubstitutions(ranges))
}

// HideSubstitutions turns ranges into hidden-comment substitutions.
func HideSubstitutions(ranges []position.Range) []Substitution {
	subs := make([]Substitution, len(ranges))
	for i, r := range ranges {
		subs[i] = Substitution{Range: r, Type: history.TypeHideComment}
	}
	return subs
}

// Validate checks subs against baseline as the first change of a new
// session would be checked, without touching any state.
func Validate(baseline string, subs []Substitution) error {
	return validate(baseline, nil, subs)
}

// validate checks subs against the snapshot bounds, against each other and
// against the ranges already recorded.
func validate(snapshot string, existing []history.Record, subs []Substitution) error {
	ranges := make([]position.Range, len(subs))
	var violations []toggle.Violation
	for i, s := range subs {
		ranges[i] = s.Range
		if s.Type == history.TypeSessionStart {
			violations = append(violations, toggle.Violation{Kind: toggle.KindInvalid, Range: s.Range, Detail: "session-start is not a substitution type"})
		}
	}
	violations = append(violations, toggle.ValidateRanges(document.NewBuffer("", snapshot), ranges)...)

	for _, r := range ranges {
		for _, rec := range existing {
			old := rec.Range()
			if old != r && old.Overlaps(r) {
				violations = append(violations, toggle.Violation{Kind: toggle.KindOverlap, Range: r, With: &old})
			}
		}
	}
	if len(violations) > 0 {
		return &toggle.ValidationError{Violations: violations}
	}
	return nil
}

func errNoDocument() error { return toggle.ErrNoActiveContext }

func errNoSession(path string) error {
	return fmt.Errorf("%s: %w", path, history.ErrNoActiveSession)
}
