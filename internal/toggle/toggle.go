// Package toggle flips documents between their TRUTH and LIE renderings.
//
// When the file has a session baseline the target text is rebuilt from the
// snapshot and applied as one whole-document replace. Files without a
// baseline fall back to patching each recorded range in place, guarded by
// a text match and a full validation pass before anything is written.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baicai99/ilovelie/internal/document"
	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/position"
	"github.com/baicai99/ilovelie/internal/state"
)

// StateKey is the key per-file toggle state is persisted under.
const StateKey = "toggleState"

var (
	// ErrNoActiveContext is returned when there is no document to act on.
	ErrNoActiveContext = errors.New("no active document")
	// ErrEditApplyFailed wraps a failed batch replace. The document and the
	// toggle state are unchanged.
	ErrEditApplyFailed = errors.New("edit apply failed")
)

// State is the rendering a file currently shows.
type State string

const (
	Truth State = "truth"
	Lie   State = "lie"
)

// Opposite returns the other state.
func (s State) Opposite() State {
	if s == Lie {
		return Truth
	}
	return Lie
}

// ParseState accepts "truth" or "lie".
func ParseState(s string) (State, error) {
	switch State(s) {
	case Truth, Lie:
		return State(s), nil
	}
	return "", fmt.Errorf("unknown state %q (want truth or lie)", s)
}

// Info is the persisted per-file toggle state.
type Info struct {
	CurrentState   State     `json:"currentState" yaml:"currentState"`
	LastToggleTime time.Time `json:"lastToggleTime" yaml:"lastToggleTime"`
	HasLies        bool      `json:"hasLies" yaml:"hasLies"`
}

// Strategy names how a switch was carried out.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategySnapshot Strategy = "snapshot"
	StrategyFallback Strategy = "fallback"
)

// Skipped counts records the fallback strategy left alone.
type Skipped struct {
	// AlreadyTarget records already show the target text.
	AlreadyTarget int `json:"alreadyTarget"`
	// Mismatch records whose live text matched neither side.
	Mismatch int `json:"mismatch"`
	// DuplicateRange older versions superseded by a newer one.
	DuplicateRange int `json:"duplicateRange"`
}

// Result reports the outcome of a switch.
type Result struct {
	Success       bool     `json:"success"`
	NewState      State    `json:"newState"`
	AffectedCount int      `json:"affectedCount"`
	ErrorMessage  string   `json:"errorMessage,omitempty"`
	Strategy      Strategy `json:"strategy"`
	Skipped       Skipped  `json:"skipped"`
}

// SessionReader is the read-only view of the session bookkeeping the
// machine needs.
type SessionReader interface {
	LatestSnapshot(path string) (string, bool)
	RecordsForFile(path string) []history.Record
	HasActiveSession(path string) bool
}

// Machine tracks and switches the TRUTH/LIE state of files.
type Machine struct {
	mu       sync.Mutex
	sessions SessionReader
	kv       state.Store
	states   map[string]Info

	now func() time.Time
	log zerolog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(m *Machine) { m.log = l } }

// New loads the persisted toggle state from kv.
func New(ctx context.Context, sessions SessionReader, kv state.Store, opts ...Option) (*Machine, error) {
	m := &Machine{
		sessions: sessions,
		kv:       kv,
		states:   map[string]Info{},
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	if _, err := kv.Get(ctx, StateKey, &m.states); err != nil {
		return nil, fmt.Errorf("loading toggle state: %w", err)
	}
	if m.states == nil {
		m.states = map[string]Info{}
	}
	return m, nil
}

// Info returns the state of path. Unknown files are TRUTH.
func (m *Machine) Info(path string) Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked(path)
}

func (m *Machine) infoLocked(path string) Info {
	info, ok := m.states[path]
	if !ok || info.CurrentState == "" {
		info.CurrentState = Truth
	}
	return info
}

func (m *Machine) persistLocked(ctx context.Context) error {
	if err := m.kv.Update(ctx, StateKey, m.states); err != nil {
		return fmt.Errorf("persisting toggle state: %w", err)
	}
	return nil
}

// Toggle switches doc to the opposite of its current state.
func (m *Machine) Toggle(ctx context.Context, doc document.Document) (Result, error) {
	if doc == nil {
		return Result{ErrorMessage: ErrNoActiveContext.Error()}, ErrNoActiveContext
	}
	return m.SwitchTo(ctx, doc, m.Info(doc.Path()).CurrentState.Opposite())
}

// SwitchTo renders doc in the target state. Switching to the current state
// changes nothing.
func (m *Machine) SwitchTo(ctx context.Context, doc document.Document, target State) (Result, error) {
	if doc == nil {
		return Result{ErrorMessage: ErrNoActiveContext.Error()}, ErrNoActiveContext
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := doc.Path()
	current := m.infoLocked(path)
	if current.CurrentState == target {
		return Result{Success: true, NewState: target, Strategy: StrategyNone}, nil
	}

	records := m.sessions.RecordsForFile(path)
	subs := history.Substitutions(records)
	log := m.log.With().Str("file", path).Str("from", string(current.CurrentState)).Str("to", string(target)).Logger()

	var (
		res Result
		err error
	)
	if snapshot, ok := m.sessions.LatestSnapshot(path); ok {
		res, err = m.switchFromSnapshot(ctx, doc, snapshot, subs, target)
	} else {
		log.Debug().Msg("no baseline, patching records in place")
		res, err = m.switchInPlace(ctx, doc, subs, current.CurrentState, target, log)
	}
	if err != nil || !res.Success {
		if err != nil {
			res.ErrorMessage = err.Error()
			log.Error().Err(err).Str("strategy", string(res.Strategy)).Msg("toggle failed")
		}
		return res, err
	}

	m.states[path] = Info{CurrentState: target, LastToggleTime: m.now(), HasLies: len(subs) > 0}
	log.Info().Str("strategy", string(res.Strategy)).Int("affected", res.AffectedCount).Msg("toggled")
	if err := m.persistLocked(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (m *Machine) switchFromSnapshot(ctx context.Context, doc document.Document, snapshot string, subs []history.Record, target State) (Result, error) {
	res := Result{NewState: target, Strategy: StrategySnapshot}

	text := snapshot
	if target == Lie {
		var err error
		if text, err = Render(snapshot, subs); err != nil {
			return res, err
		}
	}
	edit := document.Edit{Range: document.FullRange(doc), NewText: text}
	if err := doc.ApplyBatch(ctx, []document.Edit{edit}); err != nil {
		return res, fmt.Errorf("%w: %w", ErrEditApplyFailed, err)
	}

	res.Success = true
	res.AffectedCount = len(subs)
	return res, nil
}

// chain is one range's version history, as the fallback strategy sees it.
type chain struct {
	rng position.Range
	// truth is the text before the first version, lie the newest text.
	truth, lie string
	id         string
}

func (m *Machine) switchInPlace(ctx context.Context, doc document.Document, subs []history.Record, from, target State, log zerolog.Logger) (Result, error) {
	res := Result{NewState: target, Strategy: StrategyFallback}

	byRange := map[position.Range]*chain{}
	var chains []*chain
	for _, r := range subs {
		if c, ok := byRange[r.Range()]; ok {
			c.lie = r.NewText
			c.id = r.ID
			res.Skipped.DuplicateRange++
			continue
		}
		c := &chain{rng: r.Range(), truth: r.OriginalText, lie: r.NewText, id: r.ID}
		byRange[c.rng] = c
		chains = append(chains, c)
	}
	// Tail to head, so a replacement never shifts a range still to come.
	sort.SliceStable(chains, func(i, j int) bool { return chains[j].rng.Start.Before(chains[i].rng.Start) })

	var edits []document.Edit
	for _, c := range chains {
		expected, replacement := c.truth, c.lie
		if from == Lie {
			expected, replacement = c.lie, c.truth
		}
		live := doc.TextInRange(c.rng)
		switch {
		case position.Matches(live, expected):
			edits = append(edits, document.Edit{Range: c.rng, NewText: replacement})
		case position.Matches(live, replacement):
			res.Skipped.AlreadyTarget++
		default:
			res.Skipped.Mismatch++
			log.Warn().Str("record", c.id).Str("range", c.rng.String()).Msg("live text matches neither rendering, skipping")
		}
	}

	if len(edits) == 0 {
		if res.Skipped.Mismatch > 0 && res.Skipped.AlreadyTarget == 0 {
			res.ErrorMessage = "no record matches the current document text"
			return res, nil
		}
		res.Success = true
		return res, nil
	}

	ranges := make([]position.Range, len(edits))
	for i, e := range edits {
		ranges[i] = e.Range
	}
	if v := ValidateRanges(doc, ranges); len(v) > 0 {
		return res, &ValidationError{Violations: v}
	}

	if err := doc.ApplyBatch(ctx, edits); err != nil {
		return res, fmt.Errorf("%w: %w", ErrEditApplyFailed, err)
	}
	res.Success = true
	res.AffectedCount = len(edits)
	return res, nil
}
