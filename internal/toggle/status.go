package toggle

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/baicai99/ilovelie/internal/document"
	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/position"
)

// MarkLies records that substitutions were just written into path, so it
// now shows LIE.
func (m *Machine) MarkLies(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[path] = Info{CurrentState: Lie, LastToggleTime: m.now(), HasLies: true}
	m.log.Debug().Str("file", path).Msg("lies added")
	return m.persistLocked(ctx)
}

// Refresh recomputes HasLies from the records of path, keeping its state.
// It does not touch the document; a file showing LIE whose records are
// about to go must pass through Withdraw first.
func (m *Machine) Refresh(ctx context.Context, path string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.infoLocked(path)
	info.HasLies = len(history.Substitutions(m.sessions.RecordsForFile(path))) > 0
	if !info.HasLies {
		info.CurrentState = Truth
	}
	m.states[path] = info
	return info, m.persistLocked(ctx)
}

// Withdraw takes removed out of the rendering doc shows. It must run
// before the records are deleted. A file showing TRUTH is left as is; a
// file showing LIE is re-rendered from the remaining records, and drops
// back to TRUTH when none remain.
func (m *Machine) Withdraw(ctx context.Context, doc document.Document, removed []history.Record) error {
	if doc == nil {
		return ErrNoActiveContext
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	path := doc.Path()
	gone := make(map[string]bool, len(removed))
	for _, r := range removed {
		gone[r.ID] = true
	}
	subs := history.Substitutions(m.sessions.RecordsForFile(path))
	var remaining []history.Record
	for _, r := range subs {
		if !gone[r.ID] {
			remaining = append(remaining, r)
		}
	}

	info := m.infoLocked(path)
	info.HasLies = len(remaining) > 0
	if info.CurrentState == Lie {
		log := m.log.With().Str("file", path).Int("withdrawn", len(subs)-len(remaining)).Logger()
		var err error
		if snapshot, ok := m.sessions.LatestSnapshot(path); ok {
			err = withdrawFromSnapshot(ctx, doc, snapshot, remaining)
		} else {
			err = withdrawInPlace(ctx, doc, subs, gone, log)
		}
		if err != nil {
			log.Error().Err(err).Msg("withdraw failed")
			return err
		}
		if !info.HasLies {
			info.CurrentState = Truth
			info.LastToggleTime = m.now()
		}
		log.Info().Msg("withdrawn from the lie")
	}
	m.states[path] = info
	return m.persistLocked(ctx)
}

func withdrawFromSnapshot(ctx context.Context, doc document.Document, snapshot string, remaining []history.Record) error {
	text, err := Render(snapshot, remaining)
	if err != nil {
		return err
	}
	if text == doc.Text() {
		return nil
	}
	edit := document.Edit{Range: document.FullRange(doc), NewText: text}
	if err := doc.ApplyBatch(ctx, []document.Edit{edit}); err != nil {
		return fmt.Errorf("%w: %w", ErrEditApplyFailed, err)
	}
	return nil
}

// withdrawInPlace rolls each touched range back to the newest version that
// survives, or to the text before its first version.
func withdrawInPlace(ctx context.Context, doc document.Document, subs []history.Record, gone map[string]bool, log zerolog.Logger) error {
	type versions struct {
		rng       position.Range
		truth     string
		cur, want history.Record
		kept      bool
	}
	byRange := map[position.Range]*versions{}
	var order []*versions
	for _, r := range subs {
		v, ok := byRange[r.Range()]
		if !ok {
			v = &versions{rng: r.Range(), truth: r.OriginalText}
			byRange[v.rng] = v
			order = append(order, v)
		}
		v.cur = r
		if !gone[r.ID] {
			v.want, v.kept = r, true
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[j].rng.Start.Before(order[i].rng.Start) })

	var edits []document.Edit
	for _, v := range order {
		if v.kept && v.want.ID == v.cur.ID {
			continue
		}
		target := v.truth
		if v.kept {
			target = v.want.NewText
		}
		if !position.Matches(doc.TextInRange(v.rng), v.cur.NewText) {
			log.Warn().Str("record", v.cur.ID).Str("range", v.rng.String()).Msg("live text no longer shows the lie, leaving it")
			continue
		}
		edits = append(edits, document.Edit{Range: v.rng, NewText: target})
	}
	if len(edits) == 0 {
		return nil
	}

	ranges := make([]position.Range, len(edits))
	for i, e := range edits {
		ranges[i] = e.Range
	}
	if v := ValidateRanges(doc, ranges); len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	if err := doc.ApplyBatch(ctx, edits); err != nil {
		return fmt.Errorf("%w: %w", ErrEditApplyFailed, err)
	}
	return nil
}

// Paths lists every file with a toggle state, sorted.
func (m *Machine) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.states))
	for p := range m.states {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Forget drops the toggle state of path.
func (m *Machine) Forget(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[path]; !ok {
		return nil
	}
	delete(m.states, path)
	return m.persistLocked(ctx)
}

// Status summarises a file for display.
type Status struct {
	Path           string `json:"path" yaml:"path"`
	Info           `yaml:",inline"`
	Substitutions  int  `json:"substitutions" yaml:"substitutions"`
	HiddenComments int  `json:"hiddenComments" yaml:"hiddenComments"`
	HasSnapshot    bool `json:"hasSnapshot" yaml:"hasSnapshot"`
	SessionActive  bool `json:"sessionActive" yaml:"sessionActive"`
}

// Status returns the state of path together with record counts.
func (m *Machine) Status(path string) Status {
	st := Status{Path: path, Info: m.Info(path)}
	for _, r := range history.Latest(history.Substitutions(m.sessions.RecordsForFile(path))) {
		st.Substitutions++
		if r.Type == history.TypeHideComment {
			st.HiddenComments++
		}
	}
	_, st.HasSnapshot = m.sessions.LatestSnapshot(path)
	st.SessionActive = m.sessions.HasActiveSession(path)
	return st
}

// Finding classifies one record in a Diagnosis.
type Finding string

const (
	FindingRestorable  Finding = "restorable"
	FindingOutOfBounds Finding = "out-of-bounds"
	FindingMismatch    Finding = "mismatch"
)

// DiagnosisEntry is the finding for the newest version of one range.
type DiagnosisEntry struct {
	RecordID string         `json:"recordId" yaml:"recordId"`
	Range    position.Range `json:"range" yaml:"range"`
	Finding  Finding        `json:"finding" yaml:"finding"`
	Live     string         `json:"live,omitempty" yaml:"live,omitempty"`
	Expected string         `json:"expected" yaml:"expected"`
}

// Diagnosis explains whether the records of a file still line up with the
// live document.
type Diagnosis struct {
	Path        string           `json:"path" yaml:"path"`
	State       State            `json:"state" yaml:"state"`
	HasSnapshot bool             `json:"hasSnapshot" yaml:"hasSnapshot"`
	// Drifted is set when a baseline exists and the document equals neither
	// of its renderings.
	Drifted     bool             `json:"drifted" yaml:"drifted"`
	Restorable  int              `json:"restorable" yaml:"restorable"`
	OutOfBounds int              `json:"outOfBounds" yaml:"outOfBounds"`
	Mismatch    int              `json:"mismatch" yaml:"mismatch"`
	Entries     []DiagnosisEntry `json:"entries" yaml:"entries"`
}

// Diagnose checks each record of doc against the text the current state
// says should be at its range.
func (m *Machine) Diagnose(doc document.Document) (Diagnosis, error) {
	if doc == nil {
		return Diagnosis{}, ErrNoActiveContext
	}
	path := doc.Path()
	d := Diagnosis{Path: path, State: m.Info(path).CurrentState}
	records := m.sessions.RecordsForFile(path)
	subs := history.Latest(history.Substitutions(records))

	if snapshot, ok := m.sessions.LatestSnapshot(path); ok {
		d.HasSnapshot = true
		lie, err := Render(snapshot, subs)
		if err != nil {
			return d, err
		}
		text := doc.Text()
		d.Drifted = text != snapshot && text != lie
	}

	for _, r := range subs {
		expected := r.OriginalText
		if d.State == Lie {
			expected = r.NewText
		}
		e := DiagnosisEntry{RecordID: r.ID, Range: r.Range(), Expected: expected}
		if _, ok := checkBounds(doc, r.Range()); !ok {
			e.Finding = FindingOutOfBounds
			d.OutOfBounds++
		} else if e.Live = doc.TextInRange(r.Range()); position.Matches(e.Live, expected) {
			e.Finding = FindingRestorable
			d.Restorable++
		} else {
			e.Finding = FindingMismatch
			d.Mismatch++
		}
		d.Entries = append(d.Entries, e)
	}
	return d, nil
}
