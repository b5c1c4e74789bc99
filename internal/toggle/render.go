package toggle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/position"
)

// Render builds the LIE text of snapshot: the newest version of every
// substitution in records spliced into the baseline. Markers are ignored.
// Ranges are snapshot coordinates and must not overlap.
func Render(snapshot string, records []history.Record) (string, error) {
	ix := position.NewLineIndex(snapshot)

	type splice struct {
		start, end int
		rng        position.Range
		text       string
	}
	subs := history.Latest(history.Substitutions(records))
	splices := make([]splice, 0, len(subs))
	for _, r := range subs {
		start, end, err := ix.Offsets(r.Range())
		if err != nil {
			return "", fmt.Errorf("record %s: %w", r.ID, err)
		}
		splices = append(splices, splice{start: start, end: end, rng: r.Range(), text: r.NewText})
	}
	sort.SliceStable(splices, func(i, j int) bool {
		if splices[i].start != splices[j].start {
			return splices[i].start < splices[j].start
		}
		return splices[i].end < splices[j].end
	})

	var sb strings.Builder
	prev := 0
	for i, s := range splices {
		if i > 0 && (s.start < prev || s.rng.Overlaps(splices[i-1].rng)) {
			with := splices[i-1].rng
			return "", &ValidationError{Violations: []Violation{{Kind: KindOverlap, Range: s.rng, With: &with}}}
		}
		sb.WriteString(snapshot[prev:s.start])
		sb.WriteString(s.text)
		prev = s.end
	}
	sb.WriteString(snapshot[prev:])
	return sb.String(), nil
}
