// Package history owns the edit records and the per-file lie sessions that
// group them.
package history

import (
	"fmt"
	"time"

	"github.com/baicai99/ilovelie/internal/position"
)

// RecordType says how a substitution was produced.
type RecordType string

const (
	TypeManualReplace      RecordType = "manual-replace"
	TypeDictionaryReplace  RecordType = "dictionary-replace"
	TypeAIReplace          RecordType = "ai-replace"
	TypeAIBatchReplace     RecordType = "ai-batch-replace"
	TypeAISelectiveReplace RecordType = "ai-selective-replace"
	TypeHideComment        RecordType = "hide-comment"
	// TypeSessionStart marks the record holding a session's baseline text.
	TypeSessionStart RecordType = "session-start"
)

var recordTypes = []RecordType{
	TypeManualReplace,
	TypeDictionaryReplace,
	TypeAIReplace,
	TypeAIBatchReplace,
	TypeAISelectiveReplace,
	TypeHideComment,
	TypeSessionStart,
}

// ParseRecordType validates s as a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	for _, t := range recordTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// Record is one tracked substitution.
type Record struct {
	ID             string            `json:"id" yaml:"id"`
	FilePath       string            `json:"filePath" yaml:"filePath"`
	OriginalText   string            `json:"originalText" yaml:"originalText"`
	NewText        string            `json:"newText" yaml:"newText"`
	Timestamp      time.Time         `json:"timestamp" yaml:"timestamp"`
	Type           RecordType        `json:"type" yaml:"type"`
	StartPosition  position.Position `json:"startPosition" yaml:"startPosition"`
	EndPosition    position.Position `json:"endPosition" yaml:"endPosition"`
	SessionID      string            `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	IsActive       bool              `json:"isActive,omitempty" yaml:"isActive,omitempty"`
	SessionEndTime *time.Time        `json:"sessionEndTime,omitempty" yaml:"sessionEndTime,omitempty"`
	VersionNumber  int               `json:"versionNumber" yaml:"versionNumber"`
	// FileSnapshot is set only on session-start markers.
	FileSnapshot *string `json:"fileSnapshot,omitempty" yaml:"fileSnapshot,omitempty"`
}

// Range returns the span the record covers.
func (r Record) Range() position.Range {
	return position.Range{Start: r.StartPosition, End: r.EndPosition}
}

// IsMarker reports whether r is a session baseline rather than a
// substitution.
func (r Record) IsMarker() bool {
	return r.Type == TypeSessionStart || r.FileSnapshot != nil
}

// chainKey groups records into version chains. Markers chain separately
// from substitutions that happen to sit at 0:0-0:0.
func (r Record) chainKey() string {
	k := r.FilePath + "\x00" + r.Range().Key()
	if r.IsMarker() {
		k += "\x00marker"
	}
	return k
}

// Substitutions returns the non-marker records in recs, in order.
func Substitutions(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if !r.IsMarker() {
			out = append(out, r)
		}
	}
	return out
}

// Latest collapses each version chain in recs to its newest entry, keeping
// the position of that entry's first appearance.
func Latest(recs []Record) []Record {
	idx := map[string]int{}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		k := r.chainKey()
		if i, ok := idx[k]; ok {
			out[i] = r
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}
