package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baicai99/ilovelie/internal/state"
)

// StateKey is the key the record collection is persisted under.
const StateKey = "changeHistory"

// Store is the append-only, versioned record collection. Every mutation is
// written through to the backing state.Store before it returns.
type Store struct {
	mu      sync.Mutex
	kv      state.Store
	records []Record
	// active maps filePath to the session currently accepting records.
	active map[string]string

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDGenerator overrides the uuid generator.
func WithIDGenerator(fn func() string) Option { return func(s *Store) { s.newID = fn } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// NewStore loads the persisted records from kv and rebuilds the active
// session map from the records still flagged active.
func NewStore(ctx context.Context, kv state.Store, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     kv,
		active: map[string]string{},
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}

	if _, err := kv.Get(ctx, StateKey, &s.records); err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	for _, r := range s.records {
		if !r.IsActive || r.SessionID == "" {
			continue
		}
		if prev, ok := s.active[r.FilePath]; ok && prev != r.SessionID {
			s.log.Warn().Str("file", r.FilePath).Str("session", prev).
				Str("replaced_by", r.SessionID).Msg("multiple active sessions on load")
		}
		s.active[r.FilePath] = r.SessionID
	}
	s.log.Debug().Int("records", len(s.records)).Int("active_sessions", len(s.active)).Msg("history loaded")
	return s, nil
}

// persist writes the whole collection. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	if err := s.kv.Update(ctx, StateKey, s.records); err != nil {
		return fmt.Errorf("persisting history: %w", err)
	}
	return nil
}

// AddRecord appends rec as the next version of its range's chain. ID and
// Timestamp are filled in when empty. The stored record is returned.
func (s *Store) AddRecord(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	version := 0
	key := rec.chainKey()
	for _, r := range s.records {
		if r.chainKey() == key && r.VersionNumber > version {
			version = r.VersionNumber
		}
	}
	rec.VersionNumber = version + 1

	s.records = append(s.records, rec)
	s.log.Debug().Str("file", rec.FilePath).Str("record", rec.ID).
		Str("range", rec.Range().String()).Int("version", rec.VersionNumber).Msg("record added")
	return rec, s.persist(ctx)
}

// RecordsForFile returns a copy of the file's records in insertion order.
func (s *Store) RecordsForFile(path string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.records {
		if r.FilePath == path {
			out = append(out, r)
		}
	}
	return out
}

// AllRecords returns a copy of every record.
func (s *Store) AllRecords() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// RecordByID looks a record up by id.
func (s *Store) RecordByID(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// removeWhere drops every record matching fn and persists if anything was
// removed. Callers hold s.mu.
func (s *Store) removeWhere(ctx context.Context, fn func(Record) bool) (int, error) {
	kept := s.records[:0:0]
	for _, r := range s.records {
		if !fn(r) {
			kept = append(kept, r)
		}
	}
	removed := len(s.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.records = kept
	s.pruneActive()
	return removed, s.persist(ctx)
}

// pruneActive forgets sessions that no longer own an active record, so the
// in-memory map always matches what a reload would rebuild.
func (s *Store) pruneActive() {
	live := map[string]bool{}
	for _, r := range s.records {
		if r.IsActive {
			live[r.SessionID] = true
		}
	}
	for path, id := range s.active {
		if !live[id] {
			delete(s.active, path)
		}
	}
}

// RemoveRecordByID permanently deletes one record and returns how many
// were removed (0 or 1).
func (s *Store) RemoveRecordByID(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.removeWhere(ctx, func(r Record) bool { return r.ID == id })
	if n > 0 {
		s.log.Debug().Str("record", id).Msg("record removed")
	}
	return n, err
}

// ClearRecordsForFile deletes every record of path and drops its active
// session, if any.
func (s *Store) ClearRecordsForFile(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, path)
	n, err := s.removeWhere(ctx, func(r Record) bool { return r.FilePath == path })
	if n > 0 {
		s.log.Debug().Str("file", path).Int("removed", n).Msg("records cleared")
	}
	return n, err
}

// ClearAll deletes every record and forgets every session.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = map[string]string{}
	return s.removeWhere(ctx, func(Record) bool { return true })
}

// CleanupOldRecords removes inactive records whose timestamp is older than
// maxAge. Active records are kept regardless of age.
func (s *Store) CleanupOldRecords(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	n, err := s.removeWhere(ctx, expired(cutoff))
	if n > 0 {
		s.log.Info().Int("removed", n).Time("cutoff", cutoff).Msg("old records cleaned up")
	}
	return n, err
}

// OldRecords returns the records CleanupOldRecords would remove for maxAge.
func (s *Store) OldRecords(maxAge time.Duration) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := expired(s.now().Add(-maxAge))
	var out []Record
	for _, r := range s.records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func expired(cutoff time.Time) func(Record) bool {
	return func(r Record) bool { return !r.IsActive && r.Timestamp.Before(cutoff) }
}

// DedupeRecordsForFile keeps only the highest version of each
// substitution chain of path. Markers are left alone.
func (s *Store) DedupeRecordsForFile(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := map[string]int{}
	for _, r := range s.records {
		if r.FilePath != path || r.IsMarker() {
			continue
		}
		if r.VersionNumber > best[r.chainKey()] {
			best[r.chainKey()] = r.VersionNumber
		}
	}

	seen := map[string]bool{}
	n, err := s.removeWhere(ctx, func(r Record) bool {
		if r.FilePath != path || r.IsMarker() {
			return false
		}
		k := r.chainKey()
		if r.VersionNumber != best[k] || seen[k] {
			return true
		}
		seen[k] = true
		return false
	})
	if n > 0 {
		s.log.Debug().Str("file", path).Int("removed", n).Msg("duplicate records removed")
	}
	return n, err
}

// BindSession registers sessionID as the active session of path.
func (s *Store) BindSession(path, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[path] = sessionID
}

// ActiveSessionID returns the active session of path.
func (s *Store) ActiveSessionID(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[path]
	return id, ok
}

// DeactivateSession flags every active record of the session bound to path
// as inactive, stamps its end time and unbinds the session. It returns the
// number of records touched.
func (s *Store) DeactivateSession(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.active[path]
	if !ok {
		return 0, nil
	}
	delete(s.active, path)

	end := s.now()
	n := 0
	for i := range s.records {
		r := &s.records[i]
		if r.SessionID == id && r.IsActive {
			r.IsActive = false
			r.SessionEndTime = &end
			n++
		}
	}
	return n, s.persist(ctx)
}

// ActiveSessions returns a copy of the filePath to session id map.
func (s *Store) ActiveSessions() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out
}
