package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNoActiveSession is returned when an operation needs a session that
// has not been started.
var ErrNoActiveSession = errors.New("no active session")

// Manager runs lie sessions on top of a Store. A session is anchored by a
// session-start marker holding the document text it started from.
type Manager struct {
	store *Store
	log   zerolog.Logger
}

// NewManager returns a Manager that keeps its bookkeeping in store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store, log: store.log.With().Str("component", "session").Logger()}
}

// Store returns the underlying record store.
func (m *Manager) Store() *Store { return m.store }

// StartSession discards every record of path and starts a new session
// whose baseline is text. Starting over an active session abandons it.
func (m *Manager) StartSession(ctx context.Context, path, text string) (string, error) {
	if prev, ok := m.store.ActiveSessionID(path); ok {
		m.log.Warn().Str("file", path).Str("session", prev).Msg("abandoning active session")
	}
	if _, err := m.store.ClearRecordsForFile(ctx, path); err != nil {
		return "", fmt.Errorf("starting session: %w", err)
	}

	id := m.store.newID()
	snapshot := text
	// The baseline is kept once, in FileSnapshot.
	marker := Record{
		FilePath:     path,
		Type:         TypeSessionStart,
		SessionID:    id,
		IsActive:     true,
		FileSnapshot: &snapshot,
	}
	if _, err := m.store.AddRecord(ctx, marker); err != nil {
		return "", fmt.Errorf("starting session: %w", err)
	}
	m.store.BindSession(path, id)

	m.log.Info().Str("file", path).Str("session", id).Int("snapshot_bytes", len(text)).Msg("session started")
	return id, nil
}

// EndSession closes the active session of path. It is a no-op when none is
// active.
func (m *Manager) EndSession(ctx context.Context, path string) error {
	id, ok := m.store.ActiveSessionID(path)
	if !ok {
		return nil
	}
	n, err := m.store.DeactivateSession(ctx, path)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	m.log.Info().Str("file", path).Str("session", id).Int("records", n).Msg("session ended")
	return nil
}

// HasActiveSession reports whether path has an active session.
func (m *Manager) HasActiveSession(path string) bool {
	_, ok := m.store.ActiveSessionID(path)
	return ok
}

// CurrentSessionID returns the active session of path.
func (m *Manager) CurrentSessionID(path string) (string, bool) {
	return m.store.ActiveSessionID(path)
}

// LatestSnapshot returns the baseline of the most recent session-start
// marker of path, active or not.
func (m *Manager) LatestSnapshot(path string) (string, bool) {
	recs := m.store.RecordsForFile(path)
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].FileSnapshot != nil {
			return *recs[i].FileSnapshot, true
		}
	}
	return "", false
}

// RecordsForFile returns the file's records in insertion order.
func (m *Manager) RecordsForFile(path string) []Record {
	return m.store.RecordsForFile(path)
}

// RunSession starts a session on path, runs fn inside it and ends the
// session however fn exits, including by panic or cancellation of ctx.
func (m *Manager) RunSession(ctx context.Context, path, text string, fn func(ctx context.Context, sessionID string) error) (err error) {
	id, err := m.StartSession(ctx, path, text)
	if err != nil {
		return err
	}

	defer func() {
		// The session must close even when ctx is already cancelled.
		endErr := m.EndSession(context.WithoutCancel(ctx), path)
		if p := recover(); p != nil {
			panic(p)
		}
		if err == nil {
			err = endErr
		}
	}()

	return fn(ctx, id)
}
