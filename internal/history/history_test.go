package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/baicai99/ilovelie/internal/position"
	"github.com/baicai99/ilovelie/internal/state"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T, kv state.Store, c *clock) *Store {
	t.Helper()
	n := 0
	s, err := NewStore(context.Background(), kv,
		WithClock(c.now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	require.NoError(t, err)
	return s
}

func sub(path string, r position.Range, oldText, newText string) Record {
	return Record{
		FilePath:      path,
		OriginalText:  oldText,
		NewText:       newText,
		Type:          TypeManualReplace,
		StartPosition: r.Start,
		EndPosition:   r.End,
	}
}

func TestAddRecordFillsDefaults(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestStore(t, state.NewMemoryStore(), c)

	rec, err := s.AddRecord(context.Background(), sub("a.go", position.NewRange(0, 2, 0, 6), "// x", "// z"))
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, c.t, rec.Timestamp)
	assert.Equal(t, 1, rec.VersionNumber)

	got, ok := s.RecordByID("id-1")
	require.True(t, ok)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, s.Count())
}

// N records on the identical range are numbered 1..N in application order.
func TestVersionMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, err := NewStore(context.Background(), state.NewMemoryStore())
		if err != nil {
			rt.Fatal(err)
		}
		target := position.NewRange(1, 0, 1, 4)
		other := position.NewRange(2, 0, 2, 1)

		n := rapid.IntRange(1, 20).Draw(rt, "n")
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "interleave") {
				if _, err := s.AddRecord(context.Background(), sub("f", other, "x", "y")); err != nil {
					rt.Fatal(err)
				}
			}
			if _, err := s.AddRecord(context.Background(), sub("f", target, "old", fmt.Sprint(i))); err != nil {
				rt.Fatal(err)
			}
		}

		want := 1
		for _, r := range s.RecordsForFile("f") {
			if r.Range() != target {
				continue
			}
			if r.VersionNumber != want {
				rt.Fatalf("record %d: version %d, want %d", want, r.VersionNumber, want)
			}
			want++
		}
		if want-1 != n {
			rt.Fatalf("found %d versions, want %d", want-1, n)
		}
	})
}

func TestMarkerChainsSeparately(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()})
	m := NewManager(s)

	_, err := m.StartSession(ctx, "f", "text")
	require.NoError(t, err)
	rec, err := s.AddRecord(ctx, sub("f", position.Range{}, "", "prefix "))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.VersionNumber)
}

func TestRecordsForFileIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()})
	_, err := s.AddRecord(ctx, sub("f", position.NewRange(0, 0, 0, 1), "a", "b"))
	require.NoError(t, err)

	recs := s.RecordsForFile("f")
	recs[0].NewText = "mutated"
	assert.Equal(t, "b", s.RecordsForFile("f")[0].NewText)
	assert.Empty(t, s.RecordsForFile("g"))
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()})
	m := NewManager(s)

	_, err := m.StartSession(ctx, "a", "aaa")
	require.NoError(t, err)
	_, err = s.AddRecord(ctx, sub("a", position.NewRange(0, 0, 0, 1), "a", "b"))
	require.NoError(t, err)
	_, err = s.AddRecord(ctx, sub("b", position.NewRange(0, 0, 0, 1), "a", "b"))
	require.NoError(t, err)

	n, err := s.RemoveRecordByID(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.ClearRecordsForFile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, m.HasActiveSession("a"))
	assert.Equal(t, 1, s.Count())

	only := s.RecordsForFile("b")[0]
	n, err = s.RemoveRecordByID(ctx, only.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, s.Count())
}

func TestCleanupOldRecordsKeepsActive(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestStore(t, state.NewMemoryStore(), c)
	m := NewManager(s)

	// An ended session, then a still-running one, both old.
	_, err := m.StartSession(ctx, "done", "x")
	require.NoError(t, err)
	require.NoError(t, m.EndSession(ctx, "done"))
	_, err = m.StartSession(ctx, "live", "y")
	require.NoError(t, err)

	c.t = c.t.Add(48 * time.Hour)
	_, err = s.AddRecord(ctx, sub("recent", position.NewRange(0, 0, 0, 1), "a", "b"))
	require.NoError(t, err)

	old := s.OldRecords(24 * time.Hour)
	require.Len(t, old, 1)
	assert.Equal(t, "done", old[0].FilePath)
	assert.Equal(t, 3, s.Count())

	n, err := s.CleanupOldRecords(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, s.RecordsForFile("done"))
	assert.Len(t, s.RecordsForFile("live"), 1)
	assert.Len(t, s.RecordsForFile("recent"), 1)
	assert.True(t, m.HasActiveSession("live"))
}

func TestDedupeKeepsHighestVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()})
	m := NewManager(s)

	_, err := m.StartSession(ctx, "f", "abc def")
	require.NoError(t, err)
	r1 := position.NewRange(0, 0, 0, 3)
	r2 := position.NewRange(0, 4, 0, 7)
	for _, text := range []string{"x", "y", "z"} {
		_, err = s.AddRecord(ctx, sub("f", r1, "abc", text))
		require.NoError(t, err)
	}
	_, err = s.AddRecord(ctx, sub("f", r2, "def", "w"))
	require.NoError(t, err)

	n, err := s.DedupeRecordsForFile(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs := s.RecordsForFile("f")
	require.Len(t, recs, 3)
	assert.True(t, recs[0].IsMarker())
	assert.Equal(t, "z", recs[1].NewText)
	assert.Equal(t, 3, recs[1].VersionNumber)
	assert.Equal(t, "w", recs[2].NewText)
}

// Session exclusivity: a second StartSession leaves only the new lineage.
func TestStartSessionSupersedesPrevious(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()})
	m := NewManager(s)

	first, err := m.StartSession(ctx, "f", "one")
	require.NoError(t, err)
	_, err = s.AddRecord(ctx, Record{FilePath: "f", SessionID: first, IsActive: true, Type: TypeManualReplace})
	require.NoError(t, err)

	second, err := m.StartSession(ctx, "f", "two")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	recs := m.RecordsForFile("f")
	require.Len(t, recs, 1)
	assert.Equal(t, second, recs[0].SessionID)
	assert.Equal(t, TypeSessionStart, recs[0].Type)
	assert.Equal(t, 1, recs[0].VersionNumber)

	id, ok := m.CurrentSessionID("f")
	require.True(t, ok)
	assert.Equal(t, second, id)

	snap, ok := m.LatestSnapshot("f")
	require.True(t, ok)
	assert.Equal(t, "two", snap)
}

func TestEndSessionDeactivatesRecords(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)}
	s := newTestStore(t, state.NewMemoryStore(), c)
	m := NewManager(s)

	id, err := m.StartSession(ctx, "f", "text")
	require.NoError(t, err)
	_, err = s.AddRecord(ctx, Record{FilePath: "f", SessionID: id, IsActive: true, Type: TypeHideComment})
	require.NoError(t, err)

	c.t = c.t.Add(time.Minute)
	require.NoError(t, m.EndSession(ctx, "f"))
	assert.False(t, m.HasActiveSession("f"))
	for _, r := range s.RecordsForFile("f") {
		assert.False(t, r.IsActive)
		require.NotNil(t, r.SessionEndTime)
		assert.Equal(t, c.t, *r.SessionEndTime)
	}

	// No-op without an active session.
	require.NoError(t, m.EndSession(ctx, "f"))
	require.NoError(t, m.EndSession(ctx, "never"))

	// The snapshot outlives the session.
	_, ok := m.LatestSnapshot("f")
	assert.True(t, ok)
}

func TestReloadRebuildsActiveSessions(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryStore()
	s := newTestStore(t, kv, &clock{t: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)})
	m := NewManager(s)

	live, err := m.StartSession(ctx, "live", "a")
	require.NoError(t, err)
	_, err = m.StartSession(ctx, "ended", "b")
	require.NoError(t, err)
	require.NoError(t, m.EndSession(ctx, "ended"))

	reloaded, err := NewStore(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"live": live}, reloaded.ActiveSessions())
	assert.Equal(t, s.AllRecords(), reloaded.AllRecords())
}

func TestRunSessionEndsOnEveryExit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		m := NewManager(newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()}))
		var seen string
		err := m.RunSession(ctx, "f", "text", func(_ context.Context, id string) error {
			seen = id
			assert.True(t, m.HasActiveSession("f"))
			return nil
		})
		require.NoError(t, err)
		assert.NotEmpty(t, seen)
		assert.False(t, m.HasActiveSession("f"))
	})

	t.Run("error", func(t *testing.T) {
		m := NewManager(newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()}))
		boom := errors.New("boom")
		err := m.RunSession(ctx, "f", "text", func(context.Context, string) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, m.HasActiveSession("f"))
	})

	t.Run("panic", func(t *testing.T) {
		m := NewManager(newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()}))
		assert.PanicsWithValue(t, "boom", func() {
			_ = m.RunSession(ctx, "f", "text", func(context.Context, string) error { panic("boom") })
		})
		assert.False(t, m.HasActiveSession("f"))
	})

	t.Run("cancelled", func(t *testing.T) {
		kv := state.NewMemoryStore()
		m := NewManager(newTestStore(t, kv, &clock{t: time.Now()}))
		cctx, cancel := context.WithCancel(ctx)
		err := m.RunSession(cctx, "f", "text", func(ctx context.Context, _ string) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, m.HasActiveSession("f"))

		reloaded, err := NewStore(ctx, kv)
		require.NoError(t, err)
		assert.Empty(t, reloaded.ActiveSessions())
	})
}

func TestLatestHelpers(t *testing.T) {
	snap := "s"
	recs := []Record{
		{FilePath: "f", Type: TypeSessionStart, FileSnapshot: &snap},
		sub("f", position.NewRange(0, 0, 0, 1), "a", "b"),
		sub("f", position.NewRange(0, 2, 0, 3), "c", "d"),
		sub("f", position.NewRange(0, 0, 0, 1), "a", "e"),
	}
	subs := Substitutions(recs)
	require.Len(t, subs, 3)

	latest := Latest(subs)
	require.Len(t, latest, 2)
	assert.Equal(t, "e", latest[0].NewText)
	assert.Equal(t, "d", latest[1].NewText)
}

func TestParseRecordType(t *testing.T) {
	got, err := ParseRecordType("ai-batch-replace")
	require.NoError(t, err)
	assert.Equal(t, TypeAIBatchReplace, got)

	_, err = ParseRecordType("rewrite")
	assert.Error(t, err)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	kv := state.NewMemoryStore()
	s := newTestStore(t, kv, c)
	m := NewManager(s)

	_, err := m.StartSession(ctx, "a", "aaa")
	require.NoError(t, err)
	_, err = s.AddRecord(ctx, sub("b", position.NewRange(0, 0, 0, 1), "a", "b"))
	require.NoError(t, err)

	n, err := s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, m.HasActiveSession("a"))
	assert.Empty(t, s.ActiveSessions())

	reloaded := newTestStore(t, kv, c)
	assert.Zero(t, reloaded.Count())
}

func TestStartSessionStoresBaselineOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, state.NewMemoryStore(), &clock{t: time.Now()})
	m := NewManager(s)

	_, err := m.StartSession(ctx, "f", "line one\nline two\n")
	require.NoError(t, err)

	marker := s.RecordsForFile("f")[0]
	require.True(t, marker.IsMarker())
	require.NotNil(t, marker.FileSnapshot)
	assert.Equal(t, "line one\nline two\n", *marker.FileSnapshot)
	assert.Empty(t, marker.OriginalText)
	assert.Empty(t, marker.NewText)

	snap, ok := m.LatestSnapshot("f")
	require.True(t, ok)
	assert.Equal(t, "line one\nline two\n", snap)
}
