package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/baicai99/ilovelie/internal/document"
	"github.com/baicai99/ilovelie/internal/position"
	"github.com/baicai99/ilovelie/internal/toggle"
)

// openDocument loads the file named on the command line.
func openDocument(path string) (*document.File, error) {
	doc, err := document.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	return doc, nil
}

// trackedPath returns the key records of path are stored under. The file
// itself need not exist.
func trackedPath(path string) (string, error) {
	return filepath.Abs(path)
}

func parseRanges(specs []string) ([]position.Range, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --at range is required")
	}
	out := make([]position.Range, 0, len(specs))
	for _, s := range specs {
		r, err := position.ParseRange(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// inSession runs fn under the active session of doc, or under a session
// opened just for fn when there is none. Opening a session discards the
// file's records, so check runs against the would-be baseline first, and a
// file showing its lie is refused unless force is set.
func inSession(ctx context.Context, doc *document.File, force bool, check func(baseline string) error, fn func(ctx context.Context) error) error {
	path := doc.Path()
	if eng.sessions.HasActiveSession(path) {
		return fn(ctx)
	}
	if info := eng.toggles.Info(path); info.CurrentState == toggle.Lie {
		if !force {
			return fmt.Errorf("%s shows its lie; start a session, toggle to the truth, or pass --force", path)
		}
		eng.log.Warn().Str("file", path).Msg("file shows its lie; the new baseline will include it")
	}
	if check != nil {
		if err := check(doc.Text()); err != nil {
			return err
		}
	}
	return eng.sessions.RunSession(ctx, path, doc.Text(), func(ctx context.Context, _ string) error {
		return fn(ctx)
	})
}
