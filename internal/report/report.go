// Package report renders the history of a file for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/toggle"
)

// History is everything known about one file.
type History struct {
	Status  toggle.Status    `json:"status" yaml:"status"`
	Records []history.Record `json:"records" yaml:"records"`
}

// Renderer serializes a History to bytes.
type Renderer interface {
	Render(h *History) ([]byte, error)
}

// ForFormat returns the renderer for "text", "json" or "yaml".
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TextRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "yaml", "yml":
		return &YAMLRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

// JSONRenderer renders a History as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(h *History) ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}

// YAMLRenderer renders a History as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(h *History) ([]byte, error) {
	return yaml.Marshal(h)
}

// TextRenderer renders a History for humans.
type TextRenderer struct{}

func (r *TextRenderer) Render(h *History) ([]byte, error) {
	var sb strings.Builder
	st := h.Status

	fmt.Fprintf(&sb, "%s\n", st.Path)
	fmt.Fprintf(&sb, "  state:    %s\n", strings.ToUpper(string(st.CurrentState)))
	if !st.LastToggleTime.IsZero() {
		fmt.Fprintf(&sb, "  toggled:  %s\n", st.LastToggleTime.Format("2006-01-02 15:04:05"))
	}
	session := "none"
	if st.SessionActive {
		session = "active"
	} else if st.HasSnapshot {
		session = "ended"
	}
	fmt.Fprintf(&sb, "  session:  %s\n", session)
	fmt.Fprintf(&sb, "  lies:     %d (%d hidden comments)\n\n", st.Substitutions, st.HiddenComments)

	if len(h.Records) == 0 {
		sb.WriteString("No records.\n")
		return []byte(sb.String()), nil
	}
	for _, rec := range h.Records {
		sb.WriteString(FormatRecord(rec))
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

// FormatRecord returns a one-line summary of rec.
func FormatRecord(rec history.Record) string {
	ts := rec.Timestamp.Format("2006-01-02 15:04:05")
	if rec.IsMarker() {
		return fmt.Sprintf("%s  %-20s  session %s  %s", ts, rec.Type, shortID(rec.SessionID), activeMark(rec))
	}
	return fmt.Sprintf("%s  %-20s  %s v%d  %q -> %q  %s  %s",
		ts, rec.Type, rec.Range(), rec.VersionNumber,
		abbrev(rec.OriginalText), abbrev(rec.NewText), shortID(rec.ID), activeMark(rec))
}

func activeMark(rec history.Record) string {
	if rec.IsActive {
		return "[active]"
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func abbrev(s string) string {
	const maxLen = 40
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
