package cmd

import (
	"strings"
	"testing"

	"github.com/baicai99/ilovelie/internal/history"
)

func TestReplaceWithoutSessionEndsIt(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.go", "// keep me\n")

	run(t, "replace", path, "--at", "0:3-0:10", "--text", "drop it")
	if got := readFile(t, path); got != "// drop it\n" {
		t.Fatalf("got %q", got)
	}

	out := run(t, "session", "status", path)
	if !strings.Contains(out, "no active session") {
		t.Errorf("expected the one-off session to be ended, got %q", out)
	}
	for _, r := range loadHistory(t, path).Records {
		if r.IsActive || r.SessionEndTime == nil {
			t.Errorf("record %s left active", r.ID)
		}
	}

	run(t, "toggle", path)
	if got := readFile(t, path); got != "// keep me\n" {
		t.Fatalf("toggle got %q", got)
	}
}

func TestReplaceMatch(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.txt", "foo bar foo\n")
	run(t, "session", "start", path)

	out := run(t, "replace", path, "--match", "foo", "--text", "baz")
	if !strings.Contains(out, "Found 2, replaced 2, skipped 0") {
		t.Errorf("unexpected output: %q", out)
	}
	if got := readFile(t, path); got != "baz bar baz\n" {
		t.Fatalf("got %q", got)
	}

	// Ranges already recorded are left alone.
	out = run(t, "replace", path, "--match", "foo", "--text", "qux")
	if !strings.Contains(out, "skipped 2") {
		t.Errorf("unexpected output: %q", out)
	}
	for _, r := range history.Substitutions(loadHistory(t, path).Records) {
		if r.Type != history.TypeDictionaryReplace {
			t.Errorf("record %s has type %s", r.ID, r.Type)
		}
	}
}

func TestReplaceRejectsOverlapWithoutWriting(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.txt", "abcdefgh\n")
	run(t, "session", "start", path)

	_, err := executeCommand(rootCmd, "replace", path, "--at", "0:0-0:4", "--at", "0:2-0:6", "--text", "X")
	if err == nil || !strings.Contains(err.Error(), "overlaps") {
		t.Fatalf("expected an overlap error, got %v", err)
	}
	if got := readFile(t, path); got != "abcdefgh\n" {
		t.Errorf("file changed to %q", got)
	}
	if n := len(loadHistory(t, path).Records); n != 1 {
		t.Errorf("expected only the marker, got %d records", n)
	}
}

func TestReplaceFlagErrors(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.txt", "abc\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing text", []string{"replace", path, "--at", "0:0-0:1"}, "--text is required"},
		{"missing range", []string{"replace", path, "--text", "x"}, "--at"},
		{"bad range", []string{"replace", path, "--at", "0:0", "--text", "x"}, "invalid range"},
		{"bad type", []string{"replace", path, "--at", "0:0-0:1", "--text", "x", "--type", "nope"}, "unknown record type"},
		{"both modes", []string{"replace", path, "--at", "0:0-0:1", "--match", "a", "--text", "x"}, "mutually exclusive"},
		{"missing file", []string{"replace", path + ".gone", "--at", "0:0-0:1", "--text", "x"}, "file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(rootCmd, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
	if got := readFile(t, path); got != "abc\n" {
		t.Errorf("file changed to %q", got)
	}
}

func TestHide(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.sh", "echo hi # greet\n")
	run(t, "session", "start", path)

	out := run(t, "hide", path, "--at", "0:8-0:15")
	if !strings.Contains(out, "Hid 1 span(s)") {
		t.Errorf("unexpected output: %q", out)
	}
	if got := readFile(t, path); got != "echo hi \n" {
		t.Fatalf("got %q", got)
	}

	out = run(t, "status", path)
	if !strings.Contains(out, "Substitutions: 1 (1 hidden comments)") {
		t.Errorf("unexpected status: %q", out)
	}

	run(t, "toggle", path)
	if got := readFile(t, path); got != "echo hi # greet\n" {
		t.Fatalf("toggle got %q", got)
	}
}

func TestReplaceRefusesToRebaseOverTheLie(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.go", "// a\n")
	run(t, "replace", path, "--at", "0:3-0:4", "--text", "b")

	_, err := executeCommand(rootCmd, "replace", path, "--at", "0:3-0:4", "--text", "c")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected a refusal naming --force, got %v", err)
	}
	_, err = executeCommand(rootCmd, "hide", path, "--at", "0:0-0:4")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected hide to be refused too, got %v", err)
	}
	if got := readFile(t, path); got != "// b\n" {
		t.Fatalf("file changed to %q", got)
	}
	if n := len(loadHistory(t, path).Records); n != 2 {
		t.Fatalf("expected the earlier records to survive, got %d", n)
	}

	run(t, "replace", path, "--at", "0:3-0:4", "--text", "c", "--force")
	if got := readFile(t, path); got != "// c\n" {
		t.Fatalf("got %q", got)
	}
	run(t, "toggle", path)
	if got := readFile(t, path); got != "// b\n" {
		t.Errorf("forced session should take the lie as its baseline, got %q", got)
	}
}

func TestFailedReplaceKeepsBaseline(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.go", "// a\n")
	run(t, "replace", path, "--at", "0:3-0:4", "--text", "b")
	run(t, "toggle", path)
	if got := readFile(t, path); got != "// a\n" {
		t.Fatalf("toggle got %q", got)
	}

	_, err := executeCommand(rootCmd, "replace", path, "--at", "9:0-9:1", "--text", "x")
	if err == nil || !strings.Contains(err.Error(), "out of bounds") {
		t.Fatalf("expected a bounds error, got %v", err)
	}
	_, err = executeCommand(rootCmd, "hide", path, "--at", "9:0-9:1")
	if err == nil {
		t.Fatal("expected hide to fail on the same range")
	}

	h := loadHistory(t, path)
	if len(h.Records) != 2 {
		t.Fatalf("expected marker and substitution to survive, got %d records", len(h.Records))
	}
	for _, r := range h.Records {
		if r.IsMarker() && (r.FileSnapshot == nil || *r.FileSnapshot != "// a\n") {
			t.Errorf("baseline changed: %+v", r)
		}
	}
	run(t, "toggle", path)
	if got := readFile(t, path); got != "// b\n" {
		t.Errorf("toggle back got %q", got)
	}
}
