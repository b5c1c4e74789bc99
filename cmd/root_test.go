package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/baicai99/ilovelie/internal/report"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	closeEngine()
	return buf.String(), err
}

// resetFlags restores every flag to its default so runs don't leak into
// each other.
func resetFlags(c *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupEnv points every ilovelie directory at a fresh temp dir and returns
// it.
func setupEnv(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("HOME", tmp)
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
	return tmp
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

// run executes args and fails the test on error.
func run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeCommand(rootCmd, args...)
	if err != nil {
		t.Fatalf("ilovelie %v: %v\n%s", args, err, out)
	}
	return out
}

func loadHistory(t *testing.T, path string) report.History {
	t.Helper()
	var h report.History
	out := run(t, "history", path, "--format", "json")
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	return h
}

func TestUnknownBackend(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "a.txt", "a\n")

	_, err := executeCommand(rootCmd, "status", path, "--backend", "nope")
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestProjectConfigSelectsHistoryFormat(t *testing.T) {
	dir := setupEnv(t)
	writeFile(t, dir, ".ilovelierc", `{"history_format": "yaml"}`)
	path := writeFile(t, dir, "a.txt", "a\n")

	out := run(t, "history", path)
	if !bytes.Contains([]byte(out), []byte("status:")) {
		t.Errorf("expected YAML output, got %q", out)
	}
}
