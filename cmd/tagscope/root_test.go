package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/store"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	if cmd.Use != "tagscope" {
		t.Errorf("expected use 'tagscope', got %q", cmd.Use)
	}
	if cmd.Version == "" {
		t.Error("expected non-empty version")
	}

	for _, name := range []string{"config", "verbose"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag %q", name)
		}
	}

	want := map[string]bool{"serve": false, "scan": false, "history": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestScanCmdFlags(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()
	tests := []struct {
		name     string
		defValue string
	}{
		{"format", "json"},
		{"output", ""},
		{"timeout", "0s"},
		{"save", "true"},
		{"quiet", "false"},
	}
	for _, tt := range tests {
		f := cmd.Flags().Lookup(tt.name)
		if f == nil {
			t.Errorf("missing flag %q", tt.name)
			continue
		}
		if f.DefValue != tt.defValue {
			t.Errorf("flag %q default = %q, want %q", tt.name, f.DefValue, tt.defValue)
		}
	}
}

// isolateConfig points history at a scratch database and returns a config
// path that does not exist, so tests never read the developer's real
// config or history.
func isolateConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "scans.db")
	t.Setenv("TAGSCOPE_STORE_PATH", dbPath)
	return filepath.Join(dir, "absent.yaml"), dbPath
}

func execute(configPath string, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", configPath))
	err := cmd.Execute()
	return out.String(), err
}

func TestScanCmdRejectsBadInput(t *testing.T) {
	cfgPath, _ := isolateConfig(t)

	if _, err := execute(cfgPath, "scan"); err == nil {
		t.Error("expected error without a URL")
	}
	_, err := execute(cfgPath, "scan", "--format", "xml", "https://shop.example.com/")
	if err == nil || !strings.Contains(err.Error(), "unknown report format") {
		t.Errorf("err = %v, want unknown report format", err)
	}
}

func TestHistoryCmd(t *testing.T) {
	cfgPath, dbPath := isolateConfig(t)

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := st.Save(context.Background(), &models.ScanResult{
		URL:     "https://shop.example.com/",
		Success: true,
		Scores:  &models.Scores{Overall: 59},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.Close()

	out, err := execute(cfgPath, "history", "--format", "markdown")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "https://shop.example.com/") || !strings.Contains(out, "59") {
		t.Errorf("history output missing scan:\n%s", out)
	}

	out, err = execute(cfgPath, "history", "--id", "1", "--format", "json")
	if err != nil {
		t.Fatalf("history --id: %v", err)
	}
	if id != 1 || !strings.Contains(out, `"overall": 59`) {
		t.Errorf("report output = %s", out)
	}

	if _, err := execute(cfgPath, "history", "--id", "99"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestHistoryCmdDisabled(t *testing.T) {
	cfgPath, _ := isolateConfig(t)
	t.Setenv("TAGSCOPE_STORE_ENABLED", "false")

	if _, err := execute(cfgPath, "history"); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Errorf("err = %v, want disabled", err)
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(filepath.Join(t.TempDir(), "absent.yaml"), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "tagscope version ") {
		t.Errorf("output = %q", out)
	}
}
