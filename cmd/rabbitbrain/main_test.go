package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/config"
	"github.com/abelbrown/rabbitbrain/internal/store"
)

func executeWithConfig(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", path))
	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvSearchToken, "")
	t.Setenv(config.EnvClassifierKey, "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeRequiresURL(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "analyze")
	if analysis.CodeOf(err) != analysis.CodeInvalidURL {
		t.Errorf("err = %v, want INVALID_URL", err)
	}
}

func TestAnalyzeRequiresToken(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "analyze", "https://x.com/a/status/1")
	if analysis.CodeOf(err) != analysis.CodeUpstream {
		t.Errorf("err = %v, want X_UPSTREAM_ERROR", err)
	}
	if !errors.Is(err, config.ErrMissingSearchToken) {
		t.Errorf("err = %v, want wrapped ErrMissingSearchToken", err)
	}
}

func TestDiscoverRequiresTopic(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "discover", "  ")
	if analysis.CodeOf(err) != analysis.CodeInvalidTopic {
		t.Errorf("err = %v, want INVALID_TOPIC", err)
	}
}

func TestHistoryJSON(t *testing.T) {
	dir := setupEnv(t)

	st, err := store.Open(filepath.Join(dir, "rabbitbrain.db"))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := st.SaveDiscovery(defaultUserID, &analysis.DiscoveryResult{
		Version:      analysis.DiscoverVersion,
		Topic:        "Rust",
		DiscoveredAt: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.SaveDiscovery("someone-else", &analysis.DiscoveryResult{Topic: "Go"}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	out, err := execute(t, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var records []store.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(records) != 1 || records[0].ID != rec.ID {
		t.Errorf("records = %+v", records)
	}

	shown, err := execute(t, "history", rec.ID)
	if err != nil {
		t.Fatalf("history %s: %v", rec.ID, err)
	}
	if !strings.Contains(shown, "Rust") {
		t.Errorf("record output = %q", shown)
	}
}

func TestHistoryEmpty(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No history yet.") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv(config.EnvSearchToken, "env-token")
	path := filepath.Join(dir, "conf", "config.yaml")

	out, err := executeWithConfig(t, path, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q, want path", out)
	}

	t.Setenv(config.EnvSearchToken, "")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SearchAPIToken != "env-token" {
		t.Errorf("SearchAPIToken = %q, want env-token", cfg.SearchAPIToken)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}

	if _, err := executeWithConfig(t, path, "config", "init"); err == nil {
		t.Error("second init succeeded, want already exists error")
	}
	if _, err := executeWithConfig(t, path, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestHistoryFooterShowsTotal(t *testing.T) {
	dir := setupEnv(t)

	st, err := store.Open(filepath.Join(dir, "rabbitbrain.db"))
	if err != nil {
		t.Fatal(err)
	}
	for _, topic := range []string{"Rust", "Go", "Zig"} {
		if _, err := st.SaveDiscovery(defaultUserID, &analysis.DiscoveryResult{Topic: topic}); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	out, err := execute(t, "history", "--limit", "2")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "showing 2 of 3 records") {
		t.Errorf("output = %q", out)
	}
}
