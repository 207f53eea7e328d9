package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/brain"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleAnalysis(at time.Time, id string) *analysis.AnalyzeResult {
	return &analysis.AnalyzeResult{
		Version:    analysis.AnalyzeVersion,
		SourceURL:  "https://x.com/alice/status/" + id,
		AnalyzedAt: at.UnixMilli(),
		PrimaryPost: analysis.PrimaryPost{
			ID:     id,
			Handle: "alice",
			Text:   "agents planning tools",
		},
		Analysis: brain.Classification{
			Topic:      "AI Agents",
			Summary:    "Planning with tools.",
			Confidence: 0.8,
			ModelLabel: "grok-4-fast",
		},
	}
}

func TestOpen(t *testing.T) {
	st := openMemory(t)

	var name string
	err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='records'").Scan(&name)
	if err != nil {
		t.Fatalf("records table not created: %v", err)
	}
	if name != "records" {
		t.Errorf("expected table name 'records', got %q", name)
	}
}

func TestOpenFileUsesWAL(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	var mode string
	if err := st.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSaveAndGetAnalysis(t *testing.T) {
	st := openMemory(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := st.SaveAnalysis("u1", sampleAnalysis(at, "100"))
	if err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("record id not assigned")
	}

	got, err := st.GetRecord(rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Kind != KindAnalysis || got.PostID != "100" || got.AuthorHandle != "alice" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Topic != "AI Agents" || got.Confidence != 0.8 || got.Model != "grok-4-fast" {
		t.Errorf("classification not stored: %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %s, want %s", got.CreatedAt, at)
	}

	var payload analysis.AnalyzeResult
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.PrimaryPost.Text != "agents planning tools" {
		t.Errorf("payload text = %q", payload.PrimaryPost.Text)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	st := openMemory(t)
	if _, err := st.GetRecord("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRecordsNewestFirstPerUser(t *testing.T) {
	st := openMemory(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := st.SaveAnalysis("u1", sampleAnalysis(base, "1")); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SaveDiscovery("u1", &analysis.DiscoveryResult{
		Version:      analysis.DiscoverVersion,
		Topic:        "rust",
		DiscoveredAt: base.Add(time.Hour).UnixMilli(),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SaveShare("u1", &analysis.ShareResult{
		Version:     analysis.ShareVersion,
		Topic:       analysis.SharedTopic,
		SharedAt:    base.Add(2 * time.Hour).UnixMilli(),
		PrimaryPost: analysis.PrimaryPost{ID: "3", Handle: "carol"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SaveAnalysis("u2", sampleAnalysis(base.Add(3*time.Hour), "4")); err != nil {
		t.Fatal(err)
	}

	records, err := st.ListRecords("u1", 0)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	wantKinds := []string{KindShare, KindDiscovery, KindAnalysis}
	if len(records) != len(wantKinds) {
		t.Fatalf("got %d records, want %d", len(records), len(wantKinds))
	}
	for i, k := range wantKinds {
		if records[i].Kind != k {
			t.Errorf("records[%d].Kind = %q, want %q", i, records[i].Kind, k)
		}
		if records[i].Payload != nil {
			t.Errorf("records[%d] should not carry a payload", i)
		}
	}

	limited, err := st.ListRecords("u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored: got %d", len(limited))
	}

	n, err := st.CountRecords("u2")
	if err != nil || n != 1 {
		t.Errorf("CountRecords(u2) = %d, %v", n, err)
	}
}

func TestSaveRejectsNil(t *testing.T) {
	st := openMemory(t)
	if _, err := st.SaveAnalysis("u", nil); err == nil {
		t.Error("expected error for nil analysis")
	}
	if _, err := st.SaveDiscovery("u", nil); err == nil {
		t.Error("expected error for nil discovery")
	}
	if _, err := st.SaveShare("u", nil); err == nil {
		t.Error("expected error for nil share")
	}
}

func TestConcurrentSaves(t *testing.T) {
	st := openMemory(t)
	at := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.SaveAnalysis("u1", sampleAnalysis(at, "p")); err != nil {
				t.Errorf("SaveAnalysis: %v", err)
			}
		}()
	}
	wg.Wait()

	n, err := st.CountRecords("u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 20 {
		t.Errorf("CountRecords = %d, want 20", n)
	}
}
