package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/roach88/snipd/internal/ir"
)

func TestLogError_UpsertsPerSnippet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := ir.ErrorLogEntry{SnippetID: "a", Message: "boom", Timestamp: testEpoch, URL: "/x"}
	second := ir.ErrorLogEntry{SnippetID: "b", Message: "bang", Timestamp: testEpoch, URL: "/y"}
	again := ir.ErrorLogEntry{SnippetID: "a", Message: "boom 2", Timestamp: testEpoch.Add(time.Second), URL: "/z"}

	for _, e := range []ir.ErrorLogEntry{first, second, again} {
		if err := s.LogError(ctx, e, 20); err != nil {
			t.Fatalf("LogError() failed: %v", err)
		}
	}

	entries, err := s.ErrorLog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	top := entries[0]
	if top.SnippetID != "a" {
		t.Errorf("most recent = %q, want a", top.SnippetID)
	}
	if top.Count != 2 || top.Message != "boom 2" || top.URL != "/z" {
		t.Errorf("upserted entry = %+v", top)
	}
	if !top.Timestamp.Equal(again.Timestamp) {
		t.Errorf("timestamp = %v, want %v", top.Timestamp, again.Timestamp)
	}
	if entries[1].SnippetID != "b" || entries[1].Count != 1 {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestLogError_TrimsToLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		e := ir.ErrorLogEntry{SnippetID: fmt.Sprintf("s%02d", i), Message: "m", Timestamp: testEpoch}
		if err := s.LogError(ctx, e, 20); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ErrorLog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Fatalf("len(entries) = %d, want 20", len(entries))
	}
	if entries[0].SnippetID != "s24" || entries[19].SnippetID != "s05" {
		t.Errorf("kept range = %s..%s, want s24..s05", entries[0].SnippetID, entries[19].SnippetID)
	}
}

func TestClearErrorLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.LogError(ctx, ir.ErrorLogEntry{SnippetID: "a", Message: "m"}, 20); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearErrorLog(ctx); err != nil {
		t.Fatalf("ClearErrorLog() failed: %v", err)
	}

	entries, err := s.ErrorLog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries after clear = %d", len(entries))
	}
}
