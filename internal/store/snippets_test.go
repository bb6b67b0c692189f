package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/snipd/internal/ir"
)

func TestSave_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sn := createTestSnippet("a", "Alpha", `func Alpha() {}`)
	sn.Description = "first"
	sn.Scope = ir.ScopeFrontend
	sn.RunOnce = true
	sn.Priority = 3
	sn.Category = "tweaks"
	sn.Tags = []string{"one", "two"}
	sn.Conditions = ir.Conditions{
		Login:       ir.LoginLoggedIn,
		Device:      ir.DeviceMobile,
		URLPatterns: []string{"/shop/*", "/cart?a=1&b=<2>"},
	}

	if err := s.Save(ctx, sn); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if got.Name != sn.Name || got.Description != sn.Description || got.Content != sn.Content {
		t.Errorf("text fields mismatch: %+v", got)
	}
	if got.Kind != ir.KindCode || got.Scope != ir.ScopeFrontend {
		t.Errorf("kind/scope = %s/%s", got.Kind, got.Scope)
	}
	if !got.Enabled || !got.RunOnce || got.Priority != 3 {
		t.Errorf("flags mismatch: enabled=%v run_once=%v priority=%d", got.Enabled, got.RunOnce, got.Priority)
	}
	if got.Conditions.Login != ir.LoginLoggedIn || got.Conditions.Device != ir.DeviceMobile {
		t.Errorf("conditions mismatch: %+v", got.Conditions)
	}
	if len(got.Conditions.URLPatterns) != 2 || got.Conditions.URLPatterns[1] != "/cart?a=1&b=<2>" {
		t.Errorf("url patterns mismatch: %v", got.Conditions.URLPatterns)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "one" {
		t.Errorf("tags mismatch: %v", got.Tags)
	}
	if !got.CreatedAt.Equal(testEpoch) || !got.ModifiedAt.Equal(testEpoch) {
		t.Errorf("timestamps mismatch: %v %v", got.CreatedAt, got.ModifiedAt)
	}
}

func TestSave_UpdateKeepsPositionAndCreatedAt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, createTestSnippet(id, id, "")); err != nil {
			t.Fatalf("Save(%s) failed: %v", id, err)
		}
	}

	updated := createTestSnippet("a", "renamed", "x")
	updated.CreatedAt = testEpoch.Add(time.Hour)
	updated.ModifiedAt = testEpoch.Add(time.Hour)
	if err := s.Save(ctx, updated); err != nil {
		t.Fatalf("Save() update failed: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	if list[0].ID != "a" || list[0].Name != "renamed" {
		t.Errorf("first = %s/%s, want a/renamed", list[0].ID, list[0].Name)
	}
	if !list[0].CreatedAt.Equal(testEpoch) {
		t.Errorf("created_at changed on update: %v", list[0].CreatedAt)
	}
	if !list[0].ModifiedAt.Equal(testEpoch.Add(time.Hour)) {
		t.Errorf("modified_at not updated: %v", list[0].ModifiedAt)
	}
}

func TestList_Empty(t *testing.T) {
	s := createTestStore(t)

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", list)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_RemovesRevisions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, createTestSnippet("a", "A", "v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendRevision(ctx, ir.Revision{SnippetID: "a", Name: "A", Content: "v1", ModifiedAt: testEpoch}, 0); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	revs, err := s.Revisions(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 0 {
		t.Errorf("revisions survived delete: %d", len(revs))
	}

	if err := s.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSetEnabled(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, createTestSnippet("a", "A", "")); err != nil {
		t.Fatal(err)
	}

	later := testEpoch.Add(time.Minute)
	if err := s.SetEnabled(ctx, "a", false, later); err != nil {
		t.Fatalf("SetEnabled() failed: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("snippet still enabled")
	}
	if !got.ModifiedAt.Equal(later) {
		t.Errorf("modified_at = %v, want %v", got.ModifiedAt, later)
	}

	if err := s.SetEnabled(ctx, "missing", false, later); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetEnabled(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDisableAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	off := createTestSnippet("b", "B", "")
	off.Enabled = false
	for _, sn := range []ir.Snippet{createTestSnippet("a", "A", ""), off, createTestSnippet("c", "C", "")} {
		if err := s.Save(ctx, sn); err != nil {
			t.Fatal(err)
		}
	}

	later := testEpoch.Add(time.Hour)
	if err := s.DisableAll(ctx, later); err != nil {
		t.Fatalf("DisableAll() failed: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, sn := range list {
		if sn.Enabled {
			t.Errorf("snippet %s still enabled", sn.ID)
		}
	}
	if !list[1].ModifiedAt.Equal(testEpoch) {
		t.Errorf("already-disabled snippet modified_at changed: %v", list[1].ModifiedAt)
	}
	if !list[0].ModifiedAt.Equal(later) {
		t.Errorf("disabled snippet modified_at = %v, want %v", list[0].ModifiedAt, later)
	}
}

func TestUnmarshalConditions_Malformed(t *testing.T) {
	c := unmarshalConditions("{not json")
	if c.Login != unreadableCondition {
		t.Errorf("Login = %q, want %q", c.Login, unreadableCondition)
	}
	if c.IsZero() {
		t.Error("malformed conditions must not match every request")
	}
}

func TestTimestamps_ZeroRoundTrip(t *testing.T) {
	if toUnix(time.Time{}) != 0 {
		t.Error("zero time should store as 0")
	}
	if !fromUnix(0).IsZero() {
		t.Error("0 should load as zero time")
	}
}
