package store

import (
	"context"
	"testing"
)

func TestStateTable_GetSet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	st := s.State()

	_, ok, err := st.Get(ctx, "safe_mode")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unset key reported as present")
	}

	if err := st.Set(ctx, "safe_mode", "1"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := st.Set(ctx, "safe_mode", "0"); err != nil {
		t.Fatalf("Set() overwrite failed: %v", err)
	}

	v, ok, err := st.Get(ctx, "safe_mode")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "0" {
		t.Errorf("Get() = %q, %v, want \"0\", true", v, ok)
	}
}

func TestStateTable_SurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/state.db"
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.State().Set(ctx, "executing_snippet", "abc"); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	v, ok, err := s2.State().Get(ctx, "executing_snippet")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "abc" {
		t.Errorf("Get() = %q, %v after reopen", v, ok)
	}
}
