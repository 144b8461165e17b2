package state

import (
	"errors"
	"testing"
	"time"

	"go.etcd.io/bbolt"
)

func TestStoreKV(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, false, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	// No bucket yet.
	got, err := s.Get("missing")
	if err != nil || got != nil {
		t.Fatalf("have %q, %v want nil, nil", got, err)
	}

	if err := s.Set("session/movement_state", []byte(`"FAST_MOVING"`)); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get("session/movement_state")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `"FAST_MOVING"` {
		t.Errorf("have %s want %s", got, `"FAST_MOVING"`)
	}

	if err := s.Remove("session/movement_state"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("session/movement_state"); err != nil {
		t.Errorf("remove missing: %v", err)
	}
	if got, _ := s.Get("session/movement_state"); got != nil {
		t.Errorf("have %s want nil", got)
	}

	if err := s.Set("", []byte("x")); !errors.Is(err, ErrNilKey) {
		t.Errorf("have %v want %v", err, ErrNilKey)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, false, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"b", "a", "c"} {
		if err := s.Set(k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	s.Close()

	s, err = Open(dir, true, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("have %v want [a b c]", keys)
	}
	if got, _ := s.Get("b"); string(got) != "b" {
		t.Errorf("have %s want b", got)
	}
}

// TestStoreOpenLocked shows that a writable store holds a file lock,
// so a second writer times out instead of corrupting the session.
func TestStoreOpenLocked(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, false, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = Open(dir, false, 100*time.Millisecond)
	if !errors.Is(err, bbolt.ErrTimeout) {
		t.Errorf("have %v want %v", err, bbolt.ErrTimeout)
	}
}
