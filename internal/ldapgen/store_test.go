package ldapgen

import (
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "rows.json"))
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	s := tempStore(t)
	rows, err := s.Rows("default")
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
}

func TestStoreAddPreservesOrder(t *testing.T) {
	s := tempStore(t)

	added := []Row{
		{Kind: KindGroup, Value: "example.com/IT/admins"},
		{Kind: KindUser, Value: "jdoe"},
		{Kind: KindUser, Value: "asmith"},
	}
	for _, r := range added {
		if err := s.Add("default", r); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}

	rows, err := s.Rows("default")
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != len(added) {
		t.Fatalf("expected %d rows, got %d", len(added), len(rows))
	}
	for i, want := range added {
		if rows[i] != want {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want)
		}
	}
}

func TestStoreSetsAreIndependent(t *testing.T) {
	s := tempStore(t)
	if err := s.Add("a", Row{Kind: KindUser, Value: "x"}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := s.Add("b", Row{Kind: KindUser, Value: "y"}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	if err := s.Clear("a"); err != nil {
		t.Fatalf("Clear error: %v", err)
	}

	rows, err := s.Rows("a")
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("set a should be empty after Clear, got %v", rows)
	}

	rows, err = s.Rows("b")
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != "y" {
		t.Errorf("set b should be untouched, got %v", rows)
	}
}
