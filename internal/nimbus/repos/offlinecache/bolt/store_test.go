package bolt

import (
	"path/filepath"
	"testing"

	"github.com/haukened/nimbus/internal/nimbus/repos/offlinecache"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "offline.db")
}

func TestBoltStore_ReadWrite(t *testing.T) {
	st, err := New(tempDB(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, err := st.Read("k"); err == nil {
		t.Fatalf("expected miss on empty db")
	}
	if err := st.Write("k", []byte("one")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Write("k", []byte("two")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := st.Read("k")
	if err != nil || string(got) != "two" {
		t.Fatalf("Read = %q, %v; want two", got, err)
	}
}

func TestBoltStore_Clear(t *testing.T) {
	st, err := New(tempDB(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	_ = st.Write("a", []byte("1"))
	if err := st.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := st.Read("a"); err == nil {
		t.Fatalf("expected miss after clear")
	}
	if err := st.Write("a", []byte("again")); err != nil {
		t.Fatalf("write after clear: %v", err)
	}
}

func TestBoltStore_Reopen(t *testing.T) {
	path := tempDB(t)
	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Write("k", []byte("persisted")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	got, err := st.Read("k")
	if err != nil || string(got) != "persisted" {
		t.Fatalf("Read after reopen = %q, %v", got, err)
	}
}

func TestBoltStore_WithCache(t *testing.T) {
	st, err := New(tempDB(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c, err := offlinecache.New(offlinecache.Options{Store: st})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Put("https://example.com/", "<p>cached</p>")
	got, err := c.Get("https://example.com/")
	if err != nil || got != "<p>cached</p>" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}
