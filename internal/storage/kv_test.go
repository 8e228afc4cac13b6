package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// exerciseKV checks the contract shared by every backend. reopen returns a
// fresh handle on the same underlying storage, or nil for non-durable stores.
func exerciseKV(t *testing.T, kv KV, reopen func() KV) {
	t.Helper()

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing): want (false, nil), got (%v, %v)", ok, err)
	}

	if err := kv.Set("cumulativeStats", []byte(`{"totalTranslated":3}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := kv.Get("cumulativeStats")
	if err != nil || !ok {
		t.Fatalf("Get after Set: want staged value, got (%v, %v)", ok, err)
	}
	if string(v) != `{"totalTranslated":3}` {
		t.Errorf("staged value: got %s", v)
	}

	if err := kv.Set("cumulativeStats", []byte(`{"totalTranslated":5}`)); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}
	if err := kv.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := kv.Save(); err != nil {
		t.Fatalf("Save with nothing staged failed: %v", err)
	}

	if reopen != nil {
		if err := kv.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		kv = reopen()
		defer func() { _ = kv.Close() }()
	}

	v, ok, err = kv.Get("cumulativeStats")
	if err != nil || !ok {
		t.Fatalf("Get after Save: want value, got (%v, %v)", ok, err)
	}
	if string(v) != `{"totalTranslated":5}` {
		t.Errorf("saved value: want last write, got %s", v)
	}
}

func TestMemoryKV_Contract(t *testing.T) {
	exerciseKV(t, NewMemoryKV(), nil)
}

func TestMemoryKV_ClosedErrors(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Close()

	if err := kv.Set("k", []byte("1")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close: want ErrClosed, got %v", err)
	}
	if err := kv.Save(); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close: want ErrClosed, got %v", err)
	}
	if _, _, err := kv.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close: want ErrClosed, got %v", err)
	}
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	buf := []byte(`{"a":1}`)
	_ = kv.Set("k", buf)
	buf[2] = 'X'

	v, _, _ := kv.Get("k")
	if string(v) != `{"a":1}` {
		t.Errorf("stored value aliased caller buffer: %s", v)
	}
}

func TestSQLiteKV_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	kv, err := OpenSQLiteKV(path)
	if err != nil {
		t.Fatalf("OpenSQLiteKV failed: %v", err)
	}
	exerciseKV(t, kv, func() KV {
		reopened, err := OpenSQLiteKV(path)
		if err != nil {
			t.Fatalf("reopening: %v", err)
		}
		return reopened
	})
}

func TestSQLiteKV_UnsavedDiscardedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	kv, err := OpenSQLiteKV(path)
	if err != nil {
		t.Fatalf("OpenSQLiteKV failed: %v", err)
	}
	_ = kv.Set("k", []byte(`1`))
	_ = kv.Close()

	reopened, err := OpenSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if _, ok, _ := reopened.Get("k"); ok {
		t.Error("expected unsaved value to be discarded")
	}
	if err := kv.Save(); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close: want ErrClosed, got %v", err)
	}
}

func TestFileKV_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	kv, err := OpenFileKV(path)
	if err != nil {
		t.Fatalf("OpenFileKV failed: %v", err)
	}
	exerciseKV(t, kv, func() KV {
		reopened, err := OpenFileKV(path)
		if err != nil {
			t.Fatalf("reopening: %v", err)
		}
		return reopened
	})
}

func TestFileKV_KeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte(`{"theme":"dark","language":"zh-CN"}`), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	kv, err := OpenFileKV(path)
	if err != nil {
		t.Fatalf("OpenFileKV failed: %v", err)
	}
	if err := kv.Set("cumulativeStats", []byte(`{"totalTranslated":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := OpenFileKV(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	v, ok, err := reopened.Get("theme")
	if err != nil || !ok || string(v) != `"dark"` {
		t.Errorf("existing key lost: got %s (%v, %v)", v, ok, err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the store file, temp files left behind: %d entries", len(entries))
	}
}

func TestFileKV_RejectsInvalidJSON(t *testing.T) {
	kv, err := OpenFileKV(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("OpenFileKV failed: %v", err)
	}
	if err := kv.Set("k", []byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON value")
	}
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte(`{"truncated":`), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}
	if _, err := OpenFileKV(path); err == nil {
		t.Error("expected error for corrupt store file")
	}
}

func TestRedisKV_Contract(t *testing.T) {
	addr := os.Getenv("POSTATS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POSTATS_TEST_REDIS_ADDR not set")
	}
	prefix := "po-stats-test:" + t.Name() + ":"

	kv, err := OpenRedisKV(addr, prefix)
	if err != nil {
		t.Fatalf("OpenRedisKV failed: %v", err)
	}
	t.Cleanup(func() {
		if c, err := OpenRedisKV(addr, prefix); err == nil {
			conn := c.pool.Get()
			_, _ = conn.Do("DEL", prefix+"cumulativeStats")
			_ = conn.Close()
			_ = c.Close()
		}
	})

	exerciseKV(t, kv, func() KV {
		reopened, err := OpenRedisKV(addr, prefix)
		if err != nil {
			t.Fatalf("reopening: %v", err)
		}
		return reopened
	})
}
