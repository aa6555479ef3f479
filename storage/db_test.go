package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound for a missing key, got %v", err)
	}

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || !bytes.Equal(value, []byte("v")) {
		t.Fatalf("get returned %q, %v", value, err)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open leveldb: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || !bytes.Equal(value, []byte("v")) {
		t.Fatalf("get returned %q, %v", value, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}
