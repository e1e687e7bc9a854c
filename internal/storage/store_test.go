package storage

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// backendCase lets the same exercise run against every BlobStore
// implementation that does not require live cloud credentials.
type backendCase struct {
	name  string
	build func(t *testing.T) BlobStore
}

func backends() []backendCase {
	return []backendCase{
		{name: "memory", build: func(t *testing.T) BlobStore {
			return NewMemoryStore()
		}},
		{name: "filesystem", build: func(t *testing.T) BlobStore {
			fs, err := NewFilesystemStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFilesystemStore: %v", err)
			}
			return fs
		}},
	}
}

func TestBlobStorePutGetExists(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			store := bc.build(t)
			ctx := context.Background()

			ok, err := store.Exists(ctx, "charts/demo-1.0.0.tgz")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if ok {
				t.Fatalf("Exists returned true before Put")
			}

			want := []byte("chart bytes")
			if err := store.Put(ctx, "charts/demo-1.0.0.tgz", want); err != nil {
				t.Fatalf("Put: %v", err)
			}

			ok, err = store.Exists(ctx, "charts/demo-1.0.0.tgz")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if !ok {
				t.Fatalf("Exists returned false after Put")
			}

			got, err := store.Get(ctx, "charts/demo-1.0.0.tgz")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != string(want) {
				t.Fatalf("Get = %q, want %q", got, want)
			}
		})
	}
}

func TestBlobStoreGetMissing(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			store := bc.build(t)
			_, err := store.Get(context.Background(), "missing.tgz")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on missing key = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestBlobStoreMove(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			store := bc.build(t)
			ctx := context.Background()

			if err := store.Put(ctx, "staging/index.yaml", []byte("apiVersion: v1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Move(ctx, "staging/index.yaml", "index.yaml"); err != nil {
				t.Fatalf("Move: %v", err)
			}

			if ok, _ := store.Exists(ctx, "staging/index.yaml"); ok {
				t.Fatalf("source still exists after Move")
			}
			got, err := store.Get(ctx, "index.yaml")
			if err != nil {
				t.Fatalf("Get after Move: %v", err)
			}
			if string(got) != "apiVersion: v1" {
				t.Fatalf("Get after Move = %q", got)
			}
		})
	}
}

func TestBlobStoreMoveMissingSource(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			store := bc.build(t)
			err := store.Move(context.Background(), "nope.tgz", "dst.tgz")
			if err == nil {
				t.Fatalf("Move with missing source succeeded")
			}
		})
	}
}

func TestBlobStoreListAndDelete(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			store := bc.build(t)
			ctx := context.Background()

			keys := []string{"demo-1.0.0.tgz", "demo-1.1.0.tgz", "other-0.1.0.tgz"}
			for _, k := range keys {
				if err := store.Put(ctx, k, []byte(k)); err != nil {
					t.Fatalf("Put(%s): %v", k, err)
				}
			}

			got, err := store.List(ctx, "demo-")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			sort.Strings(got)
			want := []string{"demo-1.0.0.tgz", "demo-1.1.0.tgz"}
			if len(got) != len(want) {
				t.Fatalf("List = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("List = %v, want %v", got, want)
				}
			}

			if err := store.Delete(ctx, "demo-1.0.0.tgz"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if ok, _ := store.Exists(ctx, "demo-1.0.0.tgz"); ok {
				t.Fatalf("key still exists after Delete")
			}

			// Deleting an absent key must not error.
			if err := store.Delete(ctx, "demo-1.0.0.tgz"); err != nil {
				t.Fatalf("Delete on already-absent key: %v", err)
			}
		})
	}
}
