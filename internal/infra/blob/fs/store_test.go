package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursestore/internal/blob/core"
)

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "exports")
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem || s.Root() != root {
		t.Fatalf("unexpected driver/root %s %s", s.Driver(), s.Root())
	}

	info, err := s.Put(ctx, "courses/2024/a.json", strings.NewReader("payload"), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"count": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" || info.Metadata["count"] != "1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "courses", "2024", "a.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	if _, err := s.Put(ctx, "courses/2024/a.json", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "courses/2024/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "payload" || got.ContentType != "application/json" || got.ETag != info.ETag {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}

	_, _ = s.Put(ctx, "misc/b.txt", strings.NewReader("b"), core.PutOptions{})
	list, err := s.List(ctx, "courses/")
	if err != nil || len(list) != 1 || list[0].Key != "courses/2024/a.json" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}

	if ok, err := s.Delete(ctx, "courses/2024/a.json"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Delete(ctx, "courses/2024/a.json"); err != nil || ok {
		t.Fatalf("expected missing delete, ok=%v err=%v", ok, err)
	}
	if _, _, err := s.Get(ctx, "courses/2024/a.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanKeyRejectsUnsafeKeys(t *testing.T) {
	for _, key := range []string{"", "  ", "/abs", "../escape", "a/../../b", "x.meta"} {
		if _, err := cleanKey(key); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
	if k, err := cleanKey("a/./b.json"); err != nil || k != "a/b.json" {
		t.Fatalf("unexpected clean result %q %v", k, err)
	}
}

func TestListFailsOnCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if _, err := s.List(context.Background(), ""); err == nil {
		t.Fatalf("expected decode error")
	}
}
