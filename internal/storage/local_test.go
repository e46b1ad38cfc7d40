package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func writeFile(t *testing.T, s FileStore, path, data string) {
	t.Helper()
	w, err := s.Write(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, s FileStore, path string) string {
	t.Helper()
	r, err := s.Read(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(got)
}

func TestWriteAndRead(t *testing.T) {
	s := newTestLocal(t)

	writeFile(t, s, "12/a.jpg", "hello, storage")

	if got := readFile(t, s, "12/a.jpg"); got != "hello, storage" {
		t.Fatalf("got %q, want %q", got, "hello, storage")
	}
}

func TestReadNotExist(t *testing.T) {
	s := newTestLocal(t)

	_, err := s.Read(context.Background(), "no-such-file")
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	s := newTestLocal(t)

	if _, err := s.Read(context.Background(), "../outside"); err == nil {
		t.Fatal("expected error for path outside root")
	}
	if err := s.DeleteDir(context.Background(), "."); err == nil {
		t.Fatal("expected error when deleting the root")
	}
}

func TestExistsAndDelete(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := s.Delete(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}

	writeFile(t, s, "tmp", "x")
	ok, err := s.Exists(ctx, "tmp")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true", ok, err)
	}

	if err := s.Delete(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, "tmp")
	if err != nil || ok {
		t.Fatalf("Exists() after delete = %v, %v; want false", ok, err)
	}
}

func TestDeleteDir(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	writeFile(t, s, "7/a.jpg", "a")
	writeFile(t, s, "7/b.png", "b")
	writeFile(t, s, "8/c.jpg", "c")

	if err := s.DeleteDir(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "7")); !os.IsNotExist(err) {
		t.Errorf("expected directory 7 to be gone, got %v", err)
	}
	if ok, _ := s.Exists(ctx, "8/c.jpg"); !ok {
		t.Error("other posts must not be touched")
	}
	if err := s.DeleteDir(ctx, "7"); err != nil {
		t.Errorf("deleting a missing dir should succeed, got %v", err)
	}
}

func TestNewLocalCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
}
