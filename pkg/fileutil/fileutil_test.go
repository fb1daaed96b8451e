package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")

	if Exists(path) {
		t.Error("Exists should return false for non-existent file")
	}

	if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !Exists(path) {
		t.Error("Exists should return true for existing file")
	}
}

func TestIsNonEmpty(t *testing.T) {
	dir := t.TempDir()

	emptyPath := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(emptyPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if IsNonEmpty(emptyPath) {
		t.Error("IsNonEmpty should return false for empty file")
	}

	nonEmptyPath := filepath.Join(dir, "nonempty.txt")
	if err := os.WriteFile(nonEmptyPath, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !IsNonEmpty(nonEmptyPath) {
		t.Error("IsNonEmpty should return true for non-empty file")
	}

	if IsNonEmpty(filepath.Join(dir, "missing.txt")) {
		t.Error("IsNonEmpty should return false for missing file")
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "data", "processed", "vendor_sales_summary.csv")

	err := WriteTmpThenMove(outPath, func(f *os.File) error {
		_, err := f.WriteString("VendorNumber\n1\n")
		return err
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "VendorNumber\n1\n" {
		t.Errorf("content = %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(outPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file, found %d entries", len(entries))
	}
}

func TestWriteTmpThenMoveError(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(outPath, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("write failed")
	err := WriteTmpThenMove(outPath, func(f *os.File) error {
		f.WriteString("partial")
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected write error, got %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous" {
		t.Errorf("existing output was modified: %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file not cleaned up, found %d entries", len(entries))
	}
}
