package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	path, ok := outputPath(dir, "report.txt", false, false)
	if !ok || path != filepath.Join(dir, "report.txt") {
		t.Fatalf("expected %s, got %s (%v)", filepath.Join(dir, "report.txt"), path, ok)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	path, ok = outputPath(dir, "report.txt", false, false)
	if !ok || path != filepath.Join(dir, "report.1.txt") {
		t.Errorf("expected numbered name, got %s", path)
	}

	path, ok = outputPath(dir, "report.txt", true, false)
	if !ok || path != filepath.Join(dir, "report.txt") {
		t.Errorf("expected overwrite of original, got %s", path)
	}

	if _, ok = outputPath(dir, "report.txt", false, true); ok {
		t.Error("expected protected file to be skipped")
	}
}

func TestOutputPathStaysInDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"../../etc/passwd", `..\..\boot.ini`, "/abs/name.txt"} {
		path, _ := outputPath(dir, name, true, false)
		if filepath.Dir(path) != dir {
			t.Errorf("%q escaped to %s", name, path)
		}
	}
	path, _ := outputPath(dir, "..", true, false)
	if filepath.Base(path) != "unnamed" {
		t.Errorf("expected unnamed, got %s", path)
	}
}

func TestWriteFileModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	modified := time.Date(2019, 6, 2, 0, 53, 28, 0, time.UTC)
	if err := writeFile(path, []byte("hello"), modified); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(modified) {
		t.Errorf("expected mtime %v, got %v", modified, info.ModTime())
	}
}

func TestFormatBlockList(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{4}, "4"},
		{[]int{1, 3, 5, 6, 7}, "1,3,5-7"},
		{[]int{1, 2, 3, 4}, "1-4"},
		{[]int{2, 9, 10}, "2,9-10"},
	}
	for _, tt := range tests {
		if got := formatBlockList(tt.in); got != tt.want {
			t.Errorf("formatBlockList(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
