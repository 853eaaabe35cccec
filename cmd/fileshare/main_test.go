package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestPlaceFileAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()

	first := filepath.Join(dir, ".first.part")
	writeFile(t, first, "one")
	got, err := placeFile(first, dir, "report.pdf")
	if err != nil {
		t.Fatalf("placeFile: %v", err)
	}
	if got != filepath.Join(dir, "report.pdf") {
		t.Fatalf("unexpected path %q", got)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}

	second := filepath.Join(dir, ".second.part")
	writeFile(t, second, "two")
	got, err = placeFile(second, dir, "report.pdf")
	if err != nil {
		t.Fatalf("placeFile: %v", err)
	}
	if got != filepath.Join(dir, "report (1).pdf") {
		t.Fatalf("expected numbered name, got %q", got)
	}
	if readFile(t, filepath.Join(dir, "report.pdf")) != "one" || readFile(t, got) != "two" {
		t.Fatal("existing file was replaced")
	}
}

func TestPlaceFileNeverReplacesConcurrentlyCreatedFile(t *testing.T) {
	dir := t.TempDir()

	// a file created after any earlier existence check still wins its name
	writeFile(t, filepath.Join(dir, "data.bin"), "theirs")
	src := filepath.Join(dir, ".data.part")
	writeFile(t, src, "ours")

	got, err := placeFile(src, dir, "data.bin")
	if err != nil {
		t.Fatalf("placeFile: %v", err)
	}
	if got == filepath.Join(dir, "data.bin") {
		t.Fatal("claimed a taken name")
	}
	if readFile(t, filepath.Join(dir, "data.bin")) != "theirs" || readFile(t, got) != "ours" {
		t.Fatal("contents were mixed up")
	}
}
