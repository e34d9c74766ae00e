package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	present := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !FileExists(present) {
		t.Errorf("FileExists(%s) = false, want true", present)
	}

	if FileExists(filepath.Join(dir, "missing.txt")) {
		t.Error("FileExists reported a missing file as present")
	}

	// Stat fails with ENOTDIR rather than not-exist here; the path is
	// still unusable and must not count as cached.
	if FileExists(filepath.Join(present, "child.txt")) {
		t.Error("FileExists reported a path through a regular file as present")
	}
}
