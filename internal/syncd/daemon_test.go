package syncd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTouchCreatesAndUpdatesTriggerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TriggerFileName)

	if err := Touch(dir); err != nil {
		t.Fatalf("first touch failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected trigger file created: %v", err)
	}
	first := info.ModTime()

	time.Sleep(10 * time.Millisecond)
	if err := Touch(dir); err != nil {
		t.Fatalf("second touch failed: %v", err)
	}
	info, err = os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !info.ModTime().After(first) {
		t.Error("expected second touch to advance mtime")
	}
}

func TestTouchCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if err := Touch(dir); err != nil {
		t.Fatalf("touch with missing directory failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, TriggerFileName)); err != nil {
		t.Errorf("expected trigger file created: %v", err)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, t.TempDir()); err == nil {
		t.Error("expected nil service rejected")
	}
}
