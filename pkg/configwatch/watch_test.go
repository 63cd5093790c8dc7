package configwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(b))
	if s == "bad" {
		return "", errors.New("bad config")
	}
	return s, nil
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, readTrimmed, func(s string) { got <- s })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("bad"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("v2"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-got:
			if s == "bad" {
				t.Fatal("onChange called with a config that failed to load")
			}
			if s == "v2" {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("Watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), readTrimmed, func(string) {})
	if err == nil {
		t.Fatal("expected error watching a missing file")
	}
}

func TestWatch_AtomicRenameSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	go func() { _ = Watch(ctx, path, readTrimmed, func(s string) { got <- s }) }()
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(dir, ".config.yaml.swp")
	if err := os.WriteFile(tmp, []byte("v2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-got:
		if s != "v2" {
			t.Errorf("onChange(%q), want v2", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload after rename")
	}
}

func TestWatch_UnchangedContentIsNotReapplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	go func() { _ = Watch(ctx, path, readTrimmed, func(s string) { got <- s }) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-got:
		t.Fatalf("onChange(%q) called for identical content", s)
	case <-time.After(300 * time.Millisecond):
	}
}
