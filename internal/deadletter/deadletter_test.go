package deadletter

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if l.Path() != path {
		t.Errorf("expected path %s, got %s", path, l.Path())
	}

	_ = l.Append("a", "1")
	_ = l.Append("tab\tkey", "multi\nline")
	if l.Count() != 2 {
		t.Errorf("expected count 2, got %d", l.Count())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	expected := []Entry{{"a", "1"}, {"tab\tkey", "multi\nline"}}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i, e := range expected {
		if entries[i] != e {
			t.Errorf("entry %d: expected %+v, got %+v", i, e, entries[i])
		}
	}
}

func TestAppendIsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")

	for i := range 2 {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("failed to open: %v", err)
		}
		_ = l.Append(fmt.Sprintf("key-%d", i), "value")
		_ = l.Close()
	}

	entries, _ := ReadFile(path)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries across reopen, got %d", len(entries))
	}
}

func TestClosed(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	_ = l.Close()
	_ = l.Close()

	if err := l.Append("k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	l, err := Open("")
	if err != nil {
		t.Fatalf("failed to open discard log: %v", err)
	}
	defer l.Close()

	if err := l.Append("k", "v"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if l.Count() != 1 {
		t.Errorf("expected count 1, got %d", l.Count())
	}
}

func TestConcurrentAppend(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 50 {
				_ = l.Append(fmt.Sprintf("%d-%d", id, j), "v")
			}
		}(i)
	}
	wg.Wait()

	if l.Count() != 500 {
		t.Errorf("expected 500 entries, got %d", l.Count())
	}
	if lines := bytes.Count(buf.Bytes(), []byte("\n")); lines != 500 {
		t.Errorf("expected 500 lines, got %d", lines)
	}
}
