package sched

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func runCached(t *testing.T, path string, compress bool, inner Task) (*Coordinator, Task) {
	t.Helper()
	cached, err := FileCached(path, compress, inner)
	if err != nil {
		t.Fatalf(`failed to construct cached task: %v`, err)
	}
	c := New(2)
	t.Cleanup(c.Close)
	c.Submit(cached)
	if errs := c.Drain(); len(errs) != 0 {
		t.Fatalf(`unexpected errors: %v`, errs)
	}
	return c, cached
}

func TestFileCached(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := `plain`
		if compress {
			name = `gzip`
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "result.json")
			first := newFnTask(func(Handler, []any) (any, error) {
				return map[string]any{"answer": float64(42)}, nil
			})
			c, cached := runCached(t, path, compress, first)
			if first.runs.Load() != 1 {
				t.Fatalf(`expected 1 run on a cold cache, got %d`, first.runs.Load())
			}
			want := mustResult[map[string]any](t, c, cached)

			/* A fresh wrapper over a fresh inner task must hit the file and
			never invoke the run body. */
			second := newFnTask(func(Handler, []any) (any, error) {
				return nil, errors.New("must not run")
			})
			c2, cached2 := runCached(t, path, compress, second)
			if second.runs.Load() != 0 {
				t.Errorf(`run body invoked despite a warm cache`)
			}
			got := mustResult[map[string]any](t, c2, cached2)
			if got["answer"] != want["answer"] {
				t.Errorf(`cache round trip altered the result: %v != %v`, got, want)
			}
		})
	}
}

func TestFileCachedCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cached, err := FileCached(path, false, newFnTask(nil))
	if err != nil {
		t.Fatalf(`failed to construct cached task: %v`, err)
	}
	c := New(2)
	defer c.Close()
	c.Submit(cached)
	errs := c.Drain()
	if len(errs) != 1 {
		t.Fatalf(`expected 1 error, got %v`, errs)
	}
	var readErr *ErrCacheRead
	if !errors.As(errs[0], &readErr) {
		t.Errorf(`expected ErrCacheRead, got %v`, errs[0])
	}
}

func TestFileCachedMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "result.json")
	if _, err := FileCached(path, false, newFnTask(nil)); err == nil {
		t.Error(`expected an error for a cache path in a missing directory`)
	}
}
