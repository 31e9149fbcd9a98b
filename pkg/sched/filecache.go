package sched

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

/* fileCached composes an inner task with a persistent JSON record: a normal
run writes its result to path, and on later runs the existence of path is the
fast-path probe and its content the result. The wrapper shares the inner
task's identity, since it is the same unit of work. */
type fileCached struct {
	Task
	path     string
	compress bool
}

/*
FileCached wraps task with an on-disk result record at path, optionally
gzip-compressed. This is how repeated invocations of a pipeline skip stages
that already ran. The parent directory must already exist.

Results round-trip through JSON, so a cache hit yields JSON-shaped values
(maps, slices, strings, float64s) regardless of what the run body returned;
cached tasks should resolve to values that survive that round trip.
*/
func FileCached(path string, compress bool, task Task) (Task, error) {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("sched.FileCached: cache directory %s does not exist", dir)
	}
	return &fileCached{Task: task, path: path, compress: compress}, nil
}

func (f *fileCached) CanFulfill() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *fileCached) Fulfill(Handler) (any, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, &ErrCacheRead{Path: f.path, Err: err}
	}
	defer file.Close()
	var r io.Reader = file
	if f.compress {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, &ErrCacheRead{Path: f.path, Err: err}
		}
		defer gz.Close()
		r = gz
	}
	var result any
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, &ErrCacheRead{Path: f.path, Err: err}
	}
	return result, nil
}

func (f *fileCached) Run(h Handler, args []any) (any, error) {
	result, err := f.Task.Run(h, args)
	if err != nil {
		return nil, err
	}
	if err := f.write(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fileCached) write(result any) error {
	file, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("sched: writing cache record %s: %w", f.path, err)
	}
	defer file.Close()
	var w io.Writer = file
	var gz *gzip.Writer
	if f.compress {
		gz = gzip.NewWriter(file)
		w = gz
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		return fmt.Errorf("sched: encoding cache record %s: %w", f.path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("sched: flushing cache record %s: %w", f.path, err)
		}
	}
	return nil
}
