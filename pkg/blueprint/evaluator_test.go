package blueprint

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLookupName(t *testing.T) {
	tests := []struct {
		name     string
		module   *Module
		expected string
	}{
		{
			`named module`,
			&Module{Rule: "cc_library", Values: map[string]any{"name": "libfoo"}},
			"cc_library/libfoo",
		},
		{
			`defaults module`,
			&Module{Rule: "cc_defaults", Values: map[string]any{"name": "common"}},
			"@defaults/common",
		},
		{
			`anonymous module`,
			&Module{Index: 3, Rule: "bootstrap", Values: map[string]any{}, Source: "/tree/Android.bp"},
			"#/tree/Android.bp/3",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			name, err := tc.module.LookupName()
			if err != nil {
				t.Fatalf(`unexpected error: %v`, err)
			}
			if name != tc.expected {
				t.Errorf(`expected %q, got %q`, tc.expected, name)
			}
		})
	}

	t.Run(`nameless defaults module`, func(t *testing.T) {
		m := &Module{Rule: "cc_defaults", Values: map[string]any{}}
		if _, err := m.LookupName(); err == nil {
			t.Error(`expected an error for a defaults rule without a name`)
		}
	})
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestIngestDir(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Android.bp": `
base = "top"
cc_library { name: "libroot", tag: base }
soong_config_module_type { name: "meta" }
`,
		"sub/Android.bp": `
cc_library { name: "libsub", tag: base }
`,
		"sub/README.md": `not a source file`,
	})
	r := NewRegistry(quietLogger())
	if err := r.IngestDir(root); err != nil {
		t.Fatalf(`ingest failed: %v`, err)
	}
	if len(r.Modules) != 2 {
		t.Fatalf(`expected 2 modules, got %d: %v`, len(r.Modules), r.Modules)
	}
	sub, ok := r.Modules["cc_library/libsub"]
	if !ok {
		t.Fatal(`libsub not registered`)
	}
	/* The child directory sees the parent directory's variables. */
	if sub.Values["tag"] != "top" {
		t.Errorf(`inherited variable did not resolve: %v`, sub.Values["tag"])
	}
	if _, ok := r.Modules["soong_config_module_type/meta"]; ok {
		t.Error(`meta rules must not register as modules`)
	}
	names := r.Files[filepath.Join(root, "Android.bp")]
	if !reflect.DeepEqual(names, []string{"cc_library/libroot"}) {
		t.Errorf(`unexpected file entry: %v`, names)
	}
}

func TestIngestDirSiblingIsolation(t *testing.T) {
	/* Variables of one subtree must not leak into a sibling. */
	root := writeTree(t, map[string]string{
		"a/Android.bp": `v = "from-a"` + "\n",
		"b/Android.bp": `r { value: v }` + "\n",
	})
	r := NewRegistry(quietLogger())
	if err := r.IngestDir(root); err == nil {
		t.Error(`expected an undefined variable error from the sibling directory`)
	}
}

func TestIngestDirDuplicate(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/Android.bp": `cc_library { name: "dup" }` + "\n",
		"b/Android.bp": `cc_library { name: "dup" }` + "\n",
	})
	r := NewRegistry(quietLogger())
	err := r.IngestDir(root)
	if err == nil || !strings.Contains(err.Error(), "duplicate module") {
		t.Errorf(`expected a duplicate module error, got %v`, err)
	}
}

func TestComputeDefaults(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Android.bp": `
cc_defaults {
	name: "common",
	cflags: ["-Wall"],
	opts: {strip: true, keep: "default"},
	visibility: ["//visibility:public"],
	stl: "libc++",
}
cc_library {
	name: "libfoo",
	defaults: ["common", "missing"],
	cflags: ["-Werror"],
	opts: {keep: "mine"},
	stl: "none",
}
`,
	})
	r := NewRegistry(quietLogger())
	if err := r.IngestDir(root); err != nil {
		t.Fatalf(`ingest failed: %v`, err)
	}
	r.ComputeDefaults()
	m := r.Modules["cc_library/libfoo"]
	if got := m.Values["cflags"]; !reflect.DeepEqual(got, []any{"-Werror", "-Wall"}) {
		t.Errorf(`lists must append, got %v`, got)
	}
	expected := map[string]any{"strip": true, "keep": "mine"}
	if got := m.Values["opts"]; !reflect.DeepEqual(got, expected) {
		t.Errorf(`maps must merge recursively keeping own scalars, got %v`, got)
	}
	if m.Values["stl"] != "none" {
		t.Errorf(`scalars must keep the module's own value, got %v`, m.Values["stl"])
	}
	if _, ok := m.Values["visibility"]; ok {
		t.Error(`visibility must not be inherited`)
	}
	if m.Values["name"] != "libfoo" {
		t.Errorf(`name must not be inherited, got %v`, m.Values["name"])
	}
}

func TestRegistryMergeFrom(t *testing.T) {
	a := NewRegistry(quietLogger())
	a.Modules["cc_library/x"] = &Module{Rule: "cc_library"}
	b := NewRegistry(quietLogger())
	b.Modules["cc_library/y"] = &Module{Rule: "cc_library"}
	if err := a.MergeFrom(b); err != nil {
		t.Fatalf(`unexpected error: %v`, err)
	}
	if len(a.Modules) != 2 {
		t.Errorf(`expected 2 modules after the merge, got %d`, len(a.Modules))
	}

	dup := NewRegistry(quietLogger())
	dup.Modules["cc_library/x"] = &Module{Rule: "cc_library"}
	if err := a.MergeFrom(dup); err == nil {
		t.Error(`expected a duplicate key error`)
	}
}

func TestRegistrySaveLoad(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Android.bp": `cc_library { name: "libfoo", srcs: ["a.c"] }` + "\n",
	})
	r := NewRegistry(quietLogger())
	if err := r.IngestDir(root); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "registry.json.gz")
	if err := r.Save(path); err != nil {
		t.Fatalf(`save failed: %v`, err)
	}
	loaded, err := LoadRegistry(path, quietLogger())
	if err != nil {
		t.Fatalf(`load failed: %v`, err)
	}
	m, ok := loaded.Modules["cc_library/libfoo"]
	if !ok {
		t.Fatal(`module missing after the round trip`)
	}
	if !reflect.DeepEqual(m.Values["srcs"], []any{"a.c"}) {
		t.Errorf(`unexpected srcs after the round trip: %v`, m.Values["srcs"])
	}
}
