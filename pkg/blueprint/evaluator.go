package blueprint

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

/* Module is one rule block registered from a source file. */
type Module struct {
	/* Position of the block within its file, for anonymous lookup names. */
	Index  int            `json:"index"`
	Rule   string         `json:"rule"`
	Values map[string]any `json:"values"`
	Source string         `json:"source"`
}

/* LookupName returns the registry key of the module: @defaults/<name> for
defaults rules, <rule>/<name> for named modules, and #<path>/<index> for
anonymous ones. */
func (m *Module) LookupName() (string, error) {
	name, named := m.Values["name"].(string)
	if strings.HasSuffix(m.Rule, "_defaults") {
		if !named {
			return "", evalErrorf("a defaults rule must define a name (%s)", m.Source)
		}
		return "@defaults/" + name, nil
	}
	if !named {
		return fmt.Sprintf("#%s/%d", m.Source, m.Index), nil
	}
	return m.Rule + "/" + name, nil
}

/* Rules that configure the build system itself rather than declare modules.
https://github.com/AOSP-15-Dev/android_build_soong/blob/677aa108/android/soong_config_modules.go#L40 */
var metaRules = map[string]struct{}{
	"soong_config_module_type_import": {},
	"soong_config_module_type":        {},
	"soong_config_string_variable":    {},
	"soong_config_bool_variable":      {},
	"soong_config_value_variable":     {},
}

/* Registry accumulates the modules of a source tree, keyed by lookup name. */
type Registry struct {
	Modules map[string]*Module `json:"modules"`
	/* Source path -> lookup names of the modules it declared. */
	Files map[string][]string `json:"files"`

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Modules: make(map[string]*Module),
		Files:   make(map[string][]string),
		logger:  logger,
	}
}

/* IngestFile parses and registers every module of the file at path,
evaluating against scope. */
func (r *Registry) IngestFile(path string, scope *Scope) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	f, err := Parse(src, scope)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	var names []string
	for i, rule := range f.Rules {
		if _, meta := metaRules[rule.Name]; meta {
			continue
		}
		m := &Module{Index: i, Rule: rule.Name, Values: rule.Props, Source: abs}
		name, err := m.LookupName()
		if err != nil {
			return err
		}
		if _, dup := r.Modules[name]; dup {
			return evalErrorf("duplicate module %q found in %s", name, path)
		}
		r.Modules[name] = m
		names = append(names, name)
	}
	r.Files[abs] = names
	return nil
}

/* IngestDir walks root and registers every .bp file. Each directory gets a
variable scope inheriting from its nearest ancestor, and files within a
directory parse in name order, so variable references resolve the same way on
every run. */
func (r *Registry) IngestDir(root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	scopes := map[string]*Scope{filepath.Dir(root): NewScope(nil)}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			parent := filepath.Dir(path)
			for {
				if s, ok := scopes[parent]; ok {
					scopes[path] = NewScope(s)
					break
				}
				parent = filepath.Dir(parent)
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".bp") {
			return nil
		}
		return r.IngestFile(path, scopes[filepath.Dir(path)])
	})
}

/* ComputeDefaults folds the values of every referenced defaults module into
the modules naming it. Unresolvable references log a warning and are
skipped. */
func (r *Registry) ComputeDefaults() {
	names := make([]string, 0, len(r.Modules))
	for name := range r.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := r.Modules[name]
		defaults, ok := m.Values["defaults"].([]any)
		if !ok {
			continue
		}
		for _, d := range defaults {
			defName, ok := d.(string)
			if !ok {
				continue
			}
			def, ok := r.Modules["@defaults/"+defName]
			if !ok {
				r.logger.Warn("cannot resolve default, skipping", "default", defName, "module", name)
				continue
			}
			r.mergeValues(m.Values, def.Values)
		}
	}
}

/* mergeValues copies the inheritable values of src into dst. Lists append,
maps merge recursively, scalars keep the dst value, and mismatched types log
a warning and keep dst. */
func (r *Registry) mergeValues(dst, src map[string]any) {
	for k, sv := range src {
		switch k {
		case "name", "defaults", "visibility":
			continue
		}
		dv, present := dst[k]
		if !present {
			dst[k] = sv
			continue
		}
		if reflect.TypeOf(dv) != reflect.TypeOf(sv) {
			r.logger.Warn("cannot merge values of different types",
				"key", k, "dst", dv, "src", sv)
			continue
		}
		switch dvt := dv.(type) {
		case map[string]any:
			r.mergeValues(dvt, sv.(map[string]any))
		case []any:
			dst[k] = append(dvt, sv.([]any)...)
		}
	}
}

/* MergeFrom absorbs the modules and files of another registry. Overlapping
module names are an error. */
func (r *Registry) MergeFrom(other *Registry) error {
	var dups []string
	for name := range other.Modules {
		if _, ok := r.Modules[name]; ok {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return evalErrorf("duplicate modules detected: %s", strings.Join(dups, ", "))
	}
	for name, m := range other.Modules {
		r.Modules[name] = m
	}
	for path, names := range other.Files {
		r.Files[path] = names
	}
	return nil
}

/* Save writes the registry as gzipped JSON. */
func (r *Registry) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(r); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

/* LoadRegistry reads a registry written by Save. */
func LoadRegistry(path string, logger *slog.Logger) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	r := NewRegistry(logger)
	if err := json.NewDecoder(zr).Decode(r); err != nil {
		return nil, err
	}
	return r, nil
}
