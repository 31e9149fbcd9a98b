package blueprint

import (
	"sort"
	"strings"
)

/* Namespace records how modules are used across a source tree: for each
module, which files import it and under what patterns, plus the imports that
never resolved to a known module. */
type Namespace struct {
	UsagePatterns  map[string]map[string][]string `json:"usage_patterns"`
	UnknownImports []string                       `json:"unknown_imports"`
}

func NewNamespace() *Namespace {
	return &Namespace{UsagePatterns: make(map[string]map[string][]string)}
}

/* MergeFrom absorbs another namespace. Modules known to the other side stop
counting as unknown here, and overlapping module keys are an error. */
func (n *Namespace) MergeFrom(other *Namespace) error {
	var dups []string
	for key := range other.UsagePatterns {
		if _, ok := n.UsagePatterns[key]; ok {
			dups = append(dups, key)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return evalErrorf("duplicate namespace keys detected: %s", strings.Join(dups, ", "))
	}
	known := make(map[string]struct{}, len(other.UsagePatterns))
	for key, patterns := range other.UsagePatterns {
		n.UsagePatterns[key] = patterns
		known[key] = struct{}{}
	}
	remaining := n.UnknownImports[:0]
	for _, imp := range n.UnknownImports {
		if _, ok := known[imp]; !ok {
			remaining = append(remaining, imp)
		}
	}
	n.UnknownImports = remaining
	return nil
}
