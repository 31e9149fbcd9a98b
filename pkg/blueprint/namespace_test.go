package blueprint

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNamespaceMergeFrom(t *testing.T) {
	n := NewNamespace()
	n.UsagePatterns["cc_library/liba"] = map[string][]string{"srcs": {"a.c"}}
	n.UnknownImports = []string{"cc_library/libb", "cc_library/libc"}

	other := NewNamespace()
	other.UsagePatterns["cc_library/libb"] = map[string][]string{"srcs": {"b.c"}}

	if err := n.MergeFrom(other); err != nil {
		t.Fatalf(`unexpected error: %v`, err)
	}
	if len(n.UsagePatterns) != 2 {
		t.Errorf(`expected 2 usage pattern keys, got %d`, len(n.UsagePatterns))
	}
	/* libb became known, libc stays unknown. */
	if !reflect.DeepEqual(n.UnknownImports, []string{"cc_library/libc"}) {
		t.Errorf(`unexpected unknown imports: %v`, n.UnknownImports)
	}

	dup := NewNamespace()
	dup.UsagePatterns["cc_library/liba"] = map[string][]string{}
	if err := n.MergeFrom(dup); err == nil {
		t.Error(`expected a duplicate key error`)
	}
}

func TestNamespaceJSON(t *testing.T) {
	n := NewNamespace()
	n.UsagePatterns["rule/x"] = map[string][]string{"deps": {"y"}}
	n.UnknownImports = []string{"rule/z"}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Namespace
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&decoded, n) {
		t.Errorf(`round trip changed the namespace: %v != %v`, &decoded, n)
	}
}
