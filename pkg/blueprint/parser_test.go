package blueprint

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func parseOne(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse([]byte(src), NewScope(nil))
	if err != nil {
		t.Fatalf(`unexpected parse error: %v`, err)
	}
	return f
}

func soleRule(t *testing.T, src string) Rule {
	t.Helper()
	f := parseOne(t, src)
	if len(f.Rules) != 1 {
		t.Fatalf(`expected 1 rule, got %d`, len(f.Rules))
	}
	return f.Rules[0]
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected any
	}{
		{`bool`, `x: true`, true},
		{`int`, `x: 42`, int64(42)},
		{`string`, `x: "hello"`, "hello"},
		{`escaped string`, `x: "say \"hi\""`, `say "hi"`},
		{`empty list`, `x: []`, []any{}},
		{`list`, `x: ["a", "b"]`, []any{"a", "b"}},
		{`list with trailing comma`, `x: ["a", "b",]`, []any{"a", "b"}},
		{`nested map`, `x: {y: 1, z: "w"}`, map[string]any{"y": int64(1), "z": "w"}},
		{`int addition`, `x: 1 + 2`, int64(3)},
		{`string addition`, `x: "a" + "b"`, "ab"},
		{`list addition`, `x: ["a"] + ["b"]`, []any{"a", "b"}},
		{`chained addition`, `x: 1 + 2 + 3`, int64(6)},
		{`map addition`, `x: {a: 1} + {b: 2}`, map[string]any{"a": int64(1), "b": int64(2)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := soleRule(t, "r {\n\t"+tc.src+",\n}\n")
			if got := rule.Props["x"]; !reflect.DeepEqual(got, tc.expected) {
				t.Errorf(`expected %#v, got %#v`, tc.expected, got)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	const src = `
// A leading comment.
foo = "a"
foo += "b"

/* Rules see every variable defined above them. */
my_rule {
	name: "thing",
	value: foo,
	count: 1 + 1,
}
`
	f := parseOne(t, src)
	if len(f.Rules) != 1 {
		t.Fatalf(`expected 1 rule, got %d`, len(f.Rules))
	}
	r := f.Rules[0]
	if r.Name != "my_rule" {
		t.Errorf(`unexpected rule name %q`, r.Name)
	}
	expected := map[string]any{"name": "thing", "value": "ab", "count": int64(2)}
	if !reflect.DeepEqual(r.Props, expected) {
		t.Errorf(`expected %v, got %v`, expected, r.Props)
	}
}

func TestVariableScoping(t *testing.T) {
	parent := NewScope(nil)
	if _, err := Parse([]byte(`shared = "v"`), parent); err != nil {
		t.Fatal(err)
	}
	child := NewScope(parent)
	rule := func(t *testing.T, src string, scope *Scope) Rule {
		f, err := Parse([]byte(src), scope)
		if err != nil {
			t.Fatalf(`unexpected parse error: %v`, err)
		}
		return f.Rules[0]
	}
	r := rule(t, `r { value: shared }`, child)
	if r.Props["value"] != "v" {
		t.Errorf(`inherited variable did not resolve: %v`, r.Props["value"])
	}
	/* Redefinition checks reach through to inherited bindings too. */
	if _, err := Parse([]byte(`shared = "w"`), child); err == nil {
		t.Error(`expected an error redefining an inherited variable`)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{`redefinition`, "x = 1\nx = 2\n", `already defined`},
		{`add to undefined`, "y += 1\n", `not defined`},
		{`add on a variable`, "v = 1\nz = v + 1\n", `left side of +`},
		{`add of a bool`, "z = 1 + true\n", `right side of +`},
		{`unterminated string`, `x = "oops`, `unterminated string`},
		{`bad list element`, `x = ["a", 1]`, `lists may only contain strings`},
		{`missing map colon`, "r {\n\tkey \"value\",\n}\n", `expected ':'`},
		{`trailing content after block comment`, "/* note */ x = 1\n", `nothing may follow a comment`},
		{`stray token`, "_bad = 1\n", `invalid syntax`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), NewScope(nil))
			if err == nil {
				t.Fatal(`expected an error`)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf(`expected message containing %q, got %v`, tc.want, err)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse([]byte("x = 1\nx = 2\n"), NewScope(nil))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf(`expected a ParseError, got %v`, err)
	}
	if parseErr.Line != 1 {
		t.Errorf(`expected the error on line 1, got %d`, parseErr.Line)
	}
	if !strings.Contains(err.Error(), "aka: 1:") {
		t.Errorf(`rendered error lacks the position suffix: %v`, err)
	}
	if !strings.Contains(err.Error(), "x = 2") {
		t.Errorf(`rendered error lacks the offending line: %v`, err)
	}
}

func TestUndefinedVariableInRule(t *testing.T) {
	_, err := Parse([]byte(`r { value: nope }`), NewScope(nil))
	if err == nil {
		t.Fatal(`expected an error for an undefined variable`)
	}
	if !strings.Contains(err.Error(), `undefined variable "nope"`) {
		t.Errorf(`unexpected error: %v`, err)
	}
}

func TestAddTypeMismatch(t *testing.T) {
	/* The operands are literals of addable types, so the mismatch only
	surfaces at evaluation time. */
	_, err := Parse([]byte("r { v: 1 + \"s\" }"), NewScope(nil))
	if err == nil {
		t.Fatal(`expected an error`)
	}
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf(`expected an EvalError, got %v`, err)
	}
}
