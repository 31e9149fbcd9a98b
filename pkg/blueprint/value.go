package blueprint

import (
	"fmt"
	"strconv"
	"strings"
)

/* Serialized values longer than this wrap onto multiple lines. */
const newlineThreshold = 32

/* Value is an unevaluated expression from a source file. Evaluation
produces bool, int64, string, []any of strings, or map[string]any. */
type Value interface {
	eval(s *Scope) (any, error)
	format(indent int) string
}

type boolValue bool

func (v boolValue) eval(*Scope) (any, error) { return bool(v), nil }
func (v boolValue) format(int) string        { return strconv.FormatBool(bool(v)) }

type intValue int64

func (v intValue) eval(*Scope) (any, error) { return int64(v), nil }
func (v intValue) format(int) string        { return strconv.FormatInt(int64(v), 10) }

/* stringValue holds the raw source text between the quotes; escapes resolve
at evaluation time. */
type stringValue string

func (v stringValue) eval(*Scope) (any, error) {
	return strings.ReplaceAll(string(v), `\"`, `"`), nil
}

func (v stringValue) format(int) string { return `"` + string(v) + `"` }

type listValue []stringValue

func (v listValue) eval(s *Scope) (any, error) {
	items := make([]any, len(v))
	for i, item := range v {
		var err error
		if items[i], err = item.eval(s); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (v listValue) format(indent int) string {
	parts := make([]string, len(v))
	total := 0
	for i, item := range v {
		parts[i] = item.format(indent + 1)
		total += len(parts[i]) + 2
	}
	if total <= newlineThreshold {
		return "[" + strings.Join(parts, ", ") + "]"
	}
	nl := "\n" + strings.Repeat("\t", indent)
	return "[" + nl + "\t" + strings.Join(parts, ","+nl+"\t") + nl + "]"
}

type mapEntry struct {
	key   string
	value Value
}

/* mapValue preserves source order for serialization; evaluation flattens it
to an ordinary map. */
type mapValue []mapEntry

func (v mapValue) eval(s *Scope) (any, error) {
	m := make(map[string]any, len(v))
	for _, e := range v {
		val, err := e.value.eval(s)
		if err != nil {
			return nil, err
		}
		m[e.key] = val
	}
	return m, nil
}

func (v mapValue) format(indent int) string {
	lines := make([]string, len(v))
	total := 0
	for i, e := range v {
		lines[i] = e.key + ": " + e.value.format(indent+1)
		total += len(lines[i])
	}
	if total <= newlineThreshold {
		return "{" + strings.Join(lines, ", ") + "}"
	}
	nl := "\n" + strings.Repeat("\t", indent)
	return "{" + nl + "\t" + strings.Join(lines, ","+nl+"\t") + nl + "}"
}

type refValue string

func (v refValue) eval(s *Scope) (any, error) {
	val, ok := s.Lookup(string(v))
	if !ok {
		return nil, evalErrorf("undefined variable %q", string(v))
	}
	return val.eval(s)
}

func (v refValue) format(int) string { return string(v) }

type addValue struct {
	left, right Value
}

func (v addValue) eval(s *Scope) (any, error) {
	l, err := v.left.eval(s)
	if err != nil {
		return nil, err
	}
	r, err := v.right.eval(s)
	if err != nil {
		return nil, err
	}
	switch lv := l.(type) {
	case string:
		if rv, ok := r.(string); ok {
			return lv + rv, nil
		}
	case int64:
		if rv, ok := r.(int64); ok {
			return lv + rv, nil
		}
	case []any:
		if rv, ok := r.([]any); ok {
			joined := make([]any, 0, len(lv)+len(rv))
			return append(append(joined, lv...), rv...), nil
		}
	case map[string]any:
		if rv, ok := r.(map[string]any); ok {
			merged := make(map[string]any, len(lv)+len(rv))
			for k, val := range lv {
				merged[k] = val
			}
			for k, val := range rv {
				merged[k] = val
			}
			return merged, nil
		}
	}
	return nil, evalErrorf("cannot add %T and %T, aka:\n\t%s\nand\n\t%s",
		l, r, v.left.format(1), v.right.format(1))
}

func (v addValue) format(indent int) string {
	return fmt.Sprintf("%s + %s", v.left.format(indent), v.right.format(indent))
}

/* addable reports whether v may be an operand of +. Only literal ints,
strings, string lists, and maps qualify; variables do not, even when they hold
an addable value. */
func addable(v Value) bool {
	switch v.(type) {
	case intValue, stringValue, listValue, mapValue, addValue:
		return true
	}
	return false
}
