/* Package blueprint parses and evaluates the Blueprint (Android.bp) build
description language: variable assignments, rule blocks, and the small
expression grammar connecting them. */
package blueprint

import "fmt"

/* Rule is one evaluated rule block, such as cc_library { ... }. */
type Rule struct {
	Name  string         `json:"rule"`
	Props map[string]any `json:"props"`
}

/* File is the result of parsing one source file. Variable bindings land in
the scope passed to Parse, not here. */
type File struct {
	Rules []Rule
}

/* Parse reads every statement of src. Rule bodies evaluate eagerly against
scope, so variables must be defined before the rules using them. Variables
set by src stay in scope afterwards so later files of the same directory tree
can reference them. */
func Parse(src []byte, scope *Scope) (*File, error) {
	p := &parser{src: src}
	f := &File{}
	for {
		p.skipSpace()
		if p.eof() {
			return f, nil
		}
		if p.peek() == '/' {
			if err := p.skipComment(); err != nil {
				return nil, err
			}
			continue
		}
		if !isLetter(p.peek()) {
			return nil, p.errorf("invalid syntax")
		}
		name := p.readWord()
		stmtStart := p.pos
		p.skipSpace()
		switch {
		case p.peek() == '=':
			p.pos++
			p.skipSpace()
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			if _, defined := scope.Lookup(name); defined {
				return nil, p.errorfAt(stmtStart, "cannot set variable %q as it is already defined", name)
			}
			scope.set(name, val)
		case p.startsWith("+="):
			p.pos += 2
			p.skipSpace()
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			old, defined := scope.Lookup(name)
			if !defined {
				return nil, p.errorfAt(stmtStart, "cannot add to variable %q as it is not defined", name)
			}
			scope.set(name, addValue{left: old, right: val})
		case p.peek() == '{':
			body, err := p.parseMap()
			if err != nil {
				return nil, err
			}
			props, err := body.eval(scope)
			if err != nil {
				return nil, fmt.Errorf("in rule %s: %w", name, err)
			}
			f.Rules = append(f.Rules, Rule{Name: name, Props: props.(map[string]any)})
		default:
			return nil, p.errorf("invalid syntax")
		}
	}
}

func (p *parser) startsWith(s string) bool {
	return p.pos+len(s) <= len(p.src) && string(p.src[p.pos:p.pos+len(s)]) == s
}

/* skipComment consumes a // or block comment. Nothing but whitespace may
follow a block comment on its closing line. */
func (p *parser) skipComment() error {
	switch {
	case p.startsWith("//"):
		for !p.eof() && p.src[p.pos] != '\n' {
			p.pos++
		}
		return nil
	case p.startsWith("/*"):
		p.pos += 2
		for !p.startsWith("*/") {
			if p.eof() {
				return p.errorf("unterminated comment")
			}
			p.pos++
		}
		p.pos += 2
		after := p.pos
		for !p.eof() && p.src[p.pos] != '\n' {
			if !isSpace(p.src[p.pos]) {
				return p.errorfAt(after, "nothing may follow a comment on its line")
			}
			p.pos++
		}
		return nil
	}
	return p.errorf("invalid syntax")
}
