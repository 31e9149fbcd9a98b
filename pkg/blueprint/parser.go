package blueprint

import (
	"bytes"
	"fmt"
	"strconv"
)

type parser struct {
	src []byte
	pos int
}

/* peek returns the next byte without consuming it, or 0 at end of input. */
func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

/* readWord consumes the run of letters, digits, and underscores at the
current position. */
func (p *parser) readWord() string {
	start := p.pos
	for !p.eof() && isWordByte(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return p.errorfAt(p.pos, format, args...)
}

func (p *parser) errorfAt(pos int, format string, args ...any) *ParseError {
	lineStart := bytes.LastIndexByte(p.src[:pos], '\n') + 1
	lineEnd := bytes.IndexByte(p.src[pos:], '\n')
	if lineEnd < 0 {
		lineEnd = len(p.src)
	} else {
		lineEnd += pos
	}
	return &ParseError{
		Offset:   pos,
		Line:     bytes.Count(p.src[:pos], []byte{'\n'}),
		Col:      pos - lineStart,
		LineText: string(p.src[lineStart:lineEnd]),
		Msg:      fmt.Sprintf(format, args...),
	}
}

/* parseValue parses a full expression, including chains of + operations. */
func (p *parser) parseValue() (Value, error) {
	val, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	for p.peek() == '+' {
		if !addable(val) {
			return nil, p.errorf("the left side of + must be a literal int, string, string list, or map")
		}
		p.pos++
		p.skipSpace()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !addable(right) {
			return nil, p.errorf("the right side of + must be a literal int, string, string list, or map")
		}
		val = addValue{left: val, right: right}
		p.skipSpace()
	}
	return val, nil
}

/* parseOperand parses a single value with no operators around it. */
func (p *parser) parseOperand() (Value, error) {
	switch c := p.peek(); {
	case c == '"':
		return p.parseString()
	case c == '[':
		return p.parseList()
	case c == '{':
		return p.parseMap()
	case isDigit(c):
		return p.parseInt()
	case isWordByte(c):
		word := p.readWord()
		switch word {
		case "true":
			return boolValue(true), nil
		case "false":
			return boolValue(false), nil
		}
		return refValue(word), nil
	}
	return nil, p.errorf("value expected")
}

func (p *parser) parseInt() (Value, error) {
	start := p.pos
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
	}
	n, err := strconv.ParseInt(string(p.src[start:p.pos]), 10, 64)
	if err != nil {
		return nil, p.errorfAt(start, "cannot parse int: %v", err)
	}
	return intValue(n), nil
}

func (p *parser) parseString() (Value, error) {
	if p.peek() != '"' {
		return nil, p.errorf("not a string")
	}
	p.pos++
	start := p.pos
	escaped := false
	for !p.eof() {
		c := p.src[p.pos]
		if c == '"' && !escaped {
			val := stringValue(p.src[start:p.pos])
			p.pos++
			return val, nil
		}
		escaped = c == '\\'
		p.pos++
	}
	return nil, p.errorfAt(start-1, "unterminated string")
}

func (p *parser) parseList() (Value, error) {
	if p.peek() != '[' {
		return nil, p.errorf("not a list")
	}
	p.pos++
	var items listValue
	expectingComma := false
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated list")
		}
		if p.peek() == ']' {
			p.pos++
			return items, nil
		}
		if expectingComma {
			if p.peek() != ',' {
				return nil, p.errorf("expected ',' between list entries")
			}
			p.pos++
			expectingComma = false
			continue
		}
		if p.peek() != '"' {
			return nil, p.errorf("lists may only contain strings")
		}
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		items = append(items, s.(stringValue))
		expectingComma = true
	}
}

func (p *parser) parseMap() (Value, error) {
	if p.peek() != '{' {
		return nil, p.errorf("not a map")
	}
	p.pos++
	var entries mapValue
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated map")
		}
		if p.peek() == '}' {
			p.pos++
			return entries, nil
		}
		if !isWordByte(p.peek()) {
			return nil, p.errorf("invalid map key")
		}
		key := p.readWord()
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' between map key and value")
		}
		p.pos++
		p.skipSpace()
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		entries = append(entries, mapEntry{key: key, value: val})
		p.skipSpace()
		switch p.peek() {
		case '}':
			p.pos++
			return entries, nil
		case ',':
			p.pos++
		default:
			return nil, p.errorf("expected ',' or '}' after map value")
		}
	}
}
