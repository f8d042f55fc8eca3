// Copyright 2014 Dirk Pranke. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pyn

import (
	"fmt"
	"strings"
)

// A Decl is one parsed declaration from a build file. The concrete types
// are VarDecl, RuleDecl, BuildDecl, PoolDecl, DefaultDecl, IncludeDecl and
// SubninjaDecl; the analyzer dispatches on the type.
type Decl interface {
	decl()
}

// VarDecl is a "name = value" assignment. Value is unexpanded except that
// "$ " has already collapsed to a space and "$\n"-continuations are gone.
type VarDecl struct {
	Name  string
	Value string
}

// RuleDecl is a "rule name" statement plus its indented body vars.
type RuleDecl struct {
	Name string
	Vars []VarDecl
}

// BuildDecl is a "build outs: rule ins | implicit || order-only" statement
// plus its indented body vars. All paths are unexpanded.
type BuildDecl struct {
	Outputs       []string
	RuleName      string
	ExplicitDeps  []string
	ImplicitDeps  []string
	OrderOnlyDeps []string
	Vars          []VarDecl
}

// PoolDecl is a "pool name" statement plus its indented body vars. The
// analyzer checks that the body is exactly one positive-integer "depth".
type PoolDecl struct {
	Name string
	Vars []VarDecl
}

// DefaultDecl is a "default path..." statement.
type DefaultDecl struct {
	Paths []string
}

// IncludeDecl is an "include path" statement.
type IncludeDecl struct {
	Path string
}

// SubninjaDecl is a "subninja path" statement.
type SubninjaDecl struct {
	Path string
}

func (VarDecl) decl()      {}
func (RuleDecl) decl()     {}
func (BuildDecl) decl()    {}
func (PoolDecl) decl()     {}
func (DefaultDecl) decl()  {}
func (IncludeDecl) decl()  {}
func (SubninjaDecl) decl() {}

// parseError carries a byte offset into the input; Parse converts it to a
// file:line:col diagnostic.
type parseError struct {
	offset int
	msg    string
}

func (e *parseError) Error() string {
	return e.msg
}

// Parse parses the contents of one build file and returns its declarations
// in order. filename is used only for diagnostics.
func Parse(input, filename string) ([]Decl, error) {
	p := &parser{input: input}
	decls, err := p.parseDecls()
	if err != nil {
		pe := err.(*parseError)
		line, col := offsetToLineCol(input, pe.offset)
		return nil, fmt.Errorf("%s:%d:%d: %s", filename, line, col, pe.msg)
	}
	return decls, nil
}

func offsetToLineCol(input string, offset int) (int, int) {
	if offset > len(input) {
		offset = len(input)
	}
	line := 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if input[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, offset - lineStart + 1
}

type parser struct {
	input string
	pos   int
}

func (p *parser) errorAt(offset int, format string, args ...interface{}) error {
	return &parseError{offset: offset, msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) peekAt(n int) byte {
	if p.pos+n >= len(p.input) {
		return 0
	}
	return p.input[p.pos+n]
}

// skipWhitespace consumes a run of token-level whitespace: spaces, plus
// "$\n" line continuations whose following indent is swallowed. It reports
// whether anything was consumed.
func (p *parser) skipWhitespace() bool {
	consumed := false
	for {
		switch {
		case p.peek() == ' ':
			p.pos++
		case p.peek() == '$' && p.peekAt(1) == '\n':
			p.pos += 2
			for p.peek() == ' ' {
				p.pos++
			}
		default:
			return consumed
		}
		consumed = true
	}
}

// skipEmptyLines consumes blank lines and comment lines.
func (p *parser) skipEmptyLines() {
	for {
		save := p.pos
		p.skipWhitespace()
		switch {
		case p.peek() == '#':
			for !p.eof() && p.peek() != '\n' {
				p.pos++
			}
			if !p.eof() {
				p.pos++
			}
		case !p.eof() && p.peek() == '\n':
			p.pos++
		default:
			p.pos = save
			return
		}
	}
}

func (p *parser) parseDecls() ([]Decl, error) {
	var decls []Decl
	for {
		p.skipEmptyLines()
		if p.eof() {
			return decls, nil
		}
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// readName reads a name: (letter | '_') (letter | digit | '_')*. It returns
// "" without consuming anything if the next character cannot start a name.
func (p *parser) readName() string {
	if !isNameStart(p.peek()) {
		return ""
	}
	start := p.pos
	p.pos++
	for isNameChar(p.peek()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) parseDecl() (Decl, error) {
	name := p.readName()
	if name == "" {
		return nil, p.errorAt(p.pos, "expected declaration")
	}
	switch name {
	case "build", "rule", "pool", "default", "include", "subninja":
		// "build = x" and friends are still variable assignments; only a
		// keyword followed by something other than '=' starts a statement.
		save := p.pos
		p.skipWhitespace()
		assign := p.peek() == '='
		p.pos = save
		if assign {
			break
		}
		switch name {
		case "build":
			return p.parseBuild()
		case "rule":
			return p.parseRule()
		case "pool":
			return p.parsePool()
		case "default":
			return p.parseDefault()
		case "include":
			path, err := p.parseFileRef()
			if err != nil {
				return nil, err
			}
			return IncludeDecl{Path: path}, nil
		case "subninja":
			path, err := p.parseFileRef()
			if err != nil {
				return nil, err
			}
			return SubninjaDecl{Path: path}, nil
		}
	}
	v, err := p.parseVarRest(name)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// parseVarRest parses the "= value" tail of an assignment whose name has
// already been read.
func (p *parser) parseVarRest(name string) (VarDecl, error) {
	p.skipWhitespace()
	if p.peek() != '=' {
		return VarDecl{}, p.errorAt(p.pos, "expected '='")
	}
	p.pos++
	p.skipWhitespace()
	value := p.readValue()
	if err := p.expectEOL(); err != nil {
		return VarDecl{}, err
	}
	return VarDecl{Name: name, Value: value}, nil
}

// readValue reads a variable value greedily through end of line, collapsing
// "$ " to a space and consuming "$\n"-continuations (plus the continued
// line's indent) with no output. All other text, '$'-escapes included, is
// kept verbatim for expansion at use time.
func (p *parser) readValue() string {
	var out strings.Builder
	for !p.eof() && p.peek() != '\n' {
		if p.peek() == '$' {
			switch p.peekAt(1) {
			case '\n':
				p.pos += 2
				for p.peek() == ' ' {
					p.pos++
				}
				continue
			case ' ':
				out.WriteByte(' ')
				p.pos += 2
				continue
			}
		}
		out.WriteByte(p.peek())
		p.pos++
	}
	return out.String()
}

func isPathChar(c byte) bool {
	switch c {
	case ' ', ':', '=', '|', '\n', 0:
		return false
	}
	return true
}

// readPath reads a path: one or more of "$ " (a literal space) or any
// character other than space, ':', '=', '|' and newline. Returns "" without
// consuming anything if no path is present.
func (p *parser) readPath() string {
	var out strings.Builder
	for !p.eof() {
		if p.peek() == '$' && p.peekAt(1) == ' ' {
			out.WriteByte(' ')
			p.pos += 2
			continue
		}
		if !isPathChar(p.peek()) {
			break
		}
		out.WriteByte(p.peek())
		p.pos++
	}
	return out.String()
}

// parsePaths reads one or more whitespace-separated paths.
func (p *parser) parsePaths() ([]string, error) {
	first := p.readPath()
	if first == "" {
		return nil, p.errorAt(p.pos, "expected path")
	}
	paths := []string{first}
	for {
		save := p.pos
		if !p.skipWhitespace() {
			return paths, nil
		}
		next := p.readPath()
		if next == "" {
			p.pos = save
			return paths, nil
		}
		paths = append(paths, next)
	}
}

func (p *parser) requireWhitespace() error {
	if !p.skipWhitespace() {
		return p.errorAt(p.pos, "expected ' '")
	}
	return nil
}

// expectEOL consumes optional trailing whitespace followed by a newline or
// end of input.
func (p *parser) expectEOL() error {
	p.skipWhitespace()
	if p.eof() {
		return nil
	}
	if p.peek() == '\n' {
		p.pos++
		return nil
	}
	return p.errorAt(p.pos, "expected newline")
}

// parseIndentedVars parses the zero or more indented "name = value" lines
// that form a rule, pool or build body.
func (p *parser) parseIndentedVars() ([]VarDecl, error) {
	var vars []VarDecl
	for {
		save := p.pos
		if !p.skipWhitespace() {
			return vars, nil
		}
		name := p.readName()
		if name == "" {
			p.pos = save
			return vars, nil
		}
		eqSave := p.pos
		p.skipWhitespace()
		if p.peek() != '=' {
			// Not a body var; whatever owns this line parses it next.
			p.pos = save
			return vars, nil
		}
		p.pos = eqSave
		v, err := p.parseVarRest(name)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
}

func (p *parser) parseBuild() (Decl, error) {
	if err := p.requireWhitespace(); err != nil {
		return nil, err
	}
	outputs, err := p.parsePaths()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peek() != ':' {
		return nil, p.errorAt(p.pos, "expected ':'")
	}
	p.pos++
	if err := p.requireWhitespace(); err != nil {
		return nil, err
	}
	ruleName := p.readName()
	if ruleName == "" {
		return nil, p.errorAt(p.pos, "expected rule name")
	}

	d := BuildDecl{Outputs: outputs, RuleName: ruleName}

	save := p.pos
	p.skipWhitespace()
	if isPathChar(p.peek()) && !p.eof() {
		if d.ExplicitDeps, err = p.parsePaths(); err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}

	save = p.pos
	p.skipWhitespace()
	if p.peek() == '|' && p.peekAt(1) != '|' {
		p.pos++
		p.skipWhitespace()
		if d.ImplicitDeps, err = p.parsePaths(); err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}

	save = p.pos
	p.skipWhitespace()
	if p.peek() == '|' && p.peekAt(1) == '|' {
		p.pos += 2
		p.skipWhitespace()
		if d.OrderOnlyDeps, err = p.parsePaths(); err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}

	if err := p.expectEOL(); err != nil {
		return nil, err
	}
	if d.Vars, err = p.parseIndentedVars(); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseRule() (Decl, error) {
	if err := p.requireWhitespace(); err != nil {
		return nil, err
	}
	name := p.readName()
	if name == "" {
		return nil, p.errorAt(p.pos, "expected rule name")
	}
	if err := p.expectEOL(); err != nil {
		return nil, err
	}
	vars, err := p.parseIndentedVars()
	if err != nil {
		return nil, err
	}
	return RuleDecl{Name: name, Vars: vars}, nil
}

func (p *parser) parsePool() (Decl, error) {
	if err := p.requireWhitespace(); err != nil {
		return nil, err
	}
	name := p.readName()
	if name == "" {
		return nil, p.errorAt(p.pos, "expected pool name")
	}
	if err := p.expectEOL(); err != nil {
		return nil, err
	}
	vars, err := p.parseIndentedVars()
	if err != nil {
		return nil, err
	}
	return PoolDecl{Name: name, Vars: vars}, nil
}

func (p *parser) parseDefault() (Decl, error) {
	if err := p.requireWhitespace(); err != nil {
		return nil, err
	}
	paths, err := p.parsePaths()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOL(); err != nil {
		return nil, err
	}
	return DefaultDecl{Paths: paths}, nil
}

// parseFileRef parses the single-path tail shared by include and subninja.
func (p *parser) parseFileRef() (string, error) {
	if err := p.requireWhitespace(); err != nil {
		return "", err
	}
	path := p.readPath()
	if path == "" {
		return "", p.errorAt(p.pos, "expected path")
	}
	if err := p.expectEOL(); err != nil {
		return "", err
	}
	return path, nil
}
