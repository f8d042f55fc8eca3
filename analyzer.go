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
	"sort"
	"strconv"
	"strings"
)

// An Analyzer turns parse trees into a Graph, loading included and
// subninja'd files through the host as it encounters them.
type Analyzer struct {
	host Host
}

func NewAnalyzer(host Host) *Analyzer {
	return &Analyzer{host: host}
}

// Analyze builds the unified graph for filename's declarations plus every
// file they include or subninja. parentScope is nil for the root file.
func (a *Analyzer) Analyze(decls []Decl, filename string, parentScope *Scope) (*Graph, error) {
	graph, err := a.analyzeFile(decls, filename, parentScope)
	if err != nil {
		return nil, err
	}
	if err := a.readDepfiles(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

func (a *Analyzer) analyzeFile(decls []Decl, filename string, parentScope *Scope) (*Graph, error) {
	graph := NewGraph(filename)
	scope := NewScope(filename, parentScope)
	graph.Scopes[filename] = scope
	if err := a.addDecls(graph, scope, decls); err != nil {
		return nil, err
	}
	if err := a.addSubninjas(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

func (a *Analyzer) addDecls(graph *Graph, scope *Scope, decls []Decl) error {
	for _, decl := range decls {
		var err error
		switch d := decl.(type) {
		case VarDecl:
			err = a.declVar(scope, d)
		case RuleDecl:
			err = a.declRule(graph, scope, d)
		case PoolDecl:
			err = a.declPool(graph, scope, d)
		case BuildDecl:
			err = a.declBuild(graph, scope, d)
		case DefaultDecl:
			err = a.declDefault(graph, scope, d)
		case IncludeDecl:
			err = a.declInclude(graph, scope, d)
		case SubninjaDecl:
			err = a.declSubninja(graph, scope, d)
		default:
			err = fmt.Errorf("unknown declaration %T", decl)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) declVar(scope *Scope, d VarDecl) error {
	v, err := ExpandVars(d.Value, scope, nil)
	if err != nil {
		return err
	}
	scope.Set(d.Name, v)
	return nil
}

func (a *Analyzer) declRule(graph *Graph, scope *Scope, d RuleDecl) error {
	if _, ok := graph.Rules[d.Name]; ok {
		return fmt.Errorf("'rule %s' declared more than once", d.Name)
	}
	// Rule bindings stay unexpanded; they are evaluated against each
	// consuming build statement's scope.
	ruleScope := NewScope(d.Name, scope)
	for _, v := range d.Vars {
		ruleScope.Set(v.Name, v.Value)
	}
	graph.Rules[d.Name] = ruleScope
	return nil
}

func (a *Analyzer) declPool(graph *Graph, scope *Scope, d PoolDecl) error {
	if _, ok := graph.Pools[d.Name]; ok {
		return fmt.Errorf("pool '%s' already declared", d.Name)
	}
	if len(d.Vars) == 0 {
		return fmt.Errorf("pool '%s' has no depth variable", d.Name)
	}
	if len(d.Vars) > 1 {
		return fmt.Errorf("pool '%s' has too many variables", d.Name)
	}
	v := d.Vars[0]
	if v.Name != "depth" {
		return fmt.Errorf("pool '%s' has a variable named %s, not 'depth'", d.Name, v.Name)
	}
	val, err := ExpandVars(v.Value, scope, nil)
	if err != nil {
		return err
	}
	depth, err := strconv.Atoi(val)
	if err != nil || depth < 1 {
		return fmt.Errorf("pool '%s''s depth value, '%s', is not a positive integer", d.Name, v.Value)
	}
	graph.Pools[d.Name] = depth
	return nil
}

func (a *Analyzer) declBuild(graph *Graph, scope *Scope, d BuildDecl) error {
	expOuts, err := a.expandPaths(scope, d.Outputs)
	if err != nil {
		return err
	}
	expEdeps, err := a.expandPaths(scope, d.ExplicitDeps)
	if err != nil {
		return err
	}
	expIdeps, err := a.expandPaths(scope, d.ImplicitDeps)
	if err != nil {
		return err
	}
	expOdeps, err := a.expandPaths(scope, d.OrderOnlyDeps)
	if err != nil {
		return err
	}

	quotedOuts := quoteSpaced(expOuts)
	buildScope := NewScope(quotedOuts, scope)
	buildScope.Set("out", quotedOuts)
	buildScope.Set("in", quoteSpaced(expEdeps))
	for _, v := range d.Vars {
		val, err := ExpandVars(v.Value, buildScope, nil)
		if err != nil {
			return err
		}
		buildScope.Set(v.Name, val)
	}

	node := &Node{
		Name:          strings.Join(expOuts, " "),
		Scope:         buildScope,
		Outputs:       expOuts,
		RuleName:      d.RuleName,
		ExplicitDeps:  expEdeps,
		ImplicitDeps:  expIdeps,
		OrderOnlyDeps: expOdeps,
	}
	for _, out := range expOuts {
		if err := addNode(graph, out, node); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) declDefault(graph *Graph, scope *Scope, d DefaultDecl) error {
	paths, err := a.expandPaths(scope, d.Paths)
	if err != nil {
		return err
	}
	graph.Defaults = append(graph.Defaults, paths...)
	return nil
}

// declInclude folds the included file's declarations into the current graph
// against the current file's root scope, so assignments made in the
// included file remain visible to the including file.
func (a *Analyzer) declInclude(graph *Graph, scope *Scope, d IncludeDecl) error {
	path, err := ExpandVars(d.Path, scope, nil)
	if err != nil {
		return err
	}
	if !a.host.Exists(path) {
		return fmt.Errorf("'%s' not found.", path)
	}
	text, err := a.host.Read(path)
	if err != nil {
		return err
	}
	decls, err := Parse(text, path)
	if err != nil {
		return err
	}
	if err := a.addDecls(graph, graph.Scopes[graph.Name], decls); err != nil {
		return err
	}
	graph.Includes = append(graph.Includes, path)
	return nil
}

func (a *Analyzer) declSubninja(graph *Graph, scope *Scope, d SubninjaDecl) error {
	path, err := ExpandVars(d.Path, scope, nil)
	if err != nil {
		return err
	}
	graph.Subninjas = append(graph.Subninjas, path)
	return nil
}

// addSubninjas loads each subninja'd file as its own child graph, whose
// root scope is parented to this file's root scope, and merges it in.
// Unlike include, assignments inside a subninja do not leak back out.
func (a *Analyzer) addSubninjas(graph *Graph) error {
	for _, path := range graph.Subninjas {
		if !a.host.Exists(path) {
			return fmt.Errorf("'%s' not found.", path)
		}
		text, err := a.host.Read(path)
		if err != nil {
			return err
		}
		decls, err := Parse(text, path)
		if err != nil {
			return err
		}
		subgraph, err := a.analyzeFile(decls, path, graph.Scopes[graph.Name])
		if err != nil {
			return err
		}
		if err := mergeGraphs(graph, subgraph); err != nil {
			return err
		}
	}
	return nil
}

func mergeGraphs(graph, subgraph *Graph) error {
	for name, ruleScope := range subgraph.Rules {
		if _, ok := graph.Rules[name]; ok {
			return fmt.Errorf("rule '%s' declared in multiple files", name)
		}
		graph.Rules[name] = ruleScope
	}
	for name, scope := range subgraph.Scopes {
		if _, ok := graph.Scopes[name]; ok {
			return fmt.Errorf("scope '%s' declared in multiple files", name)
		}
		graph.Scopes[name] = scope
	}
	for name, depth := range subgraph.Pools {
		if _, ok := graph.Pools[name]; ok {
			return fmt.Errorf("pool '%s' declared in multiple files", name)
		}
		graph.Pools[name] = depth
	}
	for _, name := range sortedNodeNames(subgraph) {
		if err := addNode(graph, name, subgraph.Nodes[name]); err != nil {
			return err
		}
	}
	graph.Defaults = append(graph.Defaults, subgraph.Defaults...)
	graph.Includes = append(graph.Includes, subgraph.Includes...)
	graph.Subninjas = append(graph.Subninjas, subgraph.Subninjas...)
	return nil
}

func addNode(graph *Graph, output string, node *Node) error {
	if _, ok := graph.Nodes[output]; ok {
		return fmt.Errorf("build output '%s' declared more than once", output)
	}
	graph.Nodes[output] = node
	return nil
}

// readDepfiles picks up any depfiles left on disk from earlier runs so
// their discovered dependencies participate in staleness right away.
func (a *Analyzer) readDepfiles(graph *Graph) error {
	for _, node := range uniqueNodes(graph) {
		depfile, err := nodeVar(graph, node, "depfile")
		if err != nil {
			return err
		}
		if depfile == "" || !a.host.Exists(depfile) {
			continue
		}
		contents, err := a.host.Read(depfile)
		if err != nil {
			return err
		}
		node.DepsfileDeps = parseDepfile(contents)
	}
	return nil
}

// parseDepfile splits a gcc-style depfile on whitespace and drops the first
// two tokens (the target and the colon); the rest are dependency paths.
func parseDepfile(contents string) []string {
	fields := strings.Fields(contents)
	if len(fields) <= 2 {
		return nil
	}
	return fields[2:]
}

func (a *Analyzer) expandPaths(scope *Scope, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		v, err := ExpandVars(p, scope, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// quoteSpaced joins paths with spaces, double-quoting any that contain a
// space themselves, for the $in and $out seeds.
func quoteSpaced(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		if strings.Contains(p, " ") {
			quoted[i] = `"` + p + `"`
		} else {
			quoted[i] = p
		}
	}
	return strings.Join(quoted, " ")
}

// nodeVar resolves a binding for a node the way command expansion does:
// the build-local scope's own entries win, then the rule's unexpanded
// bindings (expanded here, at use time), then the enclosing scope chain.
func nodeVar(graph *Graph, node *Node, name string) (string, error) {
	if v, ok := node.Scope.GetLocal(name); ok {
		return v, nil
	}
	ruleScope := graph.Rules[node.RuleName]
	if ruleScope != nil {
		if raw, ok := ruleScope.GetLocal(name); ok {
			return ExpandVars(raw, node.Scope, ruleScope)
		}
	}
	if node.Scope.Parent != nil {
		return node.Scope.Parent.Get(name), nil
	}
	return "", nil
}

// uniqueNodes returns each node instance once, in sorted first-output
// order.
func uniqueNodes(graph *Graph) []*Node {
	var nodes []*Node
	seen := map[*Node]bool{}
	for _, name := range sortedNodeNames(graph) {
		n := graph.Nodes[name]
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func sortedNodeNames(graph *Graph) []string {
	names := make([]string, 0, len(graph.Nodes))
	for name := range graph.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
