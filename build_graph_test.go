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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScopeLayering(t *testing.T) {
	parent := NewScope("parent", nil)
	parent.Set("a", "pa")
	parent.Set("b", "pb")
	child := NewScope("child", parent)
	child.Set("a", "ca")

	if got := child.Get("a"); got != "ca" {
		t.Errorf("child.Get(a) = %q, want %q", got, "ca")
	}
	if got := child.Get("b"); got != "pb" {
		t.Errorf("child.Get(b) = %q, want %q", got, "pb")
	}
	if got := child.Get("missing"); got != "" {
		t.Errorf("child.Get(missing) = %q, want %q", got, "")
	}
	if !child.Contains("b") {
		t.Error("child.Contains(b) = false")
	}

	// Deleting the child's binding re-exposes the parent's.
	child.Delete("a")
	if got := child.Get("a"); got != "pa" {
		t.Errorf("after Delete, child.Get(a) = %q, want %q", got, "pa")
	}
	// Deleting an unbound name is fine and does not touch the parent.
	child.Delete("a")
	if got := parent.Get("a"); got != "pa" {
		t.Errorf("parent.Get(a) = %q, want %q", got, "pa")
	}
}

// testGraph builds the cat-chain graph: abcd <- {ab <- {a, b}, cd <- {c, d}}.
func testGraph(t *testing.T) *Graph {
	t.Helper()
	graph := NewGraph("build.ninja")
	scope := NewScope("build.ninja", nil)
	graph.Scopes["build.ninja"] = scope
	add := func(out string, deps ...string) {
		node := &Node{
			Name:         out,
			Scope:        NewScope(out, scope),
			Outputs:      []string{out},
			RuleName:     "cat",
			ExplicitDeps: deps,
		}
		graph.Nodes[out] = node
	}
	add("ab", "a", "b")
	add("cd", "c", "d")
	add("abcd", "ab", "cd")
	return graph
}

func TestGraphRoots(t *testing.T) {
	graph := testGraph(t)
	if diff := cmp.Diff([]string{"abcd"}, graph.Roots()); diff != "" {
		t.Errorf("Roots() mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphClosure(t *testing.T) {
	graph := testGraph(t)
	closure, err := graph.Closure([]string{"abcd"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"abcd": true, "ab": true, "cd": true}
	if diff := cmp.Diff(want, closure); diff != "" {
		t.Errorf("Closure() mismatch (-want +got):\n%s", diff)
	}

	if _, err := graph.Closure([]string{"nonesuch"}); err == nil {
		t.Error("Closure() of an unknown target did not fail")
	}
}

func TestGraphTSort(t *testing.T) {
	graph := testGraph(t)
	closure, err := graph.Closure([]string{"abcd"})
	if err != nil {
		t.Fatal(err)
	}
	sorted, err := graph.TSort(closure)
	if err != nil {
		t.Fatal(err)
	}
	pos := map[string]int{}
	for i, name := range sorted {
		pos[name] = i
	}
	if len(sorted) != 3 {
		t.Fatalf("TSort() returned %d nodes, want 3", len(sorted))
	}
	for _, dep := range []string{"ab", "cd"} {
		if pos[dep] > pos["abcd"] {
			t.Errorf("TSort() put %s after abcd: %v", dep, sorted)
		}
	}
}

func TestGraphTSortCycle(t *testing.T) {
	graph := testGraph(t)
	graph.Nodes["ab"].ExplicitDeps = []string{"abcd"}
	closure := map[string]bool{"abcd": true, "ab": true, "cd": true}
	_, err := graph.TSort(closure)
	if err == nil {
		t.Fatal("TSort() of a cyclic graph did not fail")
	}
	if !strings.Contains(err.Error(), "is part of a cycle") {
		t.Errorf("cycle error = %q", err)
	}
}

func TestNodeDeps(t *testing.T) {
	node := &Node{
		ExplicitDeps:  []string{"e"},
		ImplicitDeps:  []string{"i"},
		OrderOnlyDeps: []string{"o"},
		DepsfileDeps:  []string{"d"},
	}
	if diff := cmp.Diff([]string{"e", "i", "d"}, node.Deps(false)); diff != "" {
		t.Errorf("Deps(false) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"e", "i", "d", "o"}, node.Deps(true)); diff != "" {
		t.Errorf("Deps(true) mismatch (-want +got):\n%s", diff)
	}
}
