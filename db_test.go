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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSaveLoadGraph(t *testing.T) {
	host := chainHost(t)
	graph := mustAnalyze(t, host, "build.ninja")
	graph.Nodes["ab"].DepsfileDeps = []string{"hdr.h"}

	if err := saveGraph(host, graph); err != nil {
		t.Fatal(err)
	}
	if !host.Exists(DBPath) {
		t.Fatal("snapshot was not written")
	}
	loaded, err := loadGraph(host)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Name != "build.ninja" {
		t.Errorf("Name = %q", loaded.Name)
	}
	if diff := cmp.Diff(sortedNodeNames(graph), sortedNodeNames(loaded)); diff != "" {
		t.Errorf("node names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"hdr.h"}, loaded.Nodes["ab"].DepsfileDeps); diff != "" {
		t.Errorf("DepsfileDeps mismatch (-want +got):\n%s", diff)
	}
	command, _ := loaded.Rules["cat"].GetLocal("command")
	if command != "cat $in > $out" {
		t.Errorf("rule command = %q", command)
	}
	// The scope chain survives: expansion against the loaded graph matches.
	got, err := nodeVar(loaded, loaded.Nodes["ab"], "command")
	if err != nil {
		t.Fatal(err)
	}
	if got != "cat a b > ab" {
		t.Errorf("expanded command = %q", got)
	}
}

// A multi-output node must come back as one instance, not one per output.
func TestSaveLoadGraphKeepsNodeIdentity(t *testing.T) {
	host := NewFakeHost()
	host.WriteFiles(map[string]string{
		"build.ninja": "rule gen\n  command = gen $out\nbuild x y : gen in\n",
	})
	graph := mustAnalyze(t, host, "build.ninja")
	if err := saveGraph(host, graph); err != nil {
		t.Fatal(err)
	}
	loaded, err := loadGraph(host)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Nodes["x"] != loaded.Nodes["y"] {
		t.Error("x and y decoded as distinct nodes")
	}
}

func TestLoadGraphsReusesFreshSnapshot(t *testing.T) {
	host := chainHost(t)
	args := testArgs()

	oldGraph, graph, err := loadGraphs(host, args)
	if err != nil {
		t.Fatal(err)
	}
	if oldGraph != nil {
		t.Error("first load returned a previous graph")
	}
	if !graph.IsDirty {
		t.Error("fresh analysis should be dirty")
	}

	if err := saveGraph(host, graph); err != nil {
		t.Fatal(err)
	}
	oldGraph, graph2, err := loadGraphs(host, args)
	if err != nil {
		t.Fatal(err)
	}
	if oldGraph != graph2 {
		t.Error("a fresh snapshot should be reused as the current graph")
	}
	if graph2.IsDirty {
		t.Error("reused snapshot should not be dirty")
	}

	// Touching a source invalidates the snapshot.
	host.Touch("build.ninja")
	oldGraph, graph3, err := loadGraphs(host, args)
	if err != nil {
		t.Fatal(err)
	}
	if oldGraph == nil {
		t.Error("previous graph should still load for command comparison")
	}
	if oldGraph == graph3 {
		t.Error("stale snapshot must not be reused")
	}
	if !graph3.IsDirty {
		t.Error("reanalyzed graph should be dirty")
	}
}

func TestLoadGraphsRescansOnNewerInclude(t *testing.T) {
	host := NewFakeHost()
	host.WriteFiles(map[string]string{
		"build.ninja": "include rules.ninja\nbuild foo.o : cc foo.c\n",
		"rules.ninja": "rule cc\n  command = cc -c $in -o $out\n",
		"foo.c":       "",
	})
	args := testArgs()
	_, graph, err := loadGraphs(host, args)
	if err != nil {
		t.Fatal(err)
	}
	if err := saveGraph(host, graph); err != nil {
		t.Fatal(err)
	}

	_, graph2, err := loadGraphs(host, args)
	if err != nil {
		t.Fatal(err)
	}
	if graph2.IsDirty {
		t.Fatal("snapshot should have been reused")
	}

	host.Touch("rules.ninja")
	_, graph3, err := loadGraphs(host, args)
	if err != nil {
		t.Fatal(err)
	}
	if !graph3.IsDirty {
		t.Error("newer include should force a rescan")
	}
}
