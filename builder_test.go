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

const catChain = "rule cat\n" +
	"  command = cat $in > $out\n" +
	"\n" +
	"build ab : cat a b\n" +
	"build cd : cat c d\n" +
	"build abcd : cat ab cd\n"

func testArgs() *Args {
	return &Args{File: "build.ninja", Jobs: 1, Errors: 1}
}

func chainHost(t *testing.T) *FakeHost {
	t.Helper()
	host := NewFakeHost()
	host.WriteFiles(map[string]string{
		"build.ninja": catChain,
		"a":           "hello ",
		"b":           "world\n",
		"c":           "how are ",
		"d":           "you?\n",
	})
	return host
}

func TestFindNodesToBuildMissingOutputs(t *testing.T) {
	host := chainHost(t)
	graph := mustAnalyze(t, host, "build.ninja")
	builder := NewBuilder(host, testArgs(), host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ab", "cd", "abcd"}, stale); diff != "" {
		t.Errorf("stale set mismatch (-want +got):\n%s", diff)
	}
}

func TestFindNodesToBuildUpToDate(t *testing.T) {
	host := chainHost(t)
	// Outputs written after their inputs are up to date.
	host.Write("ab", "hello world\n")
	host.Write("cd", "how are you?\n")
	host.Write("abcd", "hello world\nhow are you?\n")
	graph := mustAnalyze(t, host, "build.ninja")
	builder := NewBuilder(host, testArgs(), host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("stale = %v, want none", stale)
	}
}

func TestFindNodesToBuildNewerDep(t *testing.T) {
	host := chainHost(t)
	host.Write("ab", "hello world\n")
	host.Write("cd", "how are you?\n")
	host.Write("abcd", "hello world\nhow are you?\n")
	host.Touch("c")
	graph := mustAnalyze(t, host, "build.ninja")
	builder := NewBuilder(host, testArgs(), host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"cd"}, stale); diff != "" {
		t.Errorf("stale set mismatch (-want +got):\n%s", diff)
	}
}

// A node whose expanded command changed since the snapshot rebuilds even
// when its output looks fresh.
func TestFindNodesToBuildChangedCommand(t *testing.T) {
	host := chainHost(t)
	host.Write("ab", "hello world\n")
	host.Write("cd", "how are you?\n")
	host.Write("abcd", "hello world\nhow are you?\n")
	oldGraph := mustAnalyze(t, host, "build.ninja")

	host.Write("build.ninja", strings.Replace(catChain, "cat $in > $out", "cat $in >$out", 1))
	graph := mustAnalyze(t, host, "build.ninja")
	// Refresh the outputs' mtimes so only the command change can make them
	// stale.
	host.Touch("ab")
	host.Touch("cd")
	host.Touch("abcd")

	builder := NewBuilder(host, testArgs(), host.Time())
	stale, err := builder.FindNodesToBuild(oldGraph, graph)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ab", "cd", "abcd"}, stale); diff != "" {
		t.Errorf("stale set mismatch (-want +got):\n%s", diff)
	}
}

func TestFindNodesToBuildSkipsPhony(t *testing.T) {
	host := NewFakeHost()
	host.WriteFiles(map[string]string{
		"build.ninja": "rule touch\n" +
			"  command = echo x > $out\n" +
			"build real : touch src\n" +
			"build all : phony real\n" +
			"default all\n",
		"src": "x",
	})
	graph := mustAnalyze(t, host, "build.ninja")
	builder := NewBuilder(host, testArgs(), host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"real"}, stale); diff != "" {
		t.Errorf("stale set mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFailureBudget(t *testing.T) {
	host := NewFakeHost()
	host.WriteFiles(map[string]string{
		"build.ninja": "rule fail\n" +
			"  command = false\n" +
			"build x : fail in\n" +
			"build y : fail in\n" +
			"build z : fail in\n" +
			"default x y z\n",
		"in": "",
	})
	graph := mustAnalyze(t, host, "build.ninja")
	args := testArgs()
	args.Errors = 2
	builder := NewBuilder(host, args, host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	res, err := builder.Build(graph, stale)
	if err != nil {
		t.Fatal(err)
	}
	if res != 1 {
		t.Errorf("Build() = %d, want 1", res)
	}
	// Exactly -k failures are recorded before dispatch stops.
	if len(host.Cmds) != 2 {
		t.Errorf("ran %d commands, want 2: %v", len(host.Cmds), host.Cmds)
	}
}

// Dependencies finish before their dependents start, even with spare
// workers.
func TestBuildOrdering(t *testing.T) {
	host := chainHost(t)
	graph := mustAnalyze(t, host, "build.ninja")
	args := testArgs()
	args.Jobs = 4
	builder := NewBuilder(host, args, host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	res, err := builder.Build(graph, stale)
	if err != nil {
		t.Fatal(err)
	}
	if res != 0 {
		t.Fatalf("Build() = %d, want 0", res)
	}
	if len(host.Cmds) != 3 {
		t.Fatalf("ran %d commands, want 3: %v", len(host.Cmds), host.Cmds)
	}
	if host.Cmds[2] != "cat ab cd > abcd" {
		t.Errorf("abcd did not run last: %v", host.Cmds)
	}
	if got, _ := host.Read("abcd"); got != "hello world\nhow are you?\n" {
		t.Errorf("abcd = %q", got)
	}
}

func TestBuildMissingSourceDep(t *testing.T) {
	host := NewFakeHost()
	host.WriteFiles(map[string]string{
		"build.ninja": "rule cc\n" +
			"  command = cc -c $in -o $out\n" +
			"build foo.o : cc missing.c\n",
	})
	graph := mustAnalyze(t, host, "build.ninja")
	builder := NewBuilder(host, testArgs(), host.Time())

	stale, err := builder.FindNodesToBuild(nil, graph)
	if err != nil {
		t.Fatal(err)
	}
	_, err = builder.Build(graph, stale)
	if err == nil {
		t.Fatal("Build() with a missing source did not fail")
	}
	want := "error: 'missing.c', needed by 'foo.o', missing and no known rule to make it"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}
