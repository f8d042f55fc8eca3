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

	"go.uber.org/multierr"
)

// A tool is one "-t name" subtool: read-only interrogations of the graph,
// plus clean and question.
type tool struct {
	name string
	desc string
	fn   func(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int
}

// tools, sorted by name. "list" is dispatched before any build file is
// loaded; its entry here exists for the name check and its own listing.
var tools []tool

func init() {
	tools = []tool{
		{"check", "check the syntax of the build files", toolCheck},
		{"clean", "clean built files", toolClean},
		{"commands", "list all commands required to rebuild given targets", toolCommands},
		{"deps", "show dependencies discovered for the given targets", toolDeps},
		{"list", "print this message", func(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
			return toolList(host)
		}},
		{"query", "show the inputs and outputs for a given target", toolQuery},
		{"question", "check to see if the build is up to date", toolQuestion},
		{"rules", "list all rules", toolRules},
		{"targets", "list targets by their rule or depth in the DAG", toolTargets},
	}
}

func toolNames() []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.name
	}
	return names
}

func runTool(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	for _, t := range tools {
		if t.name == args.Tool {
			return t.fn(host, args, oldGraph, graph, startedTime)
		}
	}
	host.PrintErr(fmt.Sprintf("unsupported tool \"%s\"", args.Tool))
	return 2
}

func toolList(host Host) int {
	host.PrintOut("pyn subtools:")
	for _, t := range tools {
		host.PrintOut(fmt.Sprintf("%10s  %s", t.name, t.desc))
	}
	return 0
}

// toolCheck is trivially a success: reaching a tool means the build files
// already parsed and analyzed cleanly.
func toolCheck(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	host.PrintOut("pyn: syntax is correct.")
	return 0
}

// toolClean removes built outputs. Outputs of generator rules (and the
// graph snapshot) survive unless -g is given.
func toolClean(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	cleanGenerated := args.CleanGen

	var filesToRemove []string
	for _, name := range sortedNodeNames(graph) {
		node := graph.Nodes[name]
		if node.RuleName == "phony" || !host.Exists(name) {
			continue
		}
		gen, err := nodeVar(graph, node, "generator")
		if err != nil {
			host.PrintErr(err.Error())
			return 1
		}
		if gen == "1" && !cleanGenerated {
			continue
		}
		filesToRemove = append(filesToRemove, name)
	}
	if cleanGenerated && host.Exists(DBPath) {
		filesToRemove = append(filesToRemove, DBPath)
	}

	if args.Verbose > 0 {
		fmt.Fprintf(host.Stderr(), "Cleaning...\n")
	} else {
		fmt.Fprintf(host.Stderr(), "Cleaning... ")
	}
	var errs error
	for _, f := range filesToRemove {
		if args.Verbose > 0 {
			fmt.Fprintf(host.Stderr(), "Remove %s\n", f)
		}
		if !args.DryRun {
			errs = multierr.Append(errs, host.Remove(f))
		}
	}
	fmt.Fprintf(host.Stderr(), "%d files.\n", len(filesToRemove))
	if errs != nil {
		host.PrintErr(errs.Error())
		return 1
	}
	return 0
}

// toolCommands prints the expanded command for every non-phony node in the
// tsorted closure of the given targets (or the defaults, or the roots).
func toolCommands(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	sorted, code := sortedClosure(host, args, graph)
	if code >= 0 {
		return code
	}
	for _, name := range sorted {
		node := graph.Nodes[name]
		if node.RuleName == "phony" {
			continue
		}
		command, err := nodeVar(graph, node, "command")
		if err != nil {
			host.PrintErr(err.Error())
			return 1
		}
		host.PrintOut(command)
	}
	return 0
}

func toolDeps(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	targets := args.Targets
	if len(targets) == 0 {
		targets = graph.Roots()
	}
	for _, target := range targets {
		node, ok := graph.Nodes[target]
		if !ok {
			host.PrintErr(fmt.Sprintf("error: unknown target '%s'", target))
			return 1
		}
		if len(node.DepsfileDeps) == 0 {
			host.PrintOut(fmt.Sprintf("%s: deps not found", target))
			continue
		}
		host.PrintOut(target + ":")
		for _, d := range node.DepsfileDeps {
			host.PrintOut("  " + d)
		}
	}
	return 0
}

// toolQuery shows a target's inputs and the outputs that consume it.
func toolQuery(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	if len(args.Targets) != 1 {
		host.PrintErr("usage: pyn -t query TARGET")
		return 2
	}
	target := args.Targets[0]

	var consumers []string
	for _, node := range uniqueNodes(graph) {
		if contains(node.Deps(true), target) {
			consumers = append(consumers, node.Outputs...)
		}
	}
	sort.Strings(consumers)

	node, known := graph.Nodes[target]
	if !known && len(consumers) == 0 {
		host.PrintErr(fmt.Sprintf("error: unknown target '%s'", target))
		return 1
	}

	host.PrintOut(target)
	if known {
		host.PrintOut("  inputs:")
		for _, d := range node.Deps(false) {
			host.PrintOut("    " + d)
		}
	}
	if len(consumers) > 0 {
		host.PrintOut("  outputs:")
		for _, c := range consumers {
			host.PrintOut("    " + c)
		}
	}
	return 0
}

func toolQuestion(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	builder := NewBuilder(host, args, startedTime)
	nodesToBuild, err := builder.FindNodesToBuild(oldGraph, graph)
	if err != nil {
		host.PrintErr(err.Error())
		return 1
	}
	if len(nodesToBuild) > 0 {
		host.PrintOut("pyn: build is not up to date.")
		return 1
	}
	host.PrintOut("pyn: no work to do.")
	return 0
}

// toolRules lists each rule with its unexpanded command.
func toolRules(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	names := make([]string, 0, len(graph.Rules))
	for name := range graph.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		command, _ := graph.Rules[name].GetLocal("command")
		host.PrintOut(name + " " + command)
	}
	return 0
}

func toolTargets(host Host, args *Args, oldGraph, graph *Graph, startedTime float64) int {
	mode := "depth"
	rest := args.Targets
	if len(rest) > 0 {
		mode, rest = rest[0], rest[1:]
	}
	switch mode {
	case "rule":
		if len(rest) == 0 {
			printSourceTargets(host, graph)
			return 0
		}
		for _, name := range sortedNodeNames(graph) {
			if graph.Nodes[name].RuleName == rest[0] {
				host.PrintOut(name)
			}
		}
		return 0
	case "all":
		for _, name := range sortedNodeNames(graph) {
			host.PrintOut(name)
		}
		return 0
	case "depth":
		depth := 1
		if len(rest) > 0 {
			var err error
			if depth, err = strconv.Atoi(rest[0]); err != nil {
				host.PrintErr(fmt.Sprintf("invalid depth '%s'", rest[0]))
				return 2
			}
		}
		if depth == 0 {
			depth = -1
		}
		for _, root := range graph.Roots() {
			printTargetTree(host, graph, root, "", depth)
		}
		return 0
	default:
		host.PrintErr(fmt.Sprintf("unknown targets mode '%s'", mode))
		return 2
	}
}

// printSourceTargets prints the dependency names that no build statement
// produces.
func printSourceTargets(host Host, graph *Graph) {
	seen := map[string]bool{}
	for _, node := range uniqueNodes(graph) {
		for _, d := range node.Deps(true) {
			if _, ok := graph.Nodes[d]; ok || seen[d] {
				continue
			}
			seen[d] = true
			host.PrintOut(d)
		}
	}
}

// printTargetTree prints name and, to the requested depth, the subtree of
// its dependencies; a negative depth means no limit.
func printTargetTree(host Host, graph *Graph, name, indent string, depth int) {
	host.PrintOut(indent + name)
	if depth == 0 {
		return
	}
	node, ok := graph.Nodes[name]
	if !ok {
		return
	}
	for _, d := range node.Deps(true) {
		printTargetTree(host, graph, d, indent+"  ", depth-1)
	}
}

// sortedClosure computes the tsorted closure of the requested targets (or
// the defaults, or the roots); the int is an exit code, or -1 to proceed.
func sortedClosure(host Host, args *Args, graph *Graph) ([]string, int) {
	targets := args.Targets
	if len(targets) == 0 {
		targets = graph.Defaults
	}
	if len(targets) == 0 {
		targets = graph.Roots()
	}
	closure, err := graph.Closure(targets)
	if err != nil {
		host.PrintErr(err.Error())
		return nil, 1
	}
	sorted, err := graph.TSort(closure)
	if err != nil {
		host.PrintErr(err.Error())
		return nil, 1
	}
	return sorted, -1
}
