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
	"errors"
	"fmt"
)

// errInterrupted reports that the dispatcher stopped because the host saw
// an interrupt signal. The caller maps it to exit code 130.
var errInterrupted = errors.New("interrupted")

const missingMtime = int64(-1)

// A Builder computes which targets are stale and rebuilds them with
// bounded parallelism. A single dispatcher goroutine owns all mutable
// state (counters, the mtime cache, node running flags); workers only run
// commands and report back.
type Builder struct {
	host            Host
	args            *Args
	stats           *Stats
	printer         *Printer
	shouldOverwrite bool
	mtimes          map[string]int64
	failures        int
	pool            *Pool
}

func NewBuilder(host Host, args *Args, startedTime float64) *Builder {
	shouldOverwrite := args.OverwriteStatus && args.Verbose == 0
	format := host.Getenv("NINJA_STATUS")
	if format == "" {
		format = DefaultStatusFormat
	}
	out := func(s string) {
		fmt.Fprint(host.Stdout(), s)
	}
	return &Builder{
		host:            host,
		args:            args,
		stats:           NewStats(format, host.Time, startedTime),
		printer:         NewPrinter(out, shouldOverwrite, host.TerminalWidth()),
		shouldOverwrite: shouldOverwrite,
		mtimes:          map[string]int64{},
	}
}

// FindNodesToBuild returns the stale targets in dependency order: the
// requested targets (or the defaults, or the graph roots), closed over
// deps, topologically sorted, phony edges dropped, and then filtered to
// the nodes whose output is missing, older than a dependency, or recorded
// in oldGraph with a different command.
func (b *Builder) FindNodesToBuild(oldGraph, graph *Graph) ([]string, error) {
	targets := b.args.Targets
	if len(targets) == 0 {
		targets = graph.Defaults
	}
	if len(targets) == 0 {
		targets = graph.Roots()
	}
	closure, err := graph.Closure(targets)
	if err != nil {
		return nil, err
	}
	sorted, err := graph.TSort(closure)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, name := range sorted {
		node := graph.Nodes[name]
		if node.RuleName == "phony" {
			continue
		}
		myStat := b.stat(name)
		if myStat == missingMtime || b.anyDepNewer(node, myStat) {
			stale = append(stale, name)
			continue
		}
		if oldGraph != nil {
			if _, ok := oldGraph.Nodes[name]; ok {
				oldCmd, err := b.command(oldGraph, name)
				if err != nil {
					oldCmd = ""
				}
				newCmd, err := b.command(graph, name)
				if err != nil {
					return nil, err
				}
				if oldCmd != newCmd {
					stale = append(stale, name)
				}
			}
		}
	}
	return stale, nil
}

func (b *Builder) anyDepNewer(node *Node, myStat int64) bool {
	for _, d := range node.Deps(false) {
		if b.stat(d) > myStat {
			return true
		}
	}
	return false
}

// Build runs the stale nodes. It returns 1 if any command failed, 0
// otherwise; errInterrupted or a missing-source diagnostic come back as an
// error.
func (b *Builder) Build(graph *Graph, nodesToBuild []string) (int, error) {
	b.stats.Total = len(nodesToBuild)
	b.stats.Started = 0
	b.stats.Finished = 0
	b.stats.StartedTime = b.host.Time()

	running := map[string]bool{}
	b.pool = NewPool(b.args.Jobs, b.host.Call)
	defer func() {
		b.pool.Close()
		b.pool.Join()
	}()

	var buildErr error
	for len(nodesToBuild) > 0 && b.failures < b.args.Errors && !b.host.Interrupted() {
		for b.stats.Started-b.stats.Finished < b.args.Jobs {
			name, rest, err := b.findNextAvailableNode(graph, nodesToBuild)
			if err != nil {
				buildErr = err
				break
			}
			if name == "" {
				break
			}
			nodesToBuild = rest
			if err := b.buildNode(graph, name); err != nil {
				buildErr = err
				break
			}
			running[name] = true
		}
		if buildErr != nil {
			break
		}
		didWork := b.processCompletedJobs(graph, running, false)
		if !didWork && len(running) > 0 &&
			len(nodesToBuild) > 0 && b.failures < b.args.Errors {
			b.processCompletedJobs(graph, running, true)
		}
	}

	for len(running) > 0 {
		b.processCompletedJobs(graph, running, true)
	}
	b.printer.Flush()

	if buildErr != nil {
		return 1, buildErr
	}
	if b.host.Interrupted() {
		return 1, errInterrupted
	}
	if b.failures > 0 {
		return 1, nil
	}
	return 0, nil
}

// findNextAvailableNode picks the first stale node none of whose deps
// (order-only included) is currently running, removes it from the list,
// and verifies that every source dependency actually exists.
func (b *Builder) findNextAvailableNode(graph *Graph, nodesToBuild []string) (string, []string, error) {
	for i, name := range nodesToBuild {
		node := graph.Nodes[name]
		if b.anyDepRunning(graph, node) {
			continue
		}
		for _, d := range node.Deps(false) {
			if _, ok := graph.Nodes[d]; ok {
				continue
			}
			if !b.host.Exists(d) {
				return "", nil, fmt.Errorf(
					"error: '%s', needed by '%s', missing and no known rule to make it", d, name)
			}
		}
		rest := append(append([]string(nil), nodesToBuild[:i]...), nodesToBuild[i+1:]...)
		return name, rest, nil
	}
	return "", nodesToBuild, nil
}

func (b *Builder) anyDepRunning(graph *Graph, node *Node) bool {
	for _, d := range node.Deps(true) {
		if dep, ok := graph.Nodes[d]; ok && dep.running {
			return true
		}
	}
	return false
}

func (b *Builder) buildNode(graph *Graph, name string) error {
	node := graph.Nodes[name]
	desc, err := b.description(graph, name)
	if err != nil {
		return err
	}
	command, err := b.command(graph, name)
	if err != nil {
		return err
	}

	node.running = true
	b.stats.Started++
	if b.args.Verbose > 1 {
		b.update(command, false)
	} else {
		b.update(desc, true)
	}

	dryRun := node.RuleName == "phony" || b.args.DryRun
	if !dryRun {
		for _, out := range node.Outputs {
			if dir := b.host.Dirname(out); dir != "" {
				if err := b.host.MaybeMkdir(dir); err != nil {
					return err
				}
			}
		}
	}
	b.pool.Send(jobRequest{nodeName: name, desc: desc, command: command, dryRun: dryRun})
	return nil
}

func (b *Builder) processCompletedJobs(graph *Graph, running map[string]bool, block bool) bool {
	didWork := false
	for {
		res, ok := b.pool.Get(block)
		if !ok {
			return didWork
		}
		didWork = true
		delete(running, res.nodeName)
		b.buildNodeDone(graph, res)
		if block {
			return didWork
		}
	}
}

func (b *Builder) buildNodeDone(graph *Graph, res jobResult) {
	node := graph.Nodes[res.nodeName]
	node.running = false

	b.absorbDepfile(graph, node)
	b.stats.Finished++

	if res.exit != 0 {
		b.failures++
		b.printer.Flush()
		fmt.Fprintf(b.host.Stderr(), "FAILED: %s\n", res.command)
	} else if b.args.Verbose > 1 {
		b.update(res.command, false)
	} else if b.args.Verbose == 1 {
		b.update(res.desc, false)
	} else if b.shouldOverwrite {
		b.update(res.desc, true)
	}

	if res.stdout != "" || res.stderr != "" {
		b.printer.Flush()
	}
	if res.stdout != "" {
		fmt.Fprint(b.host.Stdout(), res.stdout)
	}
	if res.stderr != "" {
		fmt.Fprint(b.host.Stderr(), res.stderr)
	}
}

// absorbDepfile reads the depfile a "deps = gcc" rule just wrote, replaces
// the node's discovered deps if they changed, marks the graph dirty so the
// snapshot is rewritten, and removes the file.
func (b *Builder) absorbDepfile(graph *Graph, node *Node) {
	depfile, err := nodeVar(graph, node, "depfile")
	if err != nil || depfile == "" {
		return
	}
	deps, err := nodeVar(graph, node, "deps")
	if err != nil || deps != "gcc" {
		return
	}
	if !b.host.Exists(depfile) {
		return
	}
	contents, err := b.host.Read(depfile)
	if err != nil {
		return
	}
	depsfileDeps := parseDepfile(contents)
	if !stringSlicesEqual(depsfileDeps, node.DepsfileDeps) {
		node.DepsfileDeps = depsfileDeps
		graph.IsDirty = true
	}
	b.host.Remove(depfile)
}

func (b *Builder) command(graph *Graph, name string) (string, error) {
	return nodeVar(graph, graph.Nodes[name], "command")
}

func (b *Builder) description(graph *Graph, name string) (string, error) {
	node := graph.Nodes[name]
	desc, err := nodeVar(graph, node, "description")
	if err != nil {
		return "", err
	}
	if desc == "" {
		return nodeVar(graph, node, "command")
	}
	return desc, nil
}

func (b *Builder) update(msg string, elide bool) {
	b.printer.Update(b.stats.Format()+msg, elide)
}

// stat returns a file's cached mtime, or missingMtime if it does not
// exist. The cache lives for the whole build; completions do not restat.
func (b *Builder) stat(name string) int64 {
	if t, ok := b.mtimes[name]; ok {
		return t
	}
	t := missingMtime
	if b.host.Exists(name) {
		if m, err := b.host.Mtime(name); err == nil {
			t = m
		}
	}
	b.mtimes[name] = t
	return t
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
