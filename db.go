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
	"bytes"
	"encoding/gob"
	"strings"
)

// DBPath is where the analyzed graph is persisted, in the build's working
// directory. The format is private to pyn.
const DBPath = ".pyn.db"

// graphSnapshot is the serialized form of a Graph. Nodes are stored once
// per instance so multi-output nodes keep their identity on reload.
type graphSnapshot struct {
	Name      string
	Defaults  []string
	Nodes     []*Node
	Rules     map[string]*Scope
	Pools     map[string]int
	Scopes    map[string]*Scope
	Subninjas []string
	Includes  []string
}

func saveGraph(host Host, graph *Graph) error {
	snap := graphSnapshot{
		Name:      graph.Name,
		Defaults:  graph.Defaults,
		Nodes:     uniqueNodes(graph),
		Rules:     graph.Rules,
		Pools:     graph.Pools,
		Scopes:    graph.Scopes,
		Subninjas: graph.Subninjas,
		Includes:  graph.Includes,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return err
	}
	return host.Write(DBPath, buf.String())
}

func loadGraph(host Host) (*Graph, error) {
	contents, err := host.Read(DBPath)
	if err != nil {
		return nil, err
	}
	var snap graphSnapshot
	if err := gob.NewDecoder(strings.NewReader(contents)).Decode(&snap); err != nil {
		return nil, err
	}
	graph := NewGraph(snap.Name)
	graph.Defaults = snap.Defaults
	if snap.Rules != nil {
		graph.Rules = snap.Rules
	}
	if snap.Pools != nil {
		graph.Pools = snap.Pools
	}
	if snap.Scopes != nil {
		graph.Scopes = snap.Scopes
	}
	graph.Subninjas = snap.Subninjas
	graph.Includes = snap.Includes
	for _, node := range snap.Nodes {
		for _, out := range node.Outputs {
			graph.Nodes[out] = node
		}
	}
	return graph, nil
}

// loadGraphs returns the previously persisted graph (if any) and the
// current graph. The snapshot is reused as the current graph only when it
// is newer than the build file and every file it includes or subninjas;
// otherwise the sources are reparsed and the fresh graph is marked dirty
// so it gets re-persisted after the build.
func loadGraphs(host Host, args *Args) (*Graph, *Graph, error) {
	var oldGraph *Graph
	needsRescan := true
	if host.Exists(DBPath) {
		// A snapshot that cannot be read is the same as no snapshot.
		if g, err := loadGraph(host); err == nil {
			oldGraph = g
			if dbMtime, err := host.Mtime(DBPath); err == nil {
				needsRescan = newerThan(host, args.File, dbMtime) ||
					anyNewerThan(host, g.Includes, dbMtime) ||
					anyNewerThan(host, g.Subninjas, dbMtime)
			}
		}
	}

	if !needsRescan {
		return oldGraph, oldGraph, nil
	}

	text, err := host.Read(args.File)
	if err != nil {
		return nil, nil, err
	}
	decls, err := Parse(text, args.File)
	if err != nil {
		return nil, nil, err
	}
	graph, err := NewAnalyzer(host).Analyze(decls, args.File, nil)
	if err != nil {
		return nil, nil, err
	}
	graph.IsDirty = true
	return oldGraph, graph, nil
}

// newerThan reports whether path was modified after t; a path that cannot
// be statted counts as newer, forcing a rescan.
func newerThan(host Host, path string, t int64) bool {
	m, err := host.Mtime(path)
	if err != nil {
		return true
	}
	return m > t
}

func anyNewerThan(host Host, paths []string, t int64) bool {
	for _, p := range paths {
		if newerThan(host, p, t) {
			return true
		}
	}
	return false
}
