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
	"os"
)

// Main is the entry point for cmd/pyn. It wires up the real host and maps
// the outcome to an exit code.
func Main() int {
	return Run(NewHost(), os.Args[1:])
}

// Run executes one pyn invocation against the given host:
// parse the command line, change directory, load (or reuse) the graph,
// then either dispatch a subtool or build the stale targets and re-persist
// the graph if it changed.
func Run(host Host, argv []string) int {
	startedTime := host.Time()

	code, args := parseArgs(host, argv, toolNames())
	if code >= 0 {
		return code
	}

	if args.Version {
		host.PrintOut(Version)
		return 0
	}
	if args.Tool == "list" {
		return toolList(host)
	}

	if args.Dir != "" {
		if !host.Exists(args.Dir) {
			host.PrintErr(fmt.Sprintf("\"%s\" not found", args.Dir))
			return 2
		}
		if err := host.Chdir(args.Dir); err != nil {
			host.PrintErr(err.Error())
			return 2
		}
	}
	if !host.Exists(args.File) {
		host.PrintErr(fmt.Sprintf("\"%s\" not found", args.File))
		return 2
	}

	oldGraph, graph, err := loadGraphs(host, args)
	if err != nil {
		host.PrintErr(err.Error())
		return 1
	}

	if args.Tool != "" {
		return runTool(host, args, oldGraph, graph, startedTime)
	}

	builder := NewBuilder(host, args, startedTime)
	nodesToBuild, err := builder.FindNodesToBuild(oldGraph, graph)
	if err != nil {
		host.PrintErr(err.Error())
		return 1
	}
	if len(nodesToBuild) == 0 {
		host.PrintOut("pyn: no work to do.")
		return 0
	}

	res, err := builder.Build(graph, nodesToBuild)
	if err != nil {
		if errors.Is(err, errInterrupted) {
			host.PrintErr("Interrupted, exiting ..")
			return 130
		}
		host.PrintErr(err.Error())
		return 1
	}
	if graph.IsDirty {
		if err := saveGraph(host, graph); err != nil {
			host.PrintErr(err.Error())
			return 1
		}
	}
	return res
}
