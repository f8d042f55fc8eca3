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

	"github.com/spf13/pflag"
)

// Args holds the parsed command line.
type Args struct {
	Version         bool
	Dir             string
	File            string
	Jobs            int
	Errors          int
	Load            float64
	DryRun          bool
	CleanGen        bool
	Verbose         int
	Debug           string
	Tool            string
	OverwriteStatus bool
	Targets         []string
}

// parseArgs parses argv. It returns (-1, args) to proceed, or an exit code
// when the command line itself settles the process's fate (bad flag, -h,
// unsupported -d/-t).
func parseArgs(host Host, argv []string, toolNames []string) (int, *Args) {
	overwriteByDefault := host.StderrIsTTY()

	a := &Args{}
	fs := pflag.NewFlagSet("pyn", pflag.ContinueOnError)
	fs.SetOutput(host.Stderr())
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(host.Stderr(), "usage: pyn [options] [targets...]\n\n")
		fmt.Fprintf(host.Stderr(),
			"if targets are unspecified, builds the 'default' targets (see manual).\n\n")
		fmt.Fprint(host.Stderr(), fs.FlagUsages())
	}

	fs.BoolVar(&a.Version, "version", false,
		fmt.Sprintf("print pyn version (%q)", Version))
	fs.StringVarP(&a.Dir, "C", "C", "", "change to DIR before doing anything else")
	fs.StringVarP(&a.File, "f", "f", "build.ninja", "specify input build file")
	fs.IntVarP(&a.Jobs, "j", "j", host.CPUCount(),
		"run N jobs in parallel (default derived from CPUs available)")
	fs.IntVarP(&a.Errors, "k", "k", 1, "keep going until N jobs fail")
	fs.Float64VarP(&a.Load, "l", "l", 0,
		"do not start new jobs if the load average is greater than N (unimplemented; accepted for compatibility)")
	fs.BoolVarP(&a.DryRun, "n", "n", false,
		"dry run (don't run commands but act like they succeeded)")
	fs.BoolVarP(&a.CleanGen, "g", "g", false,
		"with -t clean: also remove generator outputs and the graph snapshot")
	fs.CountVarP(&a.Verbose, "v", "v", "show all command lines while building (-vv for more)")
	fs.StringVarP(&a.Debug, "d", "d", "", "enable debugging (unimplemented; any MODE exits with status 2)")
	fs.StringVarP(&a.Tool, "t", "t", "", "run a subtool (use -t list to list subtools)")
	overwrite := fs.Bool("overwrite-status", overwriteByDefault,
		"status updates will overwrite each other (on by default when stderr is a tty)")
	noOverwrite := fs.Bool("no-overwrite-status", false,
		"status updates will not overwrite each other")

	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, nil
		}
		return 2, nil
	}
	a.OverwriteStatus = *overwrite && !*noOverwrite
	a.Targets = fs.Args()
	if a.Jobs < 1 {
		a.Jobs = 1
	}
	if a.Errors < 1 {
		a.Errors = 1
	}

	if a.Debug != "" {
		host.PrintErr("-d is not supported yet")
		return 2, nil
	}
	if a.Tool != "" && !contains(toolNames, a.Tool) {
		host.PrintErr(fmt.Sprintf("unsupported tool \"%s\"", a.Tool))
		return 2, nil
	}
	return -1, a
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
