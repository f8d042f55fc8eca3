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

import "strings"

// A Printer writes status lines, optionally overprinting the previous line
// the way ninja does on a smart terminal. In overwrite mode each update
// erases the prior line with carriage returns and blanks and leaves the
// cursor at the end of the new text; Flush terminates the last line. In
// non-overwrite mode every update is its own line and nothing is elided.
type Printer struct {
	out             func(string)
	shouldOverwrite bool
	cols            int
	lastLen         int
	printed         bool
}

// NewPrinter writes through out, which must not append a newline of its
// own. cols bounds elided lines in overwrite mode; 80 is the usual default
// when the terminal width is unknown.
func NewPrinter(out func(string), shouldOverwrite bool, cols int) *Printer {
	return &Printer{out: out, shouldOverwrite: shouldOverwrite, cols: cols}
}

// Update replaces (overwrite mode) or appends (otherwise) the status line.
// When elide is set and the line is too wide for the terminal, it is
// truncated with a " ..." suffix; elision only applies in overwrite mode.
func (p *Printer) Update(msg string, elide bool) {
	if p.shouldOverwrite {
		if elide && len(msg) > p.cols && p.cols > 5 {
			msg = msg[:p.cols-5] + " ..."
		}
		if p.lastLen > 0 {
			p.out("\r" + strings.Repeat(" ", p.lastLen) + "\r")
		}
		p.out(msg)
		p.lastLen = len(msg)
	} else {
		p.out(msg + "\n")
	}
	p.printed = true
}

// Flush ends the in-progress status line, if any.
func (p *Printer) Flush() {
	if p.shouldOverwrite && p.printed {
		p.out("\n")
		p.lastLen = 0
		p.printed = false
	}
}
