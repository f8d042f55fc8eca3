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
	"strconv"
	"strings"
)

// DefaultStatusFormat is used when $NINJA_STATUS is unset.
const DefaultStatusFormat = "[%s/%t] "

// Stats tracks job counters and formats the status-line prefix from a
// $NINJA_STATUS-style %-template.
type Stats struct {
	format      string
	now         func() float64
	StartedTime float64

	Started  int
	Finished int
	Total    int
}

func NewStats(format string, now func() float64, startedTime float64) *Stats {
	return &Stats{format: format, now: now, StartedTime: startedTime}
}

// Format expands the template. Placeholders:
//
//	%s  started jobs        %f  finished jobs     %t  total jobs
//	%r  running (s - f)     %e  elapsed seconds (three decimals)
//	%o  overall finish rate (" --- " until anything starts)
//	%p  started percent     (" --- " with no total)
//	%%  a literal percent
//
// An unrecognized %x is emitted verbatim.
func (s *Stats) Format() string {
	var out strings.Builder
	for i := 0; i < len(s.format); i++ {
		c := s.format[i]
		if c != '%' || i == len(s.format)-1 {
			out.WriteByte(c)
			continue
		}
		i++
		switch s.format[i] {
		case '%':
			out.WriteByte('%')
		case 's':
			out.WriteString(strconv.Itoa(s.Started))
		case 'f':
			out.WriteString(strconv.Itoa(s.Finished))
		case 't':
			out.WriteString(strconv.Itoa(s.Total))
		case 'r':
			out.WriteString(strconv.Itoa(s.Started - s.Finished))
		case 'e':
			out.WriteString(fmt.Sprintf("%.3f", s.elapsed()))
		case 'o':
			elapsed := s.elapsed()
			if s.Started == 0 {
				out.WriteString(" --- ")
			} else {
				rate := 0.0
				if elapsed > 0 {
					rate = float64(s.Finished) / elapsed
				}
				out.WriteString(fmt.Sprintf("%5.1f", rate))
			}
		case 'p':
			if s.Total == 0 {
				out.WriteString(" --- ")
			} else {
				out.WriteString(fmt.Sprintf("%5.1f", 100*float64(s.Started)/float64(s.Total)))
			}
		default:
			out.WriteByte('%')
			out.WriteByte(s.format[i])
		}
	}
	return out.String()
}

func (s *Stats) elapsed() float64 {
	if s.now == nil {
		return 0
	}
	return s.now() - s.StartedTime
}
