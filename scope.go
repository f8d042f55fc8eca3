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

// A Scope is a mapping of variable names to string values, plus an optional
// parent scope. Lookups fall through to the parent chain; a name that is
// bound nowhere evaluates to the empty string.
//
// There is one root scope per build file, one child scope per rule (holding
// the rule's unexpanded bindings), and one child scope per build statement
// (seeded with $in and $out).
type Scope struct {
	Name   string
	Parent *Scope
	Objs   map[string]string
}

func NewScope(name string, parent *Scope) *Scope {
	return &Scope{Name: name, Parent: parent, Objs: map[string]string{}}
}

// Get returns the first binding for name walking local -> parent -> ...,
// or "" if name is bound nowhere.
func (s *Scope) Get(name string) string {
	if v, ok := s.Objs[name]; ok {
		return v
	}
	if s.Parent != nil {
		return s.Parent.Get(name)
	}
	return ""
}

// GetLocal returns this scope's own binding for name, without consulting
// the parent chain.
func (s *Scope) GetLocal(name string) (string, bool) {
	v, ok := s.Objs[name]
	return v, ok
}

func (s *Scope) Set(name, value string) {
	s.Objs[name] = value
}

// Delete removes this scope's own binding for name, re-exposing any binding
// in the parent chain. Deleting an unbound name is a no-op.
func (s *Scope) Delete(name string) {
	delete(s.Objs, name)
}

// Contains reports whether name is bound in this scope or any parent.
func (s *Scope) Contains(name string) bool {
	if _, ok := s.Objs[name]; ok {
		return true
	}
	return s.Parent != nil && s.Parent.Contains(name)
}
