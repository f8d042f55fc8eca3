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
	"strings"
)

// ExpandVars expands the $-escapes in msg against scope and, optionally, a
// rule scope:
//
//	$$      -> '$'
//	$       -> ' '
//	$:      -> ':'
//	${name} -> lookup(name)
//	$name   -> lookup(name)
//
// A lookup checks scope's own bindings first, then ruleScope's own bindings,
// then scope's parent chain; an unbound name expands to "". Only malformed
// syntax is an error: a '$' at end of input, a '$' followed by a character
// that cannot start a name, or an unterminated ${.
//
// A $name reference ends at the first character that is not a letter or
// underscore. Unlike names in the file grammar, digits never continue the
// name, so "$foo.bar" expands foo and "$foo2" expands foo followed by a
// literal '2'.
func ExpandVars(msg string, scope, ruleScope *Scope) (string, error) {
	var out strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c != '$' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(msg) {
			return "", fmt.Errorf("unexpected '$' at end of %q", msg)
		}
		switch d := msg[i]; {
		case d == '$' || d == ' ' || d == ':':
			out.WriteByte(d)
		case d == '{':
			j := i + 1
			for j < len(msg) && isVarNameChar(msg[j]) {
				j++
			}
			if j == i+1 || j >= len(msg) || msg[j] != '}' {
				return "", fmt.Errorf("bad variable reference in %q", msg)
			}
			out.WriteString(lookupVar(msg[i+1:j], scope, ruleScope))
			i = j
		case isVarNameChar(d):
			j := i
			for j < len(msg) && isVarNameChar(msg[j]) {
				j++
			}
			out.WriteString(lookupVar(msg[i:j], scope, ruleScope))
			i = j - 1
		default:
			return "", fmt.Errorf("bad variable reference in %q", msg)
		}
	}
	return out.String(), nil
}

// Variable references are one or more letters or underscores; see the
// ExpandVars doc comment for why digits are excluded.
func isVarNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func lookupVar(name string, scope, ruleScope *Scope) string {
	if v, ok := scope.GetLocal(name); ok {
		return v
	}
	if ruleScope != nil {
		if v, ok := ruleScope.GetLocal(name); ok {
			return v
		}
	}
	if scope.Parent != nil {
		return scope.Parent.Get(name)
	}
	return ""
}
