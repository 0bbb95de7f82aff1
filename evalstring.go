// Copyright 2011 Google Inc. All Rights Reserved.
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

package anvil

import "strings"

// isIdentChar reports whether c can appear in a variable or rule name:
// alphanumerics, '_', '-', and '.'.
func isIdentChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// CheckEscapes validates that every `$` in value is followed by a legal
// escape: `\n`, ` `, `:`, `$`, an identifier, or `{identifier}`. It is run
// on every raw value the parser accepts, before the value is otherwise
// interpreted.
func CheckEscapes(value string) error {
	i := 0
	for i < len(value) {
		if value[i] != '$' {
			i++
			continue
		}
		i++
		if i >= len(value) {
			return &ParseError{Kind: InvalidEscape}
		}
		switch value[i] {
		case '\n', ' ', ':', '$':
			i++
		case '{':
			i++
			start := i
			for i < len(value) && isIdentChar(value[i]) {
				i++
			}
			if i == start || i >= len(value) || value[i] != '}' {
				return &ParseError{Kind: InvalidEscape}
			}
			i++
		default:
			if isIdentChar(value[i]) {
				i++
				for i < len(value) && isIdentChar(value[i]) {
					i++
				}
			} else {
				return &ParseError{Kind: InvalidEscape}
			}
		}
	}
	return nil
}

// evaluate expands an already-escape-checked raw value against scope,
// with variable-cycle detection via a caller-supplied recursion stack
// (the expansionStack linked list rooted at the variable currently being
// expanded, or nil at the top level).
func evaluate(value string, scope VarScope, stack *expansionFrame) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(value) {
		if value[i] != '$' {
			j := i
			for j < len(value) && value[j] != '$' {
				j++
			}
			out.WriteString(value[i:j])
			i = j
			continue
		}
		i++ // skip '$'
		switch {
		case i < len(value) && value[i] == '\n':
			i++
			for i < len(value) && (value[i] == ' ' || value[i] == '\t') {
				i++
			}
		case i < len(value) && value[i] == '$':
			out.WriteByte('$')
			i++
		case i < len(value) && value[i] == ' ':
			out.WriteByte(' ')
			i++
		case i < len(value) && value[i] == ':':
			out.WriteByte(':')
			i++
		case i < len(value) && value[i] == '{':
			i++
			start := i
			for i < len(value) && isIdentChar(value[i]) {
				i++
			}
			name := value[start:i]
			if i < len(value) && value[i] == '}' {
				i++
			}
			expanded, err := expandVar(name, scope, stack)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
		default:
			start := i
			for i < len(value) && isIdentChar(value[i]) {
				i++
			}
			name := value[start:i]
			expanded, err := expandVar(name, scope, stack)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
		}
	}
	return out.String(), nil
}

// expansionFrame is a node in the linked recursion-detection stack: one
// frame per rule-variable expansion currently in progress.
type expansionFrame struct {
	parent *expansionFrame
	name   string
}

// checkRecursion walks the stack looking for name. If found, it rebuilds
// the cycle (innermost frame first) ending at the matching frame, exactly
// as the expansion chain actually ran.
func checkRecursion(name string, stack *expansionFrame) error {
	for p := stack; p != nil; p = p.parent {
		if p.name == name {
			var cycle []string
			for q := stack; ; q = q.parent {
				cycle = append(cycle, q.name)
				if q.name == name {
					break
				}
			}
			return NewExpansionCycle(cycle)
		}
	}
	return nil
}

// expandVar looks up name in scope and expands it, recursing into
// Unexpanded rule-variable values under cycle detection, and formatting
// Paths specials with shell escaping.
func expandVar(name string, scope VarScope, stack *expansionFrame) (string, error) {
	found, ok := scope.LookupVar(name)
	if !ok {
		return "", nil
	}
	switch found.Kind {
	case FoundExpanded:
		return found.Value, nil
	case FoundPaths:
		return joinPaths(found.Paths, found.Newlines), nil
	case FoundUnexpanded:
		if err := checkRecursion(name, stack); err != nil {
			return "", err
		}
		return evaluate(found.Value, scope, &expansionFrame{parent: stack, name: name})
	}
	return "", nil
}

// ExpandString expands value (a raw, already escape-checked string)
// against scope.
func ExpandString(value string, scope VarScope) (string, error) {
	return evaluate(value, scope, nil)
}

// ExpandVar expands the single named variable against scope, used for
// the built-in rule attributes (command, description, etc.) which are
// themselves EvalStrings looked up by name rather than given inline.
// stack threads an in-progress recursion-detection chain through nested
// calls; pass nil at the top level.
func ExpandVar(name string, scope VarScope, stack *expansionFrame) (string, error) {
	return expandVar(name, scope, stack)
}

// shellSafe reports whether c can appear in a shell word without
// quoting.
func shellSafe(c byte) bool {
	return c == '_' || c == '+' || c == '-' || c == '.' || c == '/' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ShellEscape quotes token for a POSIX shell only if it contains a byte
// outside the known-safe set; otherwise it is returned unchanged.
func ShellEscape(token string) string {
	safe := true
	for i := 0; i < len(token); i++ {
		if !shellSafe(token[i]) {
			safe = false
			break
		}
	}
	if safe {
		return token
	}
	var out strings.Builder
	out.WriteByte('\'')
	for i := 0; i < len(token); i++ {
		if token[i] == '\'' {
			out.WriteString(`'\''`)
		} else {
			out.WriteByte(token[i])
		}
	}
	out.WriteByte('\'')
	return out.String()
}

func joinPaths(paths []string, newlines bool) string {
	var out strings.Builder
	sep := " "
	if newlines {
		sep = "\n"
	}
	for i, p := range paths {
		if i > 0 {
			out.WriteString(sep)
		}
		out.WriteString(ShellEscape(p))
	}
	if newlines && len(paths) > 0 {
		out.WriteByte('\n')
	}
	return out.String()
}
