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

// FoundKind tags what kind of value a scope lookup produced.
type FoundKind int

const (
	FoundExpanded FoundKind = iota
	FoundUnexpanded
	FoundPaths
)

// FoundVar is the result of a VarScope lookup.
type FoundVar struct {
	Kind     FoundKind
	Value    string   // FoundExpanded, FoundUnexpanded
	Paths    []string // FoundPaths
	Newlines bool     // FoundPaths: true for $in_newline
}

// VarScope is anything that can resolve a `$name` reference.
type VarScope interface {
	LookupVar(name string) (FoundVar, bool)
}

// reservedBindings are the only attribute names a `rule` block may
// define.
var reservedBindings = map[string]bool{
	"command":          true,
	"depfile":          true,
	"description":      true,
	"deps":             true,
	"generator":        true,
	"pool":             true,
	"restat":           true,
	"rspfile":          true,
	"rspfile_content":  true,
	"msvc_deps_prefix": true,
}

// IsReservedBinding reports whether name is one of the recognized rule
// attributes.
func IsReservedBinding(name string) bool {
	return reservedBindings[name]
}

// RuleVar is one unexpanded `name = value` pair inside a rule block.
type RuleVar struct {
	Name  string
	Value string
}

// Rule is a named, unexpanded set of build-command attributes.
type Rule struct {
	Name string
	Vars []RuleVar
}

// lookupVar finds the rightmost RuleVar named name: later definitions of
// the same name within a block win.
func (r *Rule) lookupVar(name string) (FoundVar, bool) {
	for i := len(r.Vars) - 1; i >= 0; i-- {
		if r.Vars[i].Name == name {
			return FoundVar{Kind: FoundUnexpanded, Value: r.Vars[i].Value}, true
		}
	}
	return FoundVar{}, false
}

// ExpandedVar is an already-expanded file- or build-scope variable.
type ExpandedVar struct {
	Name  string
	Value string
}

func lookupExpanded(vars []ExpandedVar, name string) (FoundVar, bool) {
	for i := len(vars) - 1; i >= 0; i-- {
		if vars[i].Name == name {
			return FoundVar{Kind: FoundExpanded, Value: vars[i].Value}, true
		}
	}
	return FoundVar{}, false
}

// FileScope holds the variables and rules defined directly in one
// build.ninja file (and anything it `include`d), plus an optional parent
// scope from whichever file `subninja`'d it.
type FileScope struct {
	Parent *FileScope
	Vars   []ExpandedVar
	Rules  []*Rule
}

// NewFileScope creates an empty top-level file scope.
func NewFileScope() *FileScope {
	return &FileScope{}
}

// NewSubscope creates a child scope for a subninja'd file: it starts
// empty but falls back to fs for anything it does not define itself.
func (fs *FileScope) NewSubscope() *FileScope {
	return &FileScope{Parent: fs}
}

func (fs *FileScope) LookupVar(name string) (FoundVar, bool) {
	if v, ok := lookupExpanded(fs.Vars, name); ok {
		return v, true
	}
	if fs.Parent != nil {
		return fs.Parent.LookupVar(name)
	}
	return FoundVar{}, false
}

// LookupRule finds the rightmost rule named name in fs, falling back to
// the parent scope.
func (fs *FileScope) LookupRule(name string) (*Rule, bool) {
	for i := len(fs.Rules) - 1; i >= 0; i-- {
		if fs.Rules[i].Name == name {
			return fs.Rules[i], true
		}
	}
	if fs.Parent != nil {
		return fs.Parent.LookupRule(name)
	}
	return nil, false
}

// HasRule reports whether a rule with this name exists directly in fs
// (not via a parent), used to reject duplicate rule definitions.
func (fs *FileScope) HasRule(name string) bool {
	for _, r := range fs.Rules {
		if r.Name == name {
			return true
		}
	}
	return false
}

// BuildScope adds one build statement's own (already-expanded) variables
// on top of a FileScope.
type BuildScope struct {
	FileScope *FileScope
	BuildVars []ExpandedVar
}

func (bs *BuildScope) LookupVar(name string) (FoundVar, bool) {
	if v, ok := lookupExpanded(bs.BuildVars, name); ok {
		return v, true
	}
	return bs.FileScope.LookupVar(name)
}

// BuildRuleScope adds the rule's own variables and the special $in/$out/
// $in_newline paths on top of a BuildScope. This is the scope built-in
// rule attributes (command, description, ...) are expanded against.
type BuildRuleScope struct {
	BuildScope *BuildScope
	RuleVars   []RuleVar
	Inputs     []string
	Outputs    []string
}

func (s *BuildRuleScope) LookupVar(name string) (FoundVar, bool) {
	switch name {
	case "in":
		return FoundVar{Kind: FoundPaths, Paths: s.Inputs}, true
	case "out":
		return FoundVar{Kind: FoundPaths, Paths: s.Outputs}, true
	case "in_newline":
		return FoundVar{Kind: FoundPaths, Paths: s.Inputs, Newlines: true}, true
	}
	if v, ok := lookupExpanded(s.BuildScope.BuildVars, name); ok {
		return v, true
	}
	rule := &Rule{Vars: s.RuleVars}
	if v, ok := rule.lookupVar(name); ok {
		return v, true
	}
	return s.BuildScope.FileScope.LookupVar(name)
}
