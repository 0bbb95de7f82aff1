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

import (
	"os"
	"path/filepath"
	"strconv"
)

// DepStyle names how extra header dependencies are discovered for a
// build command.
type DepStyle int

const (
	DepsNone DepStyle = iota
	DepsGcc
	DepsMsvc
)

// BuildCommand holds a non-phony BuildRule's invocation details, all
// already expanded against the build-rule scope.
type BuildCommand struct {
	RuleName       string
	Command        string
	Description    string
	Depfile        string
	Deps           DepStyle
	MsvcDepsPrefix string
	Generator      bool
	Restat         bool
	Rspfile        string
	RspfileContent string
	Pool           string
	PoolDepth      int
	HasPoolDepth   bool
}

// BuildRule is one `build` statement: a set of outputs produced from a
// set of inputs, optionally via a BuildCommand. A nil Command means
// phony: the rule is only an alias collecting its inputs under a name.
type BuildRule struct {
	Outputs   []string
	Inputs    []string
	OrderDeps []string
	Command   *BuildCommand
}

// IsPhony reports whether this rule has no command.
func (r *BuildRule) IsPhony() bool { return r.Command == nil }

// Spec is the fully-resolved result of reading a build.ninja file (and
// everything it `include`d or `subninja`'d).
type Spec struct {
	BuildRules     []*BuildRule
	DefaultTargets []string
	BuildDir       string
	HasBuildDir    bool
}

type pool struct {
	name  string
	depth int
}

// ReadSpecFile reads and resolves fileName as a build.ninja file.
func ReadSpecFile(fileName string) (*Spec, error) {
	source, err := os.ReadFile(fileName)
	if err != nil {
		return nil, NewIoError(fileName, err)
	}
	return ReadSpec(fileName, source)
}

// ReadSpec reads and resolves source as if it were the contents of
// fileName. Exposed separately from ReadSpecFile for tests and fuzzing.
func ReadSpec(fileName string, source []byte) (*Spec, error) {
	spec := &Spec{}
	scope := NewFileScope()
	pools := []pool{{name: "console", depth: 1}}

	if err := readInto(fileName, string(source), spec, scope, &pools); err != nil {
		return nil, err
	}

	for i := len(scope.Vars) - 1; i >= 0; i-- {
		if scope.Vars[i].Name == "builddir" {
			spec.BuildDir = scope.Vars[i].Value
			spec.HasBuildDir = true
			break
		}
	}

	return spec, nil
}

func lookupPoolDepth(pools []pool, name string) (int, bool) {
	for _, p := range pools {
		if p.name == name {
			return p.depth, true
		}
	}
	return 0, false
}

func readInto(fileName, source string, spec *Spec, scope *FileScope, pools *[]pool) error {
	p := NewParser(fileName, source)

	for {
		stmt, ok, err := p.NextStatement()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		file, line := p.Location()

		switch stmt.Kind {
		case StmtVariable:
			value, err := ExpandString(stmt.Value, scope)
			if err != nil {
				return readErrAt(err, file, line)
			}
			scope.Vars = append(scope.Vars, ExpandedVar{Name: stmt.Name, Value: value})

		case StmtRule:
			if scope.HasRule(stmt.Name) {
				return &ReadError{Kind: DuplicateRule, Name: stmt.Name, File: file, Line: line}
			}
			var vars []RuleVar
			for {
				v, ok, err := p.NextVariable()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				if !IsReservedBinding(v.Name) {
					_, vline := p.Location()
					return &ReadError{Kind: UnknownVariable, Name: v.Name, File: file, Line: vline}
				}
				vars = append(vars, RuleVar{Name: v.Name, Value: v.Value})
			}
			scope.Rules = append(scope.Rules, &Rule{Name: stmt.Name, Vars: vars})

		case StmtPool:
			if _, ok := lookupPoolDepth(*pools, stmt.Name); ok {
				return &ReadError{Kind: DuplicatePool, Name: stmt.Name, File: file, Line: line}
			}
			depth := -1
			for {
				v, ok, err := p.NextVariable()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				_, vline := p.Location()
				if v.Name != "depth" {
					return &ReadError{Kind: UnknownVariable, Name: v.Name, File: file, Line: vline}
				}
				expanded, err := ExpandString(v.Value, scope)
				if err != nil {
					return readErrAt(err, file, vline)
				}
				n, err := strconv.Atoi(expanded)
				if err != nil || n < 0 {
					return &ReadError{Kind: InvalidPoolDepth, File: file, Line: vline}
				}
				depth = n
			}
			if depth < 0 {
				return &ReadError{Kind: ExpectedPoolDepth, File: file, Line: line}
			}
			*pools = append(*pools, pool{name: stmt.Name, depth: depth})

		case StmtBuild:
			if err := readBuild(p, stmt, file, line, spec, scope, pools); err != nil {
				return err
			}

		case StmtDefault:
			for _, raw := range stmt.Paths {
				expanded, err := ExpandString(raw, scope)
				if err != nil {
					return readErrAt(err, file, line)
				}
				spec.DefaultTargets = append(spec.DefaultTargets, CanonicalizePathString(expanded))
			}

		case StmtInclude:
			path, err := ExpandString(stmt.Path, scope)
			if err != nil {
				return readErrAt(err, file, line)
			}
			path = resolveRelative(fileName, path)
			src, ioErr := os.ReadFile(path)
			if ioErr != nil {
				return NewIoError(path, ioErr)
			}
			if err := readInto(path, string(src), spec, scope, pools); err != nil {
				return err
			}

		case StmtSubNinja:
			path, err := ExpandString(stmt.Path, scope)
			if err != nil {
				return readErrAt(err, file, line)
			}
			path = resolveRelative(fileName, path)
			src, ioErr := os.ReadFile(path)
			if ioErr != nil {
				return NewIoError(path, ioErr)
			}
			if err := readInto(path, string(src), spec, scope.NewSubscope(), pools); err != nil {
				return err
			}
		}
	}
}

func resolveRelative(fromFile, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(fromFile), path)
}

func readErrAt(err error, file string, line int) error {
	if re, ok := err.(*ReadError); ok {
		if re.File == "" {
			re.File = file
			re.Line = line
		}
		return re
	}
	return &ReadError{Kind: ExpansionErrorKind, File: file, Line: line, Cause: err}
}

func readBuild(p *Parser, stmt Statement, file string, line int, spec *Spec, scope *FileScope, pools *[]pool) error {
	var buildVars []ExpandedVar
	for {
		v, ok, err := p.NextVariable()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		_, vline := p.Location()
		expanded, err := ExpandString(v.Value, scope)
		if err != nil {
			return readErrAt(err, file, vline)
		}
		buildVars = append(buildVars, ExpandedVar{Name: v.Name, Value: expanded})
	}

	buildScope := &BuildScope{FileScope: scope, BuildVars: buildVars}

	outputs := make([]string, 0, len(stmt.ExplicitOutputs)+len(stmt.ImplicitOutputs))
	inputs := make([]string, 0, len(stmt.ExplicitDeps)+len(stmt.ImplicitDeps))

	for _, raw := range stmt.ExplicitOutputs {
		v, err := ExpandString(raw, buildScope)
		if err != nil {
			return readErrAt(err, file, line)
		}
		outputs = append(outputs, v)
	}
	for _, raw := range stmt.ExplicitDeps {
		v, err := ExpandString(raw, buildScope)
		if err != nil {
			return readErrAt(err, file, line)
		}
		inputs = append(inputs, v)
	}

	var command *BuildCommand
	if stmt.RuleName != "phony" {
		rule, ok := scope.LookupRule(stmt.RuleName)
		if !ok {
			return &ReadError{Kind: UndefinedRule, Name: stmt.RuleName, File: file, Line: line}
		}

		ruleScope := &BuildRuleScope{
			BuildScope: buildScope,
			RuleVars:   rule.Vars,
			Inputs:     inputs,
			Outputs:    outputs,
		}
		expand := func(name string) (string, error) {
			v, err := ExpandVar(name, ruleScope, nil)
			if err != nil {
				return "", readErrAt(err, file, line)
			}
			return v, nil
		}

		poolName, err := expand("pool")
		if err != nil {
			return err
		}
		depth := 0
		hasDepth := false
		if poolName != "" {
			d, ok := lookupPoolDepth(*pools, poolName)
			if !ok {
				return &ReadError{Kind: UndefinedPool, Name: poolName, File: file, Line: line}
			}
			depth, hasDepth = d, true
		}

		cmd, err := expand("command")
		if err != nil {
			return err
		}
		description, err := expand("description")
		if err != nil {
			return err
		}
		depfile, err := expand("depfile")
		if err != nil {
			return err
		}
		depsValue, err := expand("deps")
		if err != nil {
			return err
		}
		depStyle := DepsNone
		switch depsValue {
		case "gcc":
			depStyle = DepsGcc
		case "msvc":
			depStyle = DepsMsvc
		}
		msvcPrefix, err := expand("msvc_deps_prefix")
		if err != nil {
			return err
		}
		rspfile, err := expand("rspfile")
		if err != nil {
			return err
		}
		rspfileContent, err := expand("rspfile_content")
		if err != nil {
			return err
		}
		_, hasGenerator := ruleScope.LookupVar("generator")
		_, hasRestat := ruleScope.LookupVar("restat")

		command = &BuildCommand{
			RuleName:       stmt.RuleName,
			Command:        cmd,
			Description:    description,
			Depfile:        depfile,
			Deps:           depStyle,
			MsvcDepsPrefix: msvcPrefix,
			Generator:      hasGenerator,
			Restat:         hasRestat,
			Rspfile:        rspfile,
			RspfileContent: rspfileContent,
			Pool:           poolName,
			PoolDepth:      depth,
			HasPoolDepth:   hasDepth,
		}
	}

	for _, raw := range stmt.ImplicitOutputs {
		v, err := ExpandString(raw, buildScope)
		if err != nil {
			return readErrAt(err, file, line)
		}
		outputs = append(outputs, v)
	}
	for _, raw := range stmt.ImplicitDeps {
		v, err := ExpandString(raw, buildScope)
		if err != nil {
			return readErrAt(err, file, line)
		}
		inputs = append(inputs, v)
	}

	orderDeps := make([]string, 0, len(stmt.OrderDeps))
	for _, raw := range stmt.OrderDeps {
		v, err := ExpandString(raw, buildScope)
		if err != nil {
			return readErrAt(err, file, line)
		}
		orderDeps = append(orderDeps, v)
	}

	for i := range outputs {
		outputs[i] = CanonicalizePathString(outputs[i])
	}
	for i := range inputs {
		inputs[i] = CanonicalizePathString(inputs[i])
	}
	for i := range orderDeps {
		orderDeps[i] = CanonicalizePathString(orderDeps[i])
	}

	spec.BuildRules = append(spec.BuildRules, &BuildRule{
		Outputs:   outputs,
		Inputs:    inputs,
		OrderDeps: orderDeps,
		Command:   command,
	})
	return nil
}
