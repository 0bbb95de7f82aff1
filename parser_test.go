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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserBuildStatement(t *testing.T) {
	p := NewParser("build.ninja", "build a.o: cc a.c\n")
	stmt, ok, err := p.NextStatement()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StmtBuild, stmt.Kind)
	require.Equal(t, "cc", stmt.RuleName)
	require.Equal(t, []string{"a.o"}, stmt.ExplicitOutputs)
	require.Equal(t, []string{"a.c"}, stmt.ExplicitDeps)
}

func TestParserBuildWithImplicitAndOrderOnly(t *testing.T) {
	p := NewParser("build.ninja", "build out | out.d: touch in || dep\n")
	stmt, ok, err := p.NextStatement()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"out"}, stmt.ExplicitOutputs)
	require.Equal(t, []string{"out.d"}, stmt.ImplicitOutputs)
	require.Equal(t, []string{"in"}, stmt.ExplicitDeps)
	require.Equal(t, []string{"dep"}, stmt.OrderDeps)
}

func TestParserVariableStatement(t *testing.T) {
	p := NewParser("build.ninja", "foo = bar\n")
	stmt, ok, err := p.NextStatement()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StmtVariable, stmt.Kind)
	require.Equal(t, "foo", stmt.Name)
	require.Equal(t, "bar", stmt.Value)
}

func TestParserRuleAndIndentedVariables(t *testing.T) {
	p := NewParser("build.ninja", "rule cc\n  command = cc $in -o $out\n  description = CC $out\n")
	stmt, ok, err := p.NextStatement()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StmtRule, stmt.Kind)
	require.Equal(t, "cc", stmt.Name)

	var vars []Variable
	for {
		v, ok, err := p.NextVariable()
		require.NoError(t, err)
		if !ok {
			break
		}
		vars = append(vars, v)
	}
	require.Len(t, vars, 2)
	require.Equal(t, "command", vars[0].Name)
	require.Equal(t, "cc $in -o $out", vars[0].Value)
}

func TestParserContinuationLine(t *testing.T) {
	p := NewParser("build.ninja", "foo = bar $\n    baz\n")
	stmt, ok, err := p.NextStatement()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StmtVariable, stmt.Kind)
	expanded, err := ExpandString(stmt.Value, NewFileScope())
	require.NoError(t, err)
	require.Equal(t, "bar baz", expanded)
}

func TestParserInvalidEscape(t *testing.T) {
	p := NewParser("build.ninja", "foo = $!\n")
	_, _, err := p.NextStatement()
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, InvalidEscape, pe.Kind)
}

func TestReadSpecTwoLevelBuild(t *testing.T) {
	src := "rule cc\n  command = cc $in -o $out\nbuild a.o: cc a.c\nbuild a: cc a.o\ndefault a\n"
	spec, err := ReadSpec("build.ninja", []byte(src))
	require.NoError(t, err)
	require.Len(t, spec.BuildRules, 2)
	require.Equal(t, []string{"a.o"}, spec.BuildRules[0].Outputs)
	require.Equal(t, "cc a.c -o a.o", spec.BuildRules[0].Command.Command)
	require.Equal(t, []string{"a"}, spec.DefaultTargets)
}

func TestReadSpecPhonyPassThrough(t *testing.T) {
	src := "rule cp\n  command = cp $in $out\nbuild x: phony y\nbuild y: cp z\n"
	spec, err := ReadSpec("build.ninja", []byte(src))
	require.NoError(t, err)
	require.Len(t, spec.BuildRules, 2)
	require.True(t, spec.BuildRules[0].IsPhony())
	require.Equal(t, []string{"y"}, spec.BuildRules[0].Inputs)
}

func TestReadSpecUndefinedRule(t *testing.T) {
	_, err := ReadSpec("build.ninja", []byte("build a: missing b\n"))
	require.Error(t, err)
	re, ok := err.(*ReadError)
	require.True(t, ok)
	require.Equal(t, UndefinedRule, re.Kind)
}

func TestReadSpecBuildDir(t *testing.T) {
	spec, err := ReadSpec("build.ninja", []byte("builddir = out\n"))
	require.NoError(t, err)
	require.True(t, spec.HasBuildDir)
	require.Equal(t, "out", spec.BuildDir)
}
