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
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// ruleScope is a minimal VarScope over a flat map of unexpanded rule
// vars, used to exercise cycle detection in isolation from the rest of
// the scope hierarchy.
type ruleScope map[string]string

func (r ruleScope) LookupVar(name string) (FoundVar, bool) {
	v, ok := r[name]
	if !ok {
		return FoundVar{}, false
	}
	return FoundVar{Kind: FoundUnexpanded, Value: v}, true
}

func TestExpansionCycleSelf(t *testing.T) {
	scope := ruleScope{"r": "$r"}
	_, err := ExpandVar("r", scope, nil)
	require.Error(t, err)
	re, ok := err.(*ReadError)
	require.True(t, ok)
	if !reflect.DeepEqual(re.Cycle, []string{"r"}) {
		t.Errorf("cycle = %v, want [r]", re.Cycle)
	}
}

func TestExpansionCycleThreeVars(t *testing.T) {
	scope := ruleScope{"r1": "$r2", "r2": "$r3", "r3": "$r1"}
	_, err := ExpandVar("r2", scope, nil)
	require.Error(t, err)
	re, ok := err.(*ReadError)
	require.True(t, ok)
	if !reflect.DeepEqual(re.Cycle, []string{"r1", "r3", "r2"}) {
		t.Errorf("cycle = %v, want [r1 r3 r2]", re.Cycle)
	}
}

func TestBuildRuleScopeLookupOrder(t *testing.T) {
	fileScope := &FileScope{
		Vars: []ExpandedVar{{Name: "x", Value: "file"}},
	}
	buildScope := &BuildScope{
		FileScope: fileScope,
		BuildVars: []ExpandedVar{{Name: "x", Value: "build"}},
	}
	ruleVars := []RuleVar{{Name: "x", Value: "rule"}}
	s := &BuildRuleScope{BuildScope: buildScope, RuleVars: ruleVars}

	v, ok := s.LookupVar("x")
	require.True(t, ok)
	if v.Value != "build" {
		t.Errorf("build_vars should win over rule vars and file scope, got %q", v.Value)
	}

	s2 := &BuildRuleScope{BuildScope: &BuildScope{FileScope: fileScope}, RuleVars: ruleVars}
	v2, ok := s2.LookupVar("x")
	require.True(t, ok)
	if v2.Value != "rule" {
		t.Errorf("rule vars should win over file scope when build_vars don't define it, got %q", v2.Value)
	}
}

func TestExpandCommandShellEscaping(t *testing.T) {
	fileScope := &FileScope{}
	buildScope := &BuildScope{FileScope: fileScope}
	s := &BuildRuleScope{
		BuildScope: buildScope,
		RuleVars:   []RuleVar{{Name: "command", Value: "cc $in -o $out"}},
		Inputs:     []string{"in"},
		Outputs:    []string{"foo/bar"},
	}
	got, err := ExpandVar("command", s, nil)
	require.NoError(t, err)
	want := "cc in -o foo/bar"
	if got != want {
		t.Errorf("expanded command = %q, want %q", got, want)
	}
}

func TestShellEscapeUnsafeToken(t *testing.T) {
	if ShellEscape("safe_token-1.2/3") != "safe_token-1.2/3" {
		t.Errorf("safe token should not be quoted")
	}
	if ShellEscape("a b") != `'a b'` {
		t.Errorf("got %q, want 'a b'", ShellEscape("a b"))
	}
	if ShellEscape("it's") != `'it'\''s'` {
		t.Errorf("got %q", ShellEscape("it's"))
	}
}
