// Copyright 2012 Google Inc. All Rights Reserved.
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

import "os"

// BuildIndex maps every build rule's output path to its task number
// (its index into Spec.BuildRules).
func BuildIndex(spec *Spec) map[string]int {
	index := make(map[string]int)
	for i, rule := range spec.BuildRules {
		for _, out := range rule.Outputs {
			index[out] = i
		}
	}
	return index
}

// ResolveTargets canonicalizes requested (or, if empty, spec's default
// targets) and looks each up in index. A name with no producing rule
// is only valid if it already exists on disk (there is simply nothing
// to build for it); otherwise it is a fatal missing-dependency error,
// the same class of error the outdated check raises for an
// unproducible input.
func ResolveTargets(spec *Spec, index map[string]int, requested []string) ([]int, error) {
	names := requested
	if len(names) == 0 {
		names = spec.DefaultTargets
	}

	var tasks []int
	for _, name := range names {
		path := CanonicalizePathString(name)
		if task, ok := index[path]; ok {
			tasks = append(tasks, task)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, NewBuildError(MissingDependency, path, missingDepError{path: path})
		}
	}
	return tasks, nil
}

// Plan runs the outdated check over every task reachable from targets
// and wires the result into a BuildQueue. stat and depStat are local to
// this call and not retained once it returns.
func Plan(spec *Spec, index map[string]int, depLog *DepLog, targets []int) *BuildQueue {
	stat := NewStatCache()
	depStat := NewStatCache()

	getTask := func(task int) TaskInfo {
		rule := spec.BuildRules[task]

		checkDep := func(path string, orderOnly bool) bool {
			_, ok := index[path]
			return ok
		}

		outdated, err := IsOutdated(rule, depLog, stat, depStat, checkDep)
		if err != nil {
			errorf("%s: %v", rule.Outputs[0], err)
			outdated = true
		}

		return TaskInfo{
			Phony:        rule.IsPhony(),
			Outdated:     outdated,
			Dependencies: forwardDeps(rule, index),
		}
	}

	return NewBuildQueue(len(spec.BuildRules), targets, getTask)
}

func forwardDeps(rule *BuildRule, index map[string]int) []depInfo {
	var deps []depInfo
	for _, in := range rule.Inputs {
		if task, ok := index[in]; ok {
			deps = append(deps, Dep(task, false))
		}
	}
	for _, in := range rule.OrderDeps {
		if task, ok := index[in]; ok {
			deps = append(deps, Dep(task, true))
		}
	}
	return deps
}
