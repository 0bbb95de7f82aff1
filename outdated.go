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

// CheckDepFunc reports whether there is a build rule that produces
// path. It is called once per (explicit or order-only) input of the
// rule under test.
type CheckDepFunc func(path string, orderOnly bool) bool

// IsOutdated decides whether rule needs to run. stat looks up an
// output's or input's mtime, consulting (but never populating) the
// dep-log's dependency paths through depStat instead, so the caller can
// discard depStat after the decision without disturbing stat's cache.
func IsOutdated(rule *BuildRule, depLog *DepLog, stat, depStat *StatCache, checkDep CheckDepFunc) (bool, error) {
	oldest, ok, err := checkOutputs(rule, depLog, stat, depStat)
	if err != nil {
		return false, err
	}
	return checkDependencies(rule, stat, oldest, ok, checkDep)
}

// checkOutputs examines rule's outputs and, for rules that discover
// extra dependencies, the dep-log's recorded deps for each output. It
// returns the oldest output mtime and ok=false if the rule is
// definitely outdated already (an output is missing, its recorded
// dependency information is stale or missing, or a recorded dependency
// is newer than the output or no longer exists).
func checkOutputs(rule *BuildRule, depLog *DepLog, stat, depStat *StatCache) (oldest Timestamp, ok bool, err error) {
	usesDeps := rule.Command != nil && rule.Command.Deps != DepsNone
	first := true

	for _, output := range rule.Outputs {
		mtime, exists := stat.Mtime(output)
		if !exists {
			return 0, false, nil
		}
		if first || mtime < oldest {
			oldest = mtime
			first = false
		}
		if !usesDeps {
			continue
		}

		deps, depMtime, has := depLog.Get(output)
		if !has {
			return 0, false, nil
		}
		if depMtime < mtime {
			return 0, false, nil
		}
		for _, dep := range deps {
			dm, exists, cached := stat.CachedMtime(dep)
			if !cached {
				dm, exists = depStat.Mtime(dep)
			}
			if !exists || mtime < dm {
				return 0, false, nil
			}
		}
	}

	return oldest, true, nil
}

// checkDependencies examines rule's explicit and order-only inputs.
// hasOldest is the ok result of checkOutputs: when false the rule is
// already known outdated, but every dependency is still walked so
// checkDep fires for each one and a genuinely missing, unproducible
// input is still reported as an error.
func checkDependencies(rule *BuildRule, stat *StatCache, oldest Timestamp, hasOldest bool, checkDep CheckDepFunc) (bool, error) {
	outdated := !hasOldest

	visit := func(path string, orderOnly bool) error {
		hasRule := checkDep(path, orderOnly)
		mtime, exists := stat.Mtime(path)
		if !exists {
			outdated = true
		} else if !orderOnly && hasOldest && mtime > oldest {
			outdated = true
		}
		if !hasRule && !exists {
			return &BuildError{
				Kind:   MissingDependency,
				Target: rule.Outputs[0],
				Cause:  missingDepError{path: path},
			}
		}
		return nil
	}

	for _, path := range rule.Inputs {
		if err := visit(path, false); err != nil {
			return false, err
		}
	}
	for _, path := range rule.OrderDeps {
		if err := visit(path, true); err != nil {
			return false, err
		}
	}

	return outdated, nil
}

type missingDepError struct{ path string }

func (e missingDepError) Error() string {
	return e.path + " not found, and there's no rule to make it"
}
