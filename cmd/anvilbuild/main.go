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

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreybailey/anvil"
	"github.com/integrii/flaggy"
	"github.com/sirupsen/logrus"
)

const defaultBuildFile = "build.ninja"

var (
	chdir     string
	buildFile = defaultBuildFile
	dryRun    bool
	verbose   bool
	jobs      = 8
	subtool   string
)

func main() {
	flaggy.SetName("anvilbuild")
	flaggy.SetDescription("a small DAG build executor")

	flaggy.String(&chdir, "C", "directory", "change to directory before doing anything else")
	flaggy.String(&buildFile, "f", "file", "specify the build file (default build.ninja)")
	flaggy.Bool(&dryRun, "n", "dry-run", "dry run: don't run commands, pretend every target succeeded")
	flaggy.Bool(&verbose, "v", "verbose", "show all command lines and debug-level explanations")
	flaggy.Int(&jobs, "j", "jobs", "run N jobs in parallel (default 8)")
	flaggy.String(&subtool, "t", "tool", "run a subtool (unimplemented; listed for interface parity)")

	flaggy.Parse()

	targets := flaggy.DefaultParser.TrailingArguments

	if verbose {
		logger := logrus.New()
		logger.SetLevel(logrus.DebugLevel)
		anvil.SetLogger(logger)
	}

	if subtool != "" {
		fmt.Fprintf(os.Stderr, "anvilbuild: subtool %q is not implemented\n", subtool)
		os.Exit(1)
	}

	if err := run(targets); err != nil {
		fmt.Fprintf(os.Stderr, "anvilbuild: %s\n", err)
		os.Exit(1)
	}
}

func run(targets []string) error {
	if chdir != "" {
		if err := os.Chdir(chdir); err != nil {
			return err
		}
	}

	spec, err := anvil.ReadSpecFile(buildFile)
	if err != nil {
		return err
	}

	buildDir := spec.BuildDir
	logPath := ".ninja_log"
	depsPath := ".ninja_deps"
	if spec.HasBuildDir {
		logPath = filepath.Join(buildDir, logPath)
		depsPath = filepath.Join(buildDir, depsPath)
	}

	buildLog, warning, err := anvil.LoadBuildLog(logPath)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Fprintf(os.Stderr, "anvilbuild: warning: %s\n", warning)
	}

	depLogWriter, err := anvil.OpenDepLogWriter(depsPath)
	if err != nil {
		return err
	}
	defer depLogWriter.Close()

	index := anvil.BuildIndex(spec)
	targetTasks, err := anvil.ResolveTargets(spec, index, targets)
	if err != nil {
		return err
	}
	if len(targetTasks) == 0 {
		fmt.Fprintln(os.Stderr, "anvilbuild: nothing to do")
		return nil
	}

	queue := anvil.Plan(spec, index, depLogWriter.Log(), targetTasks)
	if queue.NLeft() == 0 {
		fmt.Println("anvilbuild: no work to do")
		return nil
	}

	if dryRun {
		return dryRunQueue(queue, spec)
	}

	async := anvil.NewAsyncBuildQueue(queue)
	pool := anvil.NewPool(async, spec.BuildRules, depLogWriter, buildLog)
	if verbose {
		pool.OnOutput = func(task int, ev anvil.OutputEvent) {
			os.Stdout.Write(ev.Data)
		}
	}

	buildErr := pool.Run(jobs)

	if err := buildLog.Write(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "anvilbuild: warning: failed to write build log: %s\n", err)
	}

	return buildErr
}

// dryRunQueue walks the queue exactly like a real build, printing what
// would run without spawning anything, so -n reports the same set of
// outdated tasks a real invocation would execute.
func dryRunQueue(queue *anvil.BuildQueue, spec *anvil.Spec) error {
	for {
		task := queue.Next()
		if task < 0 {
			break
		}
		rule := spec.BuildRules[task]
		if rule.Command != nil {
			fmt.Println(rule.Command.Command)
		}
		queue.CompleteTask(task, nil)
	}
	return nil
}
