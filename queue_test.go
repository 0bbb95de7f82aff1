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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestQueueTwoLevelBuildOrder checks that a.o must be built (and
// returned by next) before a.
func TestQueueTwoLevelBuildOrder(t *testing.T) {
	// task 0 = a.o (outdated, depends on nothing we track here)
	// task 1 = a   (outdated, depends on task 0)
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: false, Outdated: true, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
	}
	q := NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] })

	first := q.Next()
	require.Equal(t, 0, first)
	require.Equal(t, -1, q.Next(), "a must not be ready until a.o completes")

	q.CompleteTask(first, nil)
	second := q.Next()
	require.Equal(t, 1, second)
}

// TestQueuePhonyPassThrough checks that a phony task never comes out of
// Next() itself, only its dependents do once the phony completes.
func TestQueuePhonyPassThrough(t *testing.T) {
	// task 0 = y (cp z, outdated, no deps tracked)
	// task 1 = x (phony, depends on y)
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: true, Outdated: true, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
	}
	q := NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] })

	task := q.Next()
	require.Equal(t, 0, task)
	require.Equal(t, -1, q.Next())

	q.CompleteTask(task, nil)
	require.Equal(t, PhonyFinished, q.State(1))
	require.Equal(t, -1, q.Next(), "phony task must never come out of next()")
}

func TestQueueNotOutdatedBecomesNotRun(t *testing.T) {
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: false},
	}
	q := NewBuildQueue(1, []int{0}, func(task int) TaskInfo { return info[task] })
	require.Equal(t, NotRun, q.State(0))
	require.Equal(t, -1, q.Next())
	require.Equal(t, 0, q.NLeft())
}

func TestQueueRestatSuppressesDependentOutdated(t *testing.T) {
	// task 0 is outdated and restat; task 1 depends on it and starts
	// not-outdated, the way a non-outdated dependent would before any
	// predecessor ran.
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: false, Outdated: false, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
	}
	q := NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] })

	task := q.Next()
	require.Equal(t, 0, task)
	q.CompleteTask(task, func(int) bool { return false })

	require.Equal(t, NotRun, q.State(1), "restat predicate returning false must keep the dependent not-outdated")
}

func TestQueueRestatPropagatesOutdated(t *testing.T) {
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: false, Outdated: false, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
	}
	q := NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] })

	task := q.Next()
	q.CompleteTask(task, func(int) bool { return true })

	second := q.Next()
	require.Equal(t, 1, second, "restat predicate returning true must make the dependent ready")
}

func TestQueueOrderOnlyDependentNeverMarkedOutdatedByCompletion(t *testing.T) {
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: false, Outdated: false, Dependencies: []depInfo{{task: 0, orderOnly: true}}},
	}
	q := NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] })

	task := q.Next()
	// No restat callback given: complete_task's default is "always
	// outdated", but that default only applies to non-order-only edges.
	q.CompleteTask(task, nil)

	require.Equal(t, NotRun, q.State(1))
}

// TestQueueConservationOfTaskCount exercises the conservation invariant:
// next() calls + phony-finished + not-run == visited tasks.
// A phony task's completion counts as "did run" for its own dependents
// (it ran because its own dependency really executed), so task2 here
// ends up run rather than skipped.
func TestQueueConservationOfTaskCount(t *testing.T) {
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: true, Outdated: true, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
		2: {Phony: false, Outdated: false, Dependencies: []depInfo{{task: 1, orderOnly: false}}},
	}
	q := NewBuildQueue(3, []int{2}, func(task int) TaskInfo { return info[task] })

	nextCalls := 0
	for {
		task := q.Next()
		if task < 0 {
			break
		}
		nextCalls++
		q.CompleteTask(task, nil)
	}

	require.Equal(t, 2, nextCalls)
	require.Equal(t, PhonyFinished, q.State(1))
	require.Equal(t, Finished, q.State(2))
	require.Equal(t, 0, q.NLeft())
}

func TestAsyncQueueWaitUnblocksOnCompletion(t *testing.T) {
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: false, Outdated: true, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
	}
	q := NewAsyncBuildQueue(NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] }))

	first := q.Next()
	require.Equal(t, 0, first)

	done := make(chan int, 1)
	go func() { done <- q.Wait() }()

	select {
	case <-done:
		t.Fatal("Wait returned before the blocking dependency completed")
	case <-time.After(20 * time.Millisecond):
	}

	q.CompleteTask(first, nil)

	select {
	case task := <-done:
		require.Equal(t, 1, task)
	case <-time.After(time.Second):
		t.Fatal("Wait never unblocked after CompleteTask")
	}
}

func TestAsyncQueueAbortUnblocksWaiters(t *testing.T) {
	// task1 depends on task0 and is deliberately never completed, so
	// NLeft stays above zero and the ready set stays empty once task0
	// is popped: Wait() has nothing to return except via Abort.
	info := map[int]TaskInfo{
		0: {Phony: false, Outdated: true},
		1: {Phony: false, Outdated: true, Dependencies: []depInfo{{task: 0, orderOnly: false}}},
	}
	q := NewAsyncBuildQueue(NewBuildQueue(2, []int{1}, func(task int) TaskInfo { return info[task] }))
	require.Equal(t, 0, q.Next())

	done := make(chan int, 1)
	go func() { done <- q.Wait() }()

	select {
	case <-done:
		t.Fatal("Wait returned before Abort")
	case <-time.After(20 * time.Millisecond):
	}

	q.Abort()

	select {
	case task := <-done:
		require.Equal(t, -1, task)
	case <-time.After(time.Second):
		t.Fatal("Abort never woke the waiter")
	}
}
