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
	"fmt"
	"sync"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// TaskState is the lifecycle state of a Task inside a BuildQueue.
type TaskState int

const (
	// NotNeeded: the task is not in the dependency tree of the
	// requested targets.
	NotNeeded TaskState = iota
	// WillBeNeeded only exists transiently while BuildQueue's
	// constructor is still walking the dependency graph.
	WillBeNeeded
	// Needed: the task is in the dependency tree. See the Phony and
	// Outdated fields for whether it still needs work.
	Needed
	// Running: next() has handed this task to a worker.
	Running
	// Finished: complete_task has been called for this task.
	Finished
	// NotRun: the task was Needed but turned out not to be outdated.
	NotRun
	// PhonyFinished: a phony task whose dependents are now unblocked.
	PhonyFinished
)

func (s TaskState) String() string {
	switch s {
	case NotNeeded:
		return "NotNeeded"
	case WillBeNeeded:
		return "WillBeNeeded"
	case Needed:
		return "Needed"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	case NotRun:
		return "NotRun"
	case PhonyFinished:
		return "PhonyFinished"
	default:
		return "unknown"
	}
}

// depInfo is one forward (dependency -> dependent) edge.
type depInfo struct {
	task      int
	orderOnly bool
}

// Task is the BuildQueue's exclusively-owned per-task bookkeeping:
// current state, who depends on it, and how many of its own
// dependencies are still outstanding.
type Task struct {
	State     TaskState
	Phony     bool
	Outdated  bool
	StartTime time.Time
	Duration  time.Duration
	next      []depInfo
	nDepsLeft int
}

// TaskInfo is what GetTaskFunc reports about one task: whether it is
// phony, whether it is already known outdated, and which other tasks
// it depends on.
type TaskInfo struct {
	Phony        bool
	Outdated     bool
	Dependencies []depInfo
}

// Dep constructs a dependency edge for a TaskInfo's Dependencies list.
func Dep(task int, orderOnly bool) depInfo { return depInfo{task: task, orderOnly: orderOnly} }

// GetTaskFunc supplies the BuildQueue constructor with everything it
// needs to know about one task. It is invoked exactly once per task
// reachable from the requested targets.
type GetTaskFunc func(task int) TaskInfo

// BuildQueue is the DAG scheduler: it knows nothing about what a task
// actually does, only task numbers, their phoniness, and their
// dependency edges.
type BuildQueue struct {
	tasks []Task
	ready []int
	nLeft int
}

// NewBuildQueue walks the reverse dependency graph starting at targets,
// calling getTask exactly once per reachable task, and returns a queue
// with every zero-dependency task already classified (NotRun,
// PhonyFinished, or ready).
func NewBuildQueue(maxTaskNum int, targets []int, getTask GetTaskFunc) *BuildQueue {
	q := &BuildQueue{tasks: make([]Task, maxTaskNum)}

	var toVisit []int
	for _, t := range targets {
		if q.tasks[t].State == NotNeeded {
			q.tasks[t].State = WillBeNeeded
			toVisit = append(toVisit, t)
		}
	}

	var finished []int
	for len(toVisit) > 0 {
		task := toVisit[len(toVisit)-1]
		toVisit = toVisit[:len(toVisit)-1]
		if q.tasks[task].State != WillBeNeeded {
			continue
		}

		info := getTask(task)
		for _, dep := range info.Dependencies {
			if q.tasks[dep.task].State == NotNeeded {
				q.tasks[dep.task].State = WillBeNeeded
				toVisit = append(toVisit, dep.task)
			}
			q.tasks[dep.task].next = append(q.tasks[dep.task].next, depInfo{task: task, orderOnly: dep.orderOnly})
		}

		q.tasks[task].State = Needed
		q.tasks[task].Phony = info.Phony
		q.tasks[task].Outdated = info.Outdated
		q.tasks[task].nDepsLeft = len(info.Dependencies)
		if !info.Phony {
			q.nLeft++
		}

		if q.tasks[task].nDepsLeft == 0 {
			switch {
			case !info.Outdated:
				if !info.Phony {
					q.nLeft--
				}
				q.tasks[task].State = NotRun
				finished = append(finished, task)
			case info.Phony:
				q.tasks[task].State = PhonyFinished
				finished = append(finished, task)
			default:
				q.ready = append(q.ready, task)
			}
		}
	}

	for len(finished) > 0 {
		task := finished[len(finished)-1]
		finished = finished[:len(finished)-1]
		q.updateFinishedTask(task, &finished, nil)
	}

	return q
}

// Next pops a ready task, marking it Running. It never returns a phony
// task. Returns -1 when nothing is currently ready.
func (q *BuildQueue) Next() int {
	return q.nextAt(time.Now())
}

func (q *BuildQueue) nextAt(start time.Time) int {
	if len(q.ready) == 0 {
		return -1
	}
	task := q.ready[len(q.ready)-1]
	q.ready = q.ready[:len(q.ready)-1]

	t := &q.tasks[task]
	if t.nDepsLeft != 0 {
		panic(fmt.Sprintf("task %d popped from ready with nDepsLeft=%d", task, t.nDepsLeft))
	}
	if t.State != Needed || t.Phony || !t.Outdated {
		panic(fmt.Sprintf("task %d popped from ready in state %v phony=%v outdated=%v", task, t.State, t.Phony, t.Outdated))
	}
	t.State = Running
	t.StartTime = start
	q.nLeft--
	return task
}

// RestatFunc is consulted for a not-yet-outdated dependent of a task
// that actually ran: it returns whether the dependent should now be
// considered outdated. A nil RestatFunc means "always outdated",
// matching complete_task's default when no restat callback is given.
type RestatFunc func(task int) bool

// CompleteTask marks task (which must be Running) Finished, then
// drains completion through the graph: each dependent's nDepsLeft is
// decremented, restat is consulted for non-order-only dependents of a
// task that really executed, and any dependent reaching zero remaining
// deps is classified exactly as at construction. Returns the number of
// non-phony tasks newly moved to ready.
func (q *BuildQueue) CompleteTask(task int, restat RestatFunc) int {
	return q.completeTaskAt(task, restat, time.Now())
}

func (q *BuildQueue) completeTaskAt(task int, restat RestatFunc, finish time.Time) int {
	t := &q.tasks[task]
	if t.State != Running {
		panic(fmt.Sprintf("CompleteTask(%d) on task in state %v, want Running", task, t.State))
	}
	t.Duration = finish.Sub(t.StartTime)
	t.State = Finished

	newlyReady := 0
	var newlyFinished []int
	newlyReady += q.updateFinishedTask(task, &newlyFinished, restat)
	for len(newlyFinished) > 0 {
		next := newlyFinished[len(newlyFinished)-1]
		newlyFinished = newlyFinished[:len(newlyFinished)-1]
		newlyReady += q.updateFinishedTask(next, &newlyFinished, nil)
	}
	return newlyReady
}

func (q *BuildQueue) updateFinishedTask(task int, newlyFinished *[]int, restat RestatFunc) int {
	t := &q.tasks[task]
	var didRun bool
	switch t.State {
	case NotRun:
		didRun = false
	case PhonyFinished, Finished:
		didRun = true
	default:
		panic(fmt.Sprintf("task %d was not finished: state %v", task, t.State))
	}

	deps := t.next
	t.next = nil

	newlyReady := 0
	for _, dep := range deps {
		next := &q.tasks[dep.task]
		if next.State != Needed {
			panic(fmt.Sprintf("task %d in next-list of %d was not Needed: %v", dep.task, task, next.State))
		}
		if didRun && !dep.orderOnly && !next.Outdated {
			if restat != nil {
				next.Outdated = restat(dep.task)
			} else {
				next.Outdated = true
			}
		}
		next.nDepsLeft--
		if next.nDepsLeft == 0 {
			switch {
			case !next.Outdated:
				if !next.Phony {
					q.nLeft--
				}
				next.State = NotRun
				*newlyFinished = append(*newlyFinished, dep.task)
			case next.Phony:
				next.State = PhonyFinished
				*newlyFinished = append(*newlyFinished, dep.task)
			default:
				q.ready = append(q.ready, dep.task)
				newlyReady++
			}
		}
	}
	return newlyReady
}

// State returns task's current lifecycle state.
func (q *BuildQueue) State(task int) TaskState { return q.tasks[task].State }

// NLeft returns the number of non-phony tasks still Needed and not yet
// handed out. Next decrements it, so Running tasks are not counted.
func (q *BuildQueue) NLeft() int { return q.nLeft }

// AsyncBuildQueue wraps a BuildQueue behind a mutex and condition
// variable so a worker pool can pull tasks and signal completions
// across goroutines.
type AsyncBuildQueue struct {
	mu      deadlock.Mutex
	cond    *sync.Cond
	queue   *BuildQueue
	aborted bool
}

// NewAsyncBuildQueue wraps queue for concurrent use.
func NewAsyncBuildQueue(queue *BuildQueue) *AsyncBuildQueue {
	a := &AsyncBuildQueue{queue: queue}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Next is the non-blocking pop: it returns -1 immediately if nothing is
// ready.
func (a *AsyncBuildQueue) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	task := a.queue.Next()
	if task >= 0 && a.queue.NLeft() == 0 {
		a.cond.Broadcast()
	}
	return task
}

// Wait blocks until a task is ready, no task is left to hand out (NLeft
// reaches 0; tasks handed out earlier may still be running), or the
// queue has been Abort()ed; all three return -1 except the ready case.
func (a *AsyncBuildQueue) Wait() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.queue.ready) == 0 && a.queue.NLeft() > 0 && !a.aborted {
		a.cond.Wait()
	}
	if a.aborted {
		return -1
	}
	task := a.queue.Next()
	if task >= 0 && a.queue.NLeft() == 0 {
		a.cond.Broadcast()
	}
	return task
}

// Abort wakes every waiter with no further task to hand out. The
// BuildQueue itself has no notion of cancellation; this is the hook
// the worker pool uses to stop the other workers once one task's
// subprocess has failed, since a failed task aborts the whole build.
func (a *AsyncBuildQueue) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aborted = true
	a.cond.Broadcast()
}

// CompleteTask reports task as finished and notifies exactly one
// waiter per newly-ready task, or every waiter once the build is
// entirely done.
func (a *AsyncBuildQueue) CompleteTask(task int, restat RestatFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.queue.CompleteTask(task, restat)
	if a.queue.NLeft() == 0 {
		a.cond.Broadcast()
	} else {
		for i := 0; i < n; i++ {
			a.cond.Signal()
		}
	}
}

// NLeft returns the number of non-phony tasks not yet handed out.
func (a *AsyncBuildQueue) NLeft() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.NLeft()
}

// Snapshot returns a copy of the task states, for a status thread to
// inspect without blocking workers.
func (a *AsyncBuildQueue) Snapshot() []Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Task, len(a.queue.tasks))
	copy(out, a.queue.tasks)
	return out
}
