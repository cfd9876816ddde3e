/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package booster

import "sync"

// TaskQueue is the FIFO between producers and the dispatcher. Enqueue never blocks.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []*PollTask
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue appends a task to the tail.
func (q *TaskQueue) Enqueue(task *PollTask) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Drain removes up to limit tasks from the head.
func (q *TaskQueue) Drain(limit int) []*PollTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(limit, len(q.tasks))
	if n <= 0 {
		return nil
	}

	out := make([]*PollTask, n)
	copy(out, q.tasks[:n])

	// release references held by the backing array
	for i := range n {
		q.tasks[i] = nil
	}

	q.tasks = q.tasks[n:]

	return out
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}
