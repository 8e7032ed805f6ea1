// Copyright 2023 The InfluxDB Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package querylog keeps a fixed size circular log of query activity.
// The log is shared between all namespaces and filtered on read.
package querylog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded query. Completion fields are updated after the
// entry was published, so they are atomics.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Namespace string    `json:"namespace"`
	QueryType string    `json:"query_type"`
	QueryText string    `json:"query_text"`
	IssueTime time.Time `json:"issue_time"`

	completed int32
	success   int32
	runNanos  int64
}

// Complete marks the entry finished and records the outcome.
func (e *Entry) Complete(success bool) {
	atomic.StoreInt64(&e.runNanos, int64(time.Since(e.IssueTime)))
	if success {
		atomic.StoreInt32(&e.success, 1)
	}
	atomic.StoreInt32(&e.completed, 1)
}

func (e *Entry) Completed() bool {
	return atomic.LoadInt32(&e.completed) == 1
}

func (e *Entry) Success() bool {
	return atomic.LoadInt32(&e.success) == 1
}

func (e *Entry) RunDuration() time.Duration {
	return time.Duration(atomic.LoadInt64(&e.runNanos))
}

// QueryLog is a ring of the most recent entries. Pushing beyond the
// capacity overwrites the oldest entry.
type QueryLog struct {
	capacity int

	entries []*Entry
	next    int
	full    bool
	lock    sync.Mutex
}

func New(capacity int) *QueryLog {
	return &QueryLog{
		capacity: capacity,
		entries:  make([]*Entry, capacity),
	}
}

// Push records a query and returns the live entry so the caller can
// complete it later.
func (l *QueryLog) Push(namespace, queryType, queryText string) *Entry {
	e := &Entry{
		ID:        uuid.New(),
		Namespace: namespace,
		QueryType: queryType,
		QueryText: queryText,
		IssueTime: time.Now(),
	}
	l.lock.Lock()
	l.entries[l.next] = e
	l.next++
	if l.next == l.capacity {
		l.next = 0
		l.full = true
	}
	l.lock.Unlock()
	return e
}

// Entries returns a snapshot of the log, oldest first. The namespace
// filter is optional.
func (l *QueryLog) Entries(namespace string) []*Entry {
	l.lock.Lock()
	defer l.lock.Unlock()

	var ordered []*Entry
	if l.full {
		ordered = append(ordered, l.entries[l.next:]...)
	}
	ordered = append(ordered, l.entries[:l.next]...)

	if namespace == "" {
		return ordered
	}
	ret := ordered[:0]
	for _, e := range ordered {
		if e.Namespace == namespace {
			ret = append(ret, e)
		}
	}
	return ret
}
