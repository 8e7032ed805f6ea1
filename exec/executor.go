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

// Package exec runs query work on a bounded worker pool.
package exec

import (
	"context"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/util/taskpool"

	"github.com/criticalboot/influxdb/errors"
)

const defaultConcurrency = 4

type Config struct {
	Concurrency int `json:"concurrency"`
}

// Executor schedules query tasks. It is shared by every namespace handle
// issued by the querier database.
type Executor struct {
	pool   taskpool.TaskPool
	closed int32
}

func New(cfg *Config) *Executor {
	concurrency := defaultConcurrency
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	return &Executor{
		pool: taskpool.New(concurrency, concurrency),
	}
}

// Run schedules fn without waiting for it.
func (e *Executor) Run(fn func()) error {
	if atomic.LoadInt32(&e.closed) == 1 {
		return errors.ErrExecutorClosed
	}
	e.pool.Run(fn)
	return nil
}

// RunWait schedules fn and waits until it finished or ctx is done. When
// ctx wins, fn still runs to completion on the pool.
func (e *Executor) RunWait(ctx context.Context, fn func()) error {
	if atomic.LoadInt32(&e.closed) == 1 {
		return errors.ErrExecutorClosed
	}
	done := make(chan struct{})
	e.pool.Run(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) Close() {
	if atomic.CompareAndSwapInt32(&e.closed, 0, 1) {
		e.pool.Close()
	}
}
