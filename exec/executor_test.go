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

package exec

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/criticalboot/influxdb/errors"
)

func TestRun(t *testing.T) {
	e := New(&Config{Concurrency: 2})
	defer e.Close()

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, e.Run(func() {
			defer wg.Done()
			atomic.AddInt32(&done, 1)
		}))
	}
	wg.Wait()
	require.EqualValues(t, 8, atomic.LoadInt32(&done))
}

func TestRunWait(t *testing.T) {
	e := New(nil)
	defer e.Close()

	var ran bool
	require.NoError(t, e.RunWait(context.Background(), func() { ran = true }))
	require.True(t, ran)
}

func TestRunWaitCancelled(t *testing.T) {
	e := New(&Config{Concurrency: 1})
	defer e.Close()

	release := make(chan struct{})
	require.NoError(t, e.Run(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.RunWait(ctx, func() {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestClosedExecutor(t *testing.T) {
	e := New(nil)
	e.Close()

	require.ErrorIs(t, e.Run(func() {}), errors.ErrExecutorClosed)
	require.ErrorIs(t, e.RunWait(context.Background(), func() {}), errors.ErrExecutorClosed)
}
