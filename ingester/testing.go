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

package ingester

import (
	"context"
	"sync"
)

// TestConnection is an in-memory Connection for tests and local runs.
type TestConnection struct {
	partitions map[string][]Partition
	lock       sync.RWMutex
}

func NewTestConnection() *TestConnection {
	return &TestConnection{partitions: make(map[string][]Partition)}
}

func (c *TestConnection) SetPartitions(namespace string, partitions []Partition) {
	c.lock.Lock()
	c.partitions[namespace] = partitions
	c.lock.Unlock()
}

func (c *TestConnection) UnpersistedPartitions(ctx context.Context, namespace string) ([]Partition, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]Partition(nil), c.partitions[namespace]...), nil
}

func (c *TestConnection) Close() error { return nil }
