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

// Package ingester connects the query tier to the write ingestion nodes to
// fetch data that has not been persisted to object storage yet.
package ingester

import (
	"context"
)

// Partition is the unpersisted state of one table partition on an ingester.
type Partition struct {
	PartitionKey         string `json:"partition_key"`
	TableName            string `json:"table_name"`
	RowCount             int64  `json:"row_count"`
	MaxPersistedSequence int64  `json:"max_persisted_sequence"`
}

// Connection is the narrow contract the querier holds to the ingesters.
// The querier never inspects the connection; it hands it to every
// namespace it issues.
type Connection interface {
	// UnpersistedPartitions returns the partitions of the namespace that
	// are still only present on the ingesters.
	UnpersistedPartitions(ctx context.Context, namespace string) ([]Partition, error)
	Close() error
}

type noopConnection struct{}

// NewNoopConnection returns a connection for deployments without
// ingesters; every namespace reports no unpersisted data.
func NewNoopConnection() Connection {
	return noopConnection{}
}

func (noopConnection) UnpersistedPartitions(ctx context.Context, namespace string) ([]Partition, error) {
	return nil, nil
}

func (noopConnection) Close() error { return nil }
