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

package querier

import (
	"context"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/chunk"
	"github.com/criticalboot/influxdb/exec"
	"github.com/criticalboot/influxdb/ingester"
	"github.com/criticalboot/influxdb/querylog"
)

// Namespace is one admitted, schema-resolved view of a namespace. It owns
// exactly one admission permit; Close returns the permit to the budget and
// is the only way to do so. Handles are not reused.
type Namespace struct {
	name   string
	schema *catalog.NamespaceSchema

	chunkAdapter *chunk.Adapter
	exec         *exec.Executor
	ingesterConn ingester.Connection
	queryLog     *querylog.QueryLog

	permit *permit
}

func newNamespace(d *Database, name string, schema *catalog.NamespaceSchema, p *permit) *Namespace {
	return &Namespace{
		name:         name,
		schema:       schema,
		chunkAdapter: d.chunkAdapter,
		exec:         d.exec,
		ingesterConn: d.ingesterConn,
		queryLog:     d.queryLog,
		permit:       p,
	}
}

func (ns *Namespace) Name() string {
	return ns.name
}

// Schema returns the snapshot resolved at admission time.
func (ns *Namespace) Schema() *catalog.NamespaceSchema {
	return ns.schema
}

// Chunks returns the persisted chunks of one table, freshly listed from
// the catalog against the admitted schema snapshot.
func (ns *Namespace) Chunks(ctx context.Context, table string) ([]*chunk.Chunk, error) {
	return ns.chunkAdapter.Chunks(ctx, ns.schema, table)
}

// UnpersistedPartitions returns the namespace data still held only by the
// ingesters.
func (ns *Namespace) UnpersistedPartitions(ctx context.Context) ([]ingester.Partition, error) {
	return ns.ingesterConn.UnpersistedPartitions(ctx, ns.name)
}

// RecordQuery publishes a query log entry for this namespace. The caller
// completes the entry when the query finishes.
func (ns *Namespace) RecordQuery(queryType, queryText string) *querylog.Entry {
	return ns.queryLog.Push(ns.name, queryType, queryText)
}

func (ns *Namespace) Exec() *exec.Executor {
	return ns.exec
}

// Close releases the admission permit. Closing twice is safe; the permit
// returns at most once.
func (ns *Namespace) Close() {
	ns.permit.Release()
}
