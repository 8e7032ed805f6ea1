/*
 *
 * Copyright 2023 The InfluxDB Authors.
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
 *
 */

/*

# Querier: the read tier of a multi-tenant time series database

## Data Model

* Namespace, the logical tenant database. Clients always ask for one by name.

* Table and Column, the schema a namespace carries. The querier only ever
reads schema snapshots; writes happen elsewhere.

* Parquet file, one persisted unit of table data in object storage.

* Chunk, the read-ready view over one parquet file.

## Architecture

The querier sits in front of the catalog, the object store, and the
ingester fleet:

* catalog - the durable namespace/schema/file record, consumed through a
narrow interface with in-memory and rocksdb implementations

* querier - the admission gate. Every namespace request first takes one
permit from a process-wide semaphore; only then is the schema resolved.
The returned handle owns its permit and returns it on Close.

* ingester connection - gRPC access to data that has not been persisted
yet

* exec - the bounded worker pool query work runs on

Every querier process provides endpoints via gRPC & RESTful API.

## Building Blocks

* gRPC
* Rocksdb
* Prometheus

*/

package influxdb
