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

// Package querier is the entry point of the query tier. The database it
// exposes admits namespace requests under one global concurrency budget
// and hands out schema-resolved namespace handles.
package querier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/catalog/cache"
	"github.com/criticalboot/influxdb/chunk"
	apierrors "github.com/criticalboot/influxdb/errors"
	"github.com/criticalboot/influxdb/exec"
	"github.com/criticalboot/influxdb/ingester"
	"github.com/criticalboot/influxdb/querylog"
	"github.com/criticalboot/influxdb/store"
)

// MaxConcurrentQueriesMax is the largest admissible concurrency budget.
// The limit keeps the semaphore weight far away from the int64 range where
// arithmetic around pending acquires could overflow, and mirrors the
// ceiling enforced by querier deployments before this one.
const MaxConcurrentQueriesMax = math.MaxUint16

// The number of entries to store in the circular query log.
//
// That log is shared between all namespaces and filtered on read.
const queryLogSize = 10_000

// BackoffConfig shapes the retry delays of catalog reads on the listing
// path.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func defaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Database contains all namespaces the querier serves. It is built once at
// startup and read-only afterwards; all mutable state lives in the
// semaphore and the caches it references.
type Database struct {
	backoffConfig BackoffConfig

	catalogCache *cache.CatalogCache
	chunkAdapter *chunk.Adapter
	registry     *prometheus.Registry
	exec         *exec.Executor
	ingesterConn ingester.Connection
	queryLog     *querylog.QueryLog

	// querySemaphore bounds the number of live namespace handles; one
	// handle per active query, so requesting the same namespace twice
	// counts twice.
	querySemaphore *semaphore.Weighted

	permitsInUse prometheus.Gauge
	notFound     prometheus.Counter
}

// New builds the database. maxConcurrentQueries above
// MaxConcurrentQueriesMax is a configuration fault and panics before any
// I/O happens; the process should not start.
func New(
	catalogCache *cache.CatalogCache,
	registry *prometheus.Registry,
	storage store.ParquetStorage,
	executor *exec.Executor,
	ingesterConn ingester.Connection,
	maxConcurrentQueries int,
) *Database {
	if maxConcurrentQueries > MaxConcurrentQueriesMax {
		panic(fmt.Sprintf("max_concurrent_queries (%d) > max_concurrent_queries_max (%d)",
			maxConcurrentQueries, MaxConcurrentQueriesMax))
	}

	permitsInUse := registerOrReuse(registry, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "Querier",
		Name:      "query_permits_in_use",
		Help:      "Number of admission permits currently held by namespace handles.",
	})).(prometheus.Gauge)
	notFound := registerOrReuse(registry, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "Querier",
		Name:      "namespace_not_found_total",
		Help:      "Number of namespace requests that resolved to an unknown namespace.",
	})).(prometheus.Counter)

	return &Database{
		backoffConfig:  defaultBackoffConfig(),
		catalogCache:   catalogCache,
		chunkAdapter:   chunk.NewAdapter(catalogCache, storage),
		registry:       registry,
		exec:           executor,
		ingesterConn:   ingesterConn,
		queryLog:       querylog.New(queryLogSize),
		querySemaphore: semaphore.NewWeighted(int64(maxConcurrentQueries)),
		permitsInUse:   permitsInUse,
		notFound:       notFound,
	}
}

// registerOrReuse keeps databases sharing one registry, as in the running
// process, from clashing over the same collector.
func registerOrReuse(registry *prometheus.Registry, c prometheus.Collector) prometheus.Collector {
	if err := registry.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// GetNamespace admits one query against the namespace and returns its
// handle. The call suspends until a unit of the concurrency budget is
// free; existence of the namespace is checked AFTER the permit was
// acquired since this lowers the chance of acting on stale data.
//
// An unknown namespace returns errors.ErrNamespaceNotExist and consumes no
// lasting capacity. Cancelling ctx while waiting returns ctx.Err(), also
// without consuming capacity. The returned handle must be closed.
func (d *Database) GetNamespace(ctx context.Context, name string) (*Namespace, error) {
	if err := d.querySemaphore.Acquire(ctx, 1); err != nil {
		// never acquired, nothing to release
		return nil, err
	}
	p := d.newPermit()

	schema, err := d.catalogCache.Schema(ctx, name)
	if err != nil {
		p.Release()
		if errors.Is(err, apierrors.ErrNamespaceNotExist) {
			d.notFound.Inc()
		}
		return nil, err
	}

	return newNamespace(d, name, schema, p), nil
}

// ListNamespaces returns every namespace the catalog currently knows,
// straight from the catalog with no semaphore involvement. Transient
// catalog errors are retried with exponential backoff for as long as ctx
// lives; bounded latency is the caller's business.
func (d *Database) ListNamespaces(ctx context.Context) ([]*catalog.Namespace, error) {
	span := trace.SpanFromContextSafe(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.backoffConfig.InitialInterval
	bo.MaxInterval = d.backoffConfig.MaxInterval
	bo.MaxElapsedTime = 0 // retry forever

	var namespaces []*catalog.Namespace
	err := backoff.RetryNotify(
		func() error {
			var err error
			namespaces, err = d.catalogCache.Catalog().ListNamespaces(ctx)
			return err
		},
		backoff.WithContext(bo, ctx),
		func(err error, delay time.Duration) {
			span.Warnf("listing namespaces failed, retry in %v: %s", delay, err)
		},
	)
	if err != nil {
		// only reachable through ctx cancellation
		return nil, err
	}
	return namespaces, nil
}

// IngesterConnection returns the shared connection to the ingesters.
func (d *Database) IngesterConnection() ingester.Connection {
	return d.ingesterConn
}

// QueryLog returns the shared query activity log.
func (d *Database) QueryLog() *querylog.QueryLog {
	return d.queryLog
}

func (d *Database) Exec() *exec.Executor {
	return d.exec
}

// permit is one unit of the admission budget. It is owned by exactly one
// namespace handle and returns to the pool at most once.
type permit struct {
	release func()
	once    sync.Once
}

func (d *Database) newPermit() *permit {
	d.permitsInUse.Inc()
	return &permit{
		release: func() {
			d.permitsInUse.Dec()
			d.querySemaphore.Release(1)
		},
	}
}

func (p *permit) Release() {
	p.once.Do(p.release)
}
