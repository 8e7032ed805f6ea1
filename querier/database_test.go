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

package querier_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/catalog/cache"
	apierrors "github.com/criticalboot/influxdb/errors"
	"github.com/criticalboot/influxdb/exec"
	"github.com/criticalboot/influxdb/ingester"
	"github.com/criticalboot/influxdb/querier"
	"github.com/criticalboot/influxdb/store"
)

type testEnv struct {
	catalog  catalog.Catalog
	db       *querier.Database
	executor *exec.Executor
	ingester *ingester.TestConnection
}

func newTestEnv(t *testing.T, backing catalog.Catalog, maxConcurrentQueries int) *testEnv {
	t.Helper()

	if backing == nil {
		backing = catalog.NewMemCatalog()
	}
	catalogCache := cache.NewCatalogCache(backing, &cache.Config{TTLMs: 50})
	storage := store.NewParquetStorage(store.NewMemObjectStore(), store.LimitConfig{})
	executor := exec.New(&exec.Config{Concurrency: 2})
	t.Cleanup(executor.Close)

	conn := ingester.NewTestConnection()
	db := querier.New(
		catalogCache,
		prometheus.NewRegistry(),
		storage,
		executor,
		conn,
		maxConcurrentQueries,
	)
	return &testEnv{catalog: backing, db: db, executor: executor, ingester: conn}
}

func (e *testEnv) createNamespace(t *testing.T, name string) {
	t.Helper()
	_, err := e.catalog.CreateNamespace(context.Background(), name, 0)
	require.NoError(t, err)
}

type getResult struct {
	ns  *querier.Namespace
	err error
}

// goGet issues GetNamespace on its own goroutine and waits until the call
// is underway before returning, so that successive goGet calls enter the
// semaphore wait queue in a deterministic order.
func goGet(db *querier.Database, name string) chan getResult {
	ch := make(chan getResult, 1)
	go func() {
		ns, err := db.GetNamespace(context.Background(), name)
		ch <- getResult{ns: ns, err: err}
	}()
	time.Sleep(50 * time.Millisecond)
	return ch
}

func requirePending(t *testing.T, ch chan getResult) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("request completed unexpectedly: ns=%v err=%v", r.ns, r.err)
	case <-time.After(100 * time.Millisecond):
	}
}

func requireDone(t *testing.T, ch chan getResult) getResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete")
		return getResult{}
	}
}

func TestConcurrencyLimitIsChecked(t *testing.T) {
	backing := catalog.NewMemCatalog()
	catalogCache := cache.NewCatalogCache(backing, nil)
	storage := store.NewParquetStorage(store.NewMemObjectStore(), store.LimitConfig{})
	executor := exec.New(nil)
	defer executor.Close()

	require.NotPanics(t, func() {
		querier.New(catalogCache, prometheus.NewRegistry(), storage, executor,
			ingester.NewTestConnection(), querier.MaxConcurrentQueriesMax)
	})
	require.PanicsWithValue(t,
		"max_concurrent_queries (65536) > max_concurrent_queries_max (65535)",
		func() {
			querier.New(catalogCache, prometheus.NewRegistry(), storage, executor,
				ingester.NewTestConnection(), querier.MaxConcurrentQueriesMax+1)
		})
}

func TestGetNamespace(t *testing.T) {
	env := newTestEnv(t, nil, querier.MaxConcurrentQueriesMax)
	env.createNamespace(t, "ns1")

	ns, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	require.Equal(t, "ns1", ns.Name())
	require.NotNil(t, ns.Schema())
	ns.Close()

	_, err = env.db.GetNamespace(context.Background(), "ns2")
	require.ErrorIs(t, err, apierrors.ErrNamespaceNotExist)
}

func TestGetNamespaceNotFoundKeepsCapacity(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.createNamespace(t, "ns1")

	_, err := env.db.GetNamespace(context.Background(), "ns9")
	require.ErrorIs(t, err, apierrors.ErrNamespaceNotExist)

	// the single permit must still be available
	ns, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	ns.Close()
}

func TestGetNamespaceCancelledWhileWaiting(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.createNamespace(t, "ns1")

	ns, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = env.db.GetNamespace(ctx, "ns1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the abandoned wait consumed nothing
	ns.Close()
	ns2, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	ns2.Close()
}

func TestNamespaceSemaphore(t *testing.T) {
	env := newTestEnv(t, nil, 2)
	env.createNamespace(t, "ns1")
	env.createNamespace(t, "ns2")
	env.createNamespace(t, "ns3")

	// consume both permits
	ns1, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	ns2, err := env.db.GetNamespace(context.Background(), "ns2")
	require.NoError(t, err)

	// no new namespace can be admitted, not even one already held
	fut3 := goGet(env.db, "ns3")
	fut1 := goGet(env.db, "ns1")
	fut9 := goGet(env.db, "ns9")
	fut2 := goGet(env.db, "ns2")
	requirePending(t, fut3)
	requirePending(t, fut1)
	requirePending(t, fut9)
	requirePending(t, fut2)

	// closing a handle admits the earliest waiter
	ns2.Close()
	ns3 := requireDone(t, fut3)
	require.NoError(t, ns3.err)
	requirePending(t, fut1)
	requirePending(t, fut9)
	requirePending(t, fut2)

	ns3.ns.Close()
	ns1b := requireDone(t, fut1)
	require.NoError(t, ns1b.err)
	requirePending(t, fut9)
	requirePending(t, fut2)

	// "ns9" does not exist: its waiter is admitted, resolves to not
	// found, and frees the permit right away for the last waiter
	ns1.Close()
	r9 := requireDone(t, fut9)
	require.ErrorIs(t, r9.err, apierrors.ErrNamespaceNotExist)
	r2 := requireDone(t, fut2)
	require.NoError(t, r2.err)

	ns1b.ns.Close()
	r2.ns.Close()
}

func TestGetNamespaceNoDeduplication(t *testing.T) {
	env := newTestEnv(t, nil, 2)
	env.createNamespace(t, "ns1")

	a, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	b, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	require.NotSame(t, a, b)

	// both permits are gone
	fut := goGet(env.db, "ns1")
	requirePending(t, fut)

	a.Close()
	requireDone(t, fut).ns.Close()
	b.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.createNamespace(t, "ns1")

	ns, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	ns.Close()
	ns.Close()

	// double close released exactly one permit
	a, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	fut := goGet(env.db, "ns1")
	requirePending(t, fut)
	a.Close()
	requireDone(t, fut).ns.Close()
}

// flakyCatalog fails the first failures listing calls.
type flakyCatalog struct {
	catalog.Catalog
	failures int32
}

func (c *flakyCatalog) ListNamespaces(ctx context.Context) ([]*catalog.Namespace, error) {
	if atomic.AddInt32(&c.failures, -1) >= 0 {
		return nil, context.DeadlineExceeded
	}
	return c.Catalog.ListNamespaces(ctx)
}

func TestListNamespaces(t *testing.T) {
	env := newTestEnv(t, nil, 2)
	env.createNamespace(t, "ns1")
	env.createNamespace(t, "ns2")

	namespaces, err := env.db.ListNamespaces(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		names = append(names, ns.Name)
	}
	require.ElementsMatch(t, []string{"ns1", "ns2"}, names)
}

func TestListNamespacesRetriesAndIgnoresSemaphore(t *testing.T) {
	flaky := &flakyCatalog{Catalog: catalog.NewMemCatalog(), failures: 3}
	env := newTestEnv(t, flaky, 1)
	env.createNamespace(t, "ns1")

	// occupy the whole admission budget; listing must not care
	ns, err := env.db.GetNamespace(context.Background(), "ns1")
	require.NoError(t, err)
	defer ns.Close()

	namespaces, err := env.db.ListNamespaces(context.Background())
	require.NoError(t, err)
	require.Len(t, namespaces, 1)
	require.Equal(t, "ns1", namespaces[0].Name)
}

func TestListNamespacesCancellation(t *testing.T) {
	flaky := &flakyCatalog{Catalog: catalog.NewMemCatalog(), failures: 1 << 30}
	env := newTestEnv(t, flaky, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := env.db.ListNamespaces(ctx)
	require.Error(t, err)
}
