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

// Package server assembles the querier process: catalog, cache, storage,
// executor, ingester connection and the querier database itself.
package server

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/catalog/cache"
	"github.com/criticalboot/influxdb/catalog/kv"
	"github.com/criticalboot/influxdb/exec"
	"github.com/criticalboot/influxdb/ingester"
	"github.com/criticalboot/influxdb/metrics"
	"github.com/criticalboot/influxdb/querier"
	"github.com/criticalboot/influxdb/querylog"
	"github.com/criticalboot/influxdb/store"
)

const defaultMaxConcurrentQueries = 1024

type Config struct {
	// CatalogConfig selects the local kv catalog when a path is set;
	// otherwise the process runs on the in-memory catalog.
	CatalogConfig kv.Config         `json:"catalog"`
	CacheConfig   cache.Config      `json:"cache"`
	StoreConfig   store.LimitConfig `json:"store_limits"`
	ExecConfig    exec.Config       `json:"exec"`

	// IngesterConfig is optional; with no addresses the querier serves
	// persisted data only.
	IngesterConfig ingester.Config `json:"ingester"`

	MaxConcurrentQueries int `json:"max_concurrent_queries"`
}

type Server struct {
	catalog      catalog.Catalog
	catalogCache *cache.CatalogCache
	executor     *exec.Executor
	ingesterConn ingester.Connection
	db           *querier.Database
}

func NewServer(cfg *Config) (*Server, error) {
	if cfg.MaxConcurrentQueries <= 0 {
		cfg.MaxConcurrentQueries = defaultMaxConcurrentQueries
	}

	var (
		backing catalog.Catalog
		err     error
	)
	if cfg.CatalogConfig.Path != "" {
		backing, err = kv.NewCatalog(context.Background(), &cfg.CatalogConfig)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("no catalog path configured, using the in-memory catalog")
		backing = catalog.NewMemCatalog()
	}

	var ingesterConn ingester.Connection
	if cfg.IngesterConfig.Addresses != "" {
		ingesterConn, err = ingester.NewConnection(&cfg.IngesterConfig)
		if err != nil {
			backing.Close()
			return nil, err
		}
	} else {
		log.Warn("no ingester addresses configured, serving persisted data only")
		ingesterConn = ingester.NewNoopConnection()
	}

	catalogCache := cache.NewCatalogCache(backing, &cfg.CacheConfig)
	storage := store.NewParquetStorage(store.NewMemObjectStore(), cfg.StoreConfig)
	executor := exec.New(&cfg.ExecConfig)

	db := querier.New(
		catalogCache,
		metrics.Registry,
		storage,
		executor,
		ingesterConn,
		cfg.MaxConcurrentQueries,
	)

	return &Server{
		catalog:      backing,
		catalogCache: catalogCache,
		executor:     executor,
		ingesterConn: ingesterConn,
		db:           db,
	}, nil
}

func (s *Server) Database() *querier.Database {
	return s.db
}

// ListNamespaces reads the namespace set through the database listing
// path, catalog-fresh and retried.
func (s *Server) ListNamespaces(ctx context.Context) ([]*catalog.Namespace, error) {
	return s.db.ListNamespaces(ctx)
}

// NamespaceSchema admits the namespace for the duration of the call and
// returns its schema snapshot.
func (s *Server) NamespaceSchema(ctx context.Context, name string) (*catalog.NamespaceSchema, error) {
	ns, err := s.db.GetNamespace(ctx, name)
	if err != nil {
		return nil, err
	}
	defer ns.Close()
	return ns.Schema(), nil
}

// TableSummary describes the persisted and unpersisted state of one table.
type TableSummary struct {
	Namespace       string `json:"namespace"`
	Table           string `json:"table"`
	ChunkCount      int    `json:"chunk_count"`
	PersistedRows   int64  `json:"persisted_rows"`
	UnpersistedRows int64  `json:"unpersisted_rows"`
	PartitionCount  int    `json:"partition_count"`
	PersistedBytes  int64  `json:"persisted_bytes"`
}

// GetTableSummary admits the namespace, then gathers chunk and partition
// state on the query executor while the handle holds the permit.
func (s *Server) GetTableSummary(ctx context.Context, namespace, table string) (*TableSummary, error) {
	ns, err := s.db.GetNamespace(ctx, namespace)
	if err != nil {
		return nil, err
	}
	defer ns.Close()

	entry := ns.RecordQuery("table_summary", table)
	summary := &TableSummary{Namespace: namespace, Table: table}
	var chunkErr, partErr error
	err = ns.Exec().RunWait(ctx, func() {
		chunks, err := ns.Chunks(ctx, table)
		if err != nil {
			chunkErr = err
			return
		}
		for _, c := range chunks {
			summary.ChunkCount++
			summary.PersistedRows += c.File.RowCount
			summary.PersistedBytes += c.File.SizeBytes
		}

		partitions, err := ns.UnpersistedPartitions(ctx)
		if err != nil {
			partErr = err
			return
		}
		for _, p := range partitions {
			if p.TableName != table {
				continue
			}
			summary.PartitionCount++
			summary.UnpersistedRows += p.RowCount
		}
	})
	if err == nil {
		err = chunkErr
	}
	if err == nil {
		err = partErr
	}
	entry.Complete(err == nil)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// QueryLogEntries returns the recent query activity, optionally filtered
// by namespace.
func (s *Server) QueryLogEntries(namespace string) []*querylog.Entry {
	return s.db.QueryLog().Entries(namespace)
}

func (s *Server) Close() {
	s.executor.Close()
	if err := s.ingesterConn.Close(); err != nil {
		log.Warnf("closing ingester connection: %s", err)
	}
	s.catalog.Close()
}
