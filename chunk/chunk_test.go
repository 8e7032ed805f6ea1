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

package chunk_test

import (
	"context"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/catalog/cache"
	"github.com/criticalboot/influxdb/chunk"
	apierrors "github.com/criticalboot/influxdb/errors"
	"github.com/criticalboot/influxdb/store"
)

func TestAdapterChunks(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemCatalog()
	defer cat.Close()

	ns, err := cat.CreateNamespace(ctx, "ns1", 0)
	require.NoError(t, err)
	table, err := cat.UpsertTable(ctx, "ns1", "cpu", map[string]catalog.ColumnType{
		"host": catalog.ColumnTypeTag,
		"time": catalog.ColumnTypeTime,
	})
	require.NoError(t, err)

	objects := store.NewMemObjectStore()
	storage := store.NewParquetStorage(objects, store.LimitConfig{})

	// Second file added first to prove the oldest-first ordering.
	f2, err := cat.AddParquetFile(ctx, &catalog.ParquetFile{
		NamespaceID: ns.ID,
		TableID:     table.ID,
		TableName:   "cpu",
		RowCount:    20,
	})
	require.NoError(t, err)
	f1, err := cat.AddParquetFile(ctx, &catalog.ParquetFile{
		NamespaceID: ns.ID,
		TableID:     table.ID,
		TableName:   "cpu",
		RowCount:    10,
	})
	require.NoError(t, err)
	require.Greater(t, f1.ID, f2.ID)

	require.NoError(t, storage.Put(ctx, storage.Path(f2), []byte("old-bytes")))
	require.NoError(t, storage.Put(ctx, storage.Path(f1), []byte("new-bytes")))

	catalogCache := cache.NewCatalogCache(cat, nil)
	adapter := chunk.NewAdapter(catalogCache, storage)

	schema, err := catalogCache.Schema(ctx, "ns1")
	require.NoError(t, err)

	chunks, err := adapter.Chunks(ctx, schema, "cpu")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, f2.ID, chunks[0].File.ID)
	require.Equal(t, f1.ID, chunks[1].File.ID)
	require.Equal(t, schema.Tables["cpu"], chunks[0].Schema)

	rc, err := chunks[0].Open(ctx)
	require.NoError(t, err)
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "old-bytes", string(data))
}

func TestAdapterChunksUnknownTable(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemCatalog()
	defer cat.Close()

	_, err := cat.CreateNamespace(ctx, "ns1", 0)
	require.NoError(t, err)

	catalogCache := cache.NewCatalogCache(cat, nil)
	storage := store.NewParquetStorage(store.NewMemObjectStore(), store.LimitConfig{})
	adapter := chunk.NewAdapter(catalogCache, storage)

	schema, err := catalogCache.Schema(ctx, "ns1")
	require.NoError(t, err)

	_, err = adapter.Chunks(ctx, schema, "nope")
	require.ErrorIs(t, err, apierrors.ErrTableNotExist)
}
