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

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/criticalboot/influxdb/errors"
)

func TestMemCatalogNamespaces(t *testing.T) {
	ctx := context.Background()
	c := NewMemCatalog()
	defer c.Close()

	ns, err := c.CreateNamespace(ctx, "ns1", 3600)
	require.NoError(t, err)
	require.Equal(t, "ns1", ns.Name)
	require.NotZero(t, ns.ID)

	_, err = c.CreateNamespace(ctx, "ns1", 0)
	require.ErrorIs(t, err, errors.ErrNamespaceAlreadyExists)

	got, err := c.GetNamespaceByName(ctx, "ns1")
	require.NoError(t, err)
	require.Equal(t, ns.ID, got.ID)

	_, err = c.GetNamespaceByName(ctx, "ns2")
	require.ErrorIs(t, err, errors.ErrNamespaceNotExist)

	_, err = c.CreateNamespace(ctx, "ns2", 0)
	require.NoError(t, err)
	all, err := c.ListNamespaces(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemCatalogSchema(t *testing.T) {
	ctx := context.Background()
	c := NewMemCatalog()
	defer c.Close()

	_, err := c.GetSchemaByName(ctx, "ns1")
	require.ErrorIs(t, err, errors.ErrNamespaceNotExist)

	_, err = c.CreateNamespace(ctx, "ns1", 0)
	require.NoError(t, err)

	schema, err := c.GetSchemaByName(ctx, "ns1")
	require.NoError(t, err)
	require.Empty(t, schema.Tables)

	ts, err := c.UpsertTable(ctx, "ns1", "cpu", map[string]ColumnType{
		"host": ColumnTypeTag,
		"time": ColumnTypeTime,
	})
	require.NoError(t, err)
	require.Len(t, ts.Columns, 2)

	// adding columns keeps the table identity
	ts2, err := c.UpsertTable(ctx, "ns1", "cpu", map[string]ColumnType{
		"busy": ColumnTypeF64,
	})
	require.NoError(t, err)
	require.Equal(t, ts.ID, ts2.ID)
	require.Len(t, ts2.Columns, 3)

	_, err = c.UpsertTable(ctx, "ns1", "cpu", map[string]ColumnType{
		"host": ColumnTypeF64,
	})
	require.ErrorIs(t, err, errors.ErrColumnTypeConflict)

	// the snapshot is detached from later mutations
	schema, err = c.GetSchemaByName(ctx, "ns1")
	require.NoError(t, err)
	_, err = c.UpsertTable(ctx, "ns1", "mem", map[string]ColumnType{"used": ColumnTypeI64})
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
}

func TestMemCatalogParquetFiles(t *testing.T) {
	ctx := context.Background()
	c := NewMemCatalog()
	defer c.Close()

	ns, err := c.CreateNamespace(ctx, "ns1", 0)
	require.NoError(t, err)
	_, err = c.UpsertTable(ctx, "ns1", "cpu", map[string]ColumnType{"time": ColumnTypeTime})
	require.NoError(t, err)

	_, err = c.AddParquetFile(ctx, &ParquetFile{NamespaceID: ns.ID + 100})
	require.ErrorIs(t, err, errors.ErrNamespaceNotExist)

	f1, err := c.AddParquetFile(ctx, &ParquetFile{NamespaceID: ns.ID, TableName: "cpu", RowCount: 10})
	require.NoError(t, err)
	f2, err := c.AddParquetFile(ctx, &ParquetFile{NamespaceID: ns.ID, TableName: "mem", RowCount: 20})
	require.NoError(t, err)
	require.NotEqual(t, f1.ID, f2.ID)

	files, err := c.ListParquetFiles(ctx, ns.ID, "")
	require.NoError(t, err)
	require.Len(t, files, 2)

	files, err = c.ListParquetFiles(ctx, ns.ID, "cpu")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, int64(10), files[0].RowCount)
}
