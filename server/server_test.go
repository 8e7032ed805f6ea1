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

package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/criticalboot/influxdb/catalog"
	apierrors "github.com/criticalboot/influxdb/errors"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&Config{MaxConcurrentQueries: 8})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestServerNamespaceSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, err := s.NamespaceSchema(ctx, "ns1")
	require.ErrorIs(t, err, apierrors.ErrNamespaceNotExist)

	_, err = s.catalog.CreateNamespace(ctx, "ns1", 0)
	require.NoError(t, err)
	_, err = s.catalog.UpsertTable(ctx, "ns1", "cpu", map[string]catalog.ColumnType{
		"time": catalog.ColumnTypeTime,
	})
	require.NoError(t, err)

	schema, err := s.NamespaceSchema(ctx, "ns1")
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
}

func TestServerTableSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	ns, err := s.catalog.CreateNamespace(ctx, "ns1", 0)
	require.NoError(t, err)
	ts, err := s.catalog.UpsertTable(ctx, "ns1", "cpu", map[string]catalog.ColumnType{
		"time": catalog.ColumnTypeTime,
	})
	require.NoError(t, err)
	_, err = s.catalog.AddParquetFile(ctx, &catalog.ParquetFile{
		NamespaceID: ns.ID,
		TableID:     ts.ID,
		TableName:   "cpu",
		RowCount:    100,
		SizeBytes:   2048,
	})
	require.NoError(t, err)

	summary, err := s.GetTableSummary(ctx, "ns1", "cpu")
	require.NoError(t, err)
	require.Equal(t, 1, summary.ChunkCount)
	require.EqualValues(t, 100, summary.PersistedRows)
	require.EqualValues(t, 2048, summary.PersistedBytes)
	require.Zero(t, summary.UnpersistedRows)

	_, err = s.GetTableSummary(ctx, "ns1", "mem")
	require.ErrorIs(t, err, apierrors.ErrTableNotExist)

	// the summary left a completed query log entry behind
	entries := s.QueryLogEntries("ns1")
	require.Len(t, entries, 2)
	require.True(t, entries[0].Completed())
	require.True(t, entries[0].Success())
	require.False(t, entries[1].Success())
}
