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

// Package chunk turns catalog parquet file records into read-ready chunks.
package chunk

import (
	"context"
	"io"
	"sort"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/catalog/cache"
	"github.com/criticalboot/influxdb/errors"
	"github.com/criticalboot/influxdb/store"
)

// Chunk is one queryable unit of persisted data: the file record, the
// schema of its table, and access to the object bytes.
type Chunk struct {
	File   *catalog.ParquetFile
	Schema *catalog.TableSchema

	storage store.ParquetStorage
	path    string
}

// Path returns the object store path of the chunk.
func (c *Chunk) Path() string {
	return c.path
}

// Open returns a throttled reader over the chunk bytes. The caller owns
// the Close.
func (c *Chunk) Open(ctx context.Context) (io.ReadCloser, error) {
	return c.storage.Open(ctx, c.path)
}

// Adapter builds chunks for namespaces out of the catalog cache and the
// parquet storage. One adapter is shared by all namespace handles.
type Adapter struct {
	cache   *cache.CatalogCache
	storage store.ParquetStorage
}

func NewAdapter(catalogCache *cache.CatalogCache, storage store.ParquetStorage) *Adapter {
	return &Adapter{
		cache:   catalogCache,
		storage: storage,
	}
}

// Chunks returns the chunks of one table, oldest file first. The file list
// is read fresh from the catalog; only the schema snapshot comes from the
// caller.
func (a *Adapter) Chunks(ctx context.Context, schema *catalog.NamespaceSchema, table string) ([]*Chunk, error) {
	tableSchema, ok := schema.Tables[table]
	if !ok {
		return nil, errors.ErrTableNotExist
	}

	files, err := a.cache.Catalog().ListParquetFiles(ctx, schema.ID, table)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	chunks := make([]*Chunk, 0, len(files))
	for _, f := range files {
		path := f.ObjectPath
		if path == "" {
			path = a.storage.Path(f)
		}
		chunks = append(chunks, &Chunk{
			File:    f,
			Schema:  tableSchema,
			storage: a.storage,
			path:    path,
		})
	}
	return chunks, nil
}
