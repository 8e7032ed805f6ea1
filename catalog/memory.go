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
	"sync"
	"sync/atomic"
	"time"

	"github.com/criticalboot/influxdb/errors"
)

type memNamespace struct {
	info   *Namespace
	tables map[string]*TableSchema
	files  []*ParquetFile
}

// memCatalog is the in-memory catalog used by the single node mode and tests.
type memCatalog struct {
	namespaces map[string]*memNamespace

	currentNamespaceID uint64
	currentTableID     uint64
	currentColumnID    uint64
	currentFileID      uint64

	lock sync.RWMutex
}

func NewMemCatalog() Catalog {
	return &memCatalog{
		namespaces: make(map[string]*memNamespace),
	}
}

func (c *memCatalog) CreateNamespace(ctx context.Context, name string, retentionPeriodNs int64) (*Namespace, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.namespaces[name]; ok {
		return nil, errors.ErrNamespaceAlreadyExists
	}
	info := &Namespace{
		ID:                NamespaceID(atomic.AddUint64(&c.currentNamespaceID, 1)),
		Name:              name,
		RetentionPeriodNs: retentionPeriodNs,
		CreateTime:        time.Now().UnixMilli(),
	}
	c.namespaces[name] = &memNamespace{
		info:   info,
		tables: make(map[string]*TableSchema),
	}
	cp := *info
	return &cp, nil
}

func (c *memCatalog) GetNamespaceByName(ctx context.Context, name string) (*Namespace, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ns, ok := c.namespaces[name]
	if !ok {
		return nil, errors.ErrNamespaceNotExist
	}
	cp := *ns.info
	return &cp, nil
}

func (c *memCatalog) ListNamespaces(ctx context.Context) ([]*Namespace, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ret := make([]*Namespace, 0, len(c.namespaces))
	for _, ns := range c.namespaces {
		cp := *ns.info
		ret = append(ret, &cp)
	}
	return ret, nil
}

func (c *memCatalog) GetSchemaByName(ctx context.Context, name string) (*NamespaceSchema, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ns, ok := c.namespaces[name]
	if !ok {
		return nil, errors.ErrNamespaceNotExist
	}
	schema := &NamespaceSchema{
		ID:     ns.info.ID,
		Name:   name,
		Tables: make(map[string]*TableSchema, len(ns.tables)),
	}
	for tname, table := range ns.tables {
		cp := &TableSchema{
			ID:      table.ID,
			Columns: make(map[string]ColumnSchema, len(table.Columns)),
		}
		for cname, col := range table.Columns {
			cp.Columns[cname] = col
		}
		schema.Tables[tname] = cp
	}
	return schema, nil
}

func (c *memCatalog) UpsertTable(ctx context.Context, namespace, table string, columns map[string]ColumnType) (*TableSchema, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	ns, ok := c.namespaces[namespace]
	if !ok {
		return nil, errors.ErrNamespaceNotExist
	}
	ts, ok := ns.tables[table]
	if !ok {
		ts = &TableSchema{
			ID:      TableID(atomic.AddUint64(&c.currentTableID, 1)),
			Columns: make(map[string]ColumnSchema),
		}
		ns.tables[table] = ts
	}
	for cname, ctype := range columns {
		if existing, ok := ts.Columns[cname]; ok {
			if existing.Type != ctype {
				return nil, errors.ErrColumnTypeConflict
			}
			continue
		}
		ts.Columns[cname] = ColumnSchema{
			ID:   ColumnID(atomic.AddUint64(&c.currentColumnID, 1)),
			Type: ctype,
		}
	}
	return ts, nil
}

func (c *memCatalog) AddParquetFile(ctx context.Context, file *ParquetFile) (*ParquetFile, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, ns := range c.namespaces {
		if ns.info.ID != file.NamespaceID {
			continue
		}
		cp := *file
		cp.ID = FileID(atomic.AddUint64(&c.currentFileID, 1))
		cp.CreateTime = time.Now().UnixMilli()
		ns.files = append(ns.files, &cp)
		ret := cp
		return &ret, nil
	}
	return nil, errors.ErrNamespaceNotExist
}

func (c *memCatalog) ListParquetFiles(ctx context.Context, namespaceID NamespaceID, table string) ([]*ParquetFile, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for _, ns := range c.namespaces {
		if ns.info.ID != namespaceID {
			continue
		}
		var ret []*ParquetFile
		for _, f := range ns.files {
			if table != "" && f.TableName != table {
				continue
			}
			cp := *f
			ret = append(ret, &cp)
		}
		return ret, nil
	}
	return nil, errors.ErrNamespaceNotExist
}

func (c *memCatalog) Close() {}
