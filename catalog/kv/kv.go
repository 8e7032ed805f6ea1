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

// Package kv provides a rocksdb backed catalog for deployments that keep
// the namespace metadata on local disk instead of an external service.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	rdb "github.com/tecbot/gorocksdb"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/errors"
)

const (
	cfNamespace = "namespace"
	cfTable     = "table"
	cfFile      = "file"
	cfMeta      = "meta"

	metaIDsKey = "current_ids"
)

type Config struct {
	Path string `json:"path"`
}

type currentIDs struct {
	Namespace uint64 `json:"namespace"`
	Table     uint64 `json:"table"`
	Column    uint64 `json:"column"`
	File      uint64 `json:"file"`
}

type kvCatalog struct {
	path     string
	db       *rdb.DB
	opt      *rdb.Options
	readOpt  *rdb.ReadOptions
	writeOpt *rdb.WriteOptions
	cfhs     map[string]*rdb.ColumnFamilyHandle

	ids  currentIDs
	lock sync.RWMutex
}

func NewCatalog(ctx context.Context, cfg *Config) (catalog.Catalog, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("kv catalog path is empty")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, err
	}

	opt := rdb.NewDefaultOptions()
	opt.SetCreateIfMissing(true)
	opt.SetCreateIfMissingColumnFamilies(true)

	cfNames := []string{"default", cfNamespace, cfTable, cfFile, cfMeta}
	cfOpts := make([]*rdb.Options, 0, len(cfNames))
	for range cfNames {
		cfOpts = append(cfOpts, opt)
	}

	db, cfhs, err := rdb.OpenDbColumnFamilies(opt, cfg.Path, cfNames, cfOpts)
	if err != nil {
		return nil, err
	}

	c := &kvCatalog{
		path:     cfg.Path,
		db:       db,
		opt:      opt,
		readOpt:  rdb.NewDefaultReadOptions(),
		writeOpt: rdb.NewDefaultWriteOptions(),
		cfhs:     make(map[string]*rdb.ColumnFamilyHandle, len(cfNames)),
	}
	for i := range cfNames {
		c.cfhs[cfNames[i]] = cfhs[i]
	}
	if err = c.loadIDs(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *kvCatalog) loadIDs() error {
	v, err := c.db.GetCF(c.readOpt, c.cfhs[cfMeta], []byte(metaIDsKey))
	if err != nil {
		return err
	}
	defer v.Free()
	if !v.Exists() {
		return nil
	}
	return json.Unmarshal(v.Data(), &c.ids)
}

// saveIDs persists the counters; callers hold the write lock.
func (c *kvCatalog) saveIDs() error {
	raw, err := json.Marshal(&c.ids)
	if err != nil {
		return err
	}
	return c.db.PutCF(c.writeOpt, c.cfhs[cfMeta], []byte(metaIDsKey), raw)
}

func (c *kvCatalog) getJSON(cf string, key []byte, val interface{}) (bool, error) {
	v, err := c.db.GetCF(c.readOpt, c.cfhs[cf], key)
	if err != nil {
		return false, err
	}
	defer v.Free()
	if !v.Exists() {
		return false, nil
	}
	if err = json.Unmarshal(v.Data(), val); err != nil {
		return false, err
	}
	return true, nil
}

func (c *kvCatalog) putJSON(cf string, key []byte, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.db.PutCF(c.writeOpt, c.cfhs[cf], key, raw)
}

func tableKey(nsID catalog.NamespaceID, table string) []byte {
	return []byte(fmt.Sprintf("%020d/%s", nsID, table))
}

func fileKey(nsID catalog.NamespaceID, table string, id catalog.FileID) []byte {
	return []byte(fmt.Sprintf("%020d/%s/%020d", nsID, table, id))
}

func filePrefix(nsID catalog.NamespaceID, table string) []byte {
	if table == "" {
		return []byte(fmt.Sprintf("%020d/", nsID))
	}
	return []byte(fmt.Sprintf("%020d/%s/", nsID, table))
}

func (c *kvCatalog) CreateNamespace(ctx context.Context, name string, retentionPeriodNs int64) (*catalog.Namespace, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var existing catalog.Namespace
	ok, err := c.getJSON(cfNamespace, []byte(name), &existing)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, errors.ErrNamespaceAlreadyExists
	}

	c.ids.Namespace++
	ns := &catalog.Namespace{
		ID:                catalog.NamespaceID(c.ids.Namespace),
		Name:              name,
		RetentionPeriodNs: retentionPeriodNs,
		CreateTime:        time.Now().UnixMilli(),
	}
	if err = c.putJSON(cfNamespace, []byte(name), ns); err != nil {
		return nil, err
	}
	if err = c.saveIDs(); err != nil {
		return nil, err
	}
	return ns, nil
}

func (c *kvCatalog) GetNamespaceByName(ctx context.Context, name string) (*catalog.Namespace, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.getNamespace(name)
}

func (c *kvCatalog) getNamespace(name string) (*catalog.Namespace, error) {
	ns := &catalog.Namespace{}
	ok, err := c.getJSON(cfNamespace, []byte(name), ns)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrNamespaceNotExist
	}
	return ns, nil
}

func (c *kvCatalog) ListNamespaces(ctx context.Context) ([]*catalog.Namespace, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var ret []*catalog.Namespace
	it := c.db.NewIteratorCF(c.readOpt, c.cfhs[cfNamespace])
	defer it.Close()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		ns := &catalog.Namespace{}
		if err := json.Unmarshal(it.Value().Data(), ns); err != nil {
			return nil, err
		}
		ret = append(ret, ns)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *kvCatalog) GetSchemaByName(ctx context.Context, name string) (*catalog.NamespaceSchema, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ns, err := c.getNamespace(name)
	if err != nil {
		return nil, err
	}
	schema := &catalog.NamespaceSchema{
		ID:     ns.ID,
		Name:   name,
		Tables: make(map[string]*catalog.TableSchema),
	}

	prefix := filePrefix(ns.ID, "")
	it := c.db.NewIteratorCF(c.readOpt, c.cfhs[cfTable])
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		table := &catalog.TableSchema{}
		if err = json.Unmarshal(it.Value().Data(), table); err != nil {
			return nil, err
		}
		tname := string(it.Key().Data()[len(prefix):])
		schema.Tables[tname] = table
	}
	if err = it.Err(); err != nil {
		return nil, err
	}
	return schema, nil
}

func (c *kvCatalog) UpsertTable(ctx context.Context, namespace, table string, columns map[string]catalog.ColumnType) (*catalog.TableSchema, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	ns, err := c.getNamespace(namespace)
	if err != nil {
		return nil, err
	}

	key := tableKey(ns.ID, table)
	ts := &catalog.TableSchema{}
	ok, err := c.getJSON(cfTable, key, ts)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.ids.Table++
		ts = &catalog.TableSchema{
			ID:      catalog.TableID(c.ids.Table),
			Columns: make(map[string]catalog.ColumnSchema),
		}
	}
	for cname, ctype := range columns {
		if existing, ok := ts.Columns[cname]; ok {
			if existing.Type != ctype {
				return nil, errors.ErrColumnTypeConflict
			}
			continue
		}
		c.ids.Column++
		ts.Columns[cname] = catalog.ColumnSchema{
			ID:   catalog.ColumnID(c.ids.Column),
			Type: ctype,
		}
	}
	if err = c.putJSON(cfTable, key, ts); err != nil {
		return nil, err
	}
	if err = c.saveIDs(); err != nil {
		return nil, err
	}
	return ts, nil
}

func (c *kvCatalog) AddParquetFile(ctx context.Context, file *catalog.ParquetFile) (*catalog.ParquetFile, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.ids.File++
	cp := *file
	cp.ID = catalog.FileID(c.ids.File)
	cp.CreateTime = time.Now().UnixMilli()
	if err := c.putJSON(cfFile, fileKey(cp.NamespaceID, cp.TableName, cp.ID), &cp); err != nil {
		return nil, err
	}
	if err := c.saveIDs(); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (c *kvCatalog) ListParquetFiles(ctx context.Context, namespaceID catalog.NamespaceID, table string) ([]*catalog.ParquetFile, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var ret []*catalog.ParquetFile
	prefix := filePrefix(namespaceID, table)
	it := c.db.NewIteratorCF(c.readOpt, c.cfhs[cfFile])
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		f := &catalog.ParquetFile{}
		if err := json.Unmarshal(it.Value().Data(), f); err != nil {
			return nil, err
		}
		ret = append(ret, f)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *kvCatalog) Close() {
	for _, cfh := range c.cfhs {
		cfh.Destroy()
	}
	c.db.Close()
	c.readOpt.Destroy()
	c.writeOpt.Destroy()
	c.opt.Destroy()
}
