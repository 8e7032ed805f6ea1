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

// Package cache provides a read-through schema cache over the catalog so
// that resolving a namespace per query does not hit the catalog every time.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/criticalboot/influxdb/catalog"
)

const defaultTTL = 10 * time.Second

type Config struct {
	TTLMs uint32 `json:"ttl_ms"`
}

type entry struct {
	schema   *catalog.NamespaceSchema
	loadTime time.Time
}

// CatalogCache caches namespace schema snapshots. Concurrent loads for the
// same namespace are collapsed into one catalog read.
type CatalogCache struct {
	backing catalog.Catalog
	ttl     time.Duration

	entries   map[string]*entry
	singleRun singleflight.Group

	lock sync.RWMutex
}

func NewCatalogCache(backing catalog.Catalog, cfg *Config) *CatalogCache {
	ttl := defaultTTL
	if cfg != nil && cfg.TTLMs > 0 {
		ttl = time.Duration(cfg.TTLMs) * time.Millisecond
	}
	return &CatalogCache{
		backing: backing,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// Catalog returns the backing catalog for paths that must not read stale
// data, such as the namespace listing.
func (c *CatalogCache) Catalog() catalog.Catalog {
	return c.backing
}

// Schema returns the schema snapshot of the namespace, loading it from the
// catalog on miss or expiry. Unknown namespaces are not cached; they return
// errors.ErrNamespaceNotExist on every call.
func (c *CatalogCache) Schema(ctx context.Context, name string) (*catalog.NamespaceSchema, error) {
	c.lock.RLock()
	e, ok := c.entries[name]
	c.lock.RUnlock()
	if ok && time.Since(e.loadTime) < c.ttl {
		return e.schema, nil
	}

	v, err, _ := c.singleRun.Do(name, func() (interface{}, error) {
		schema, err := c.backing.GetSchemaByName(ctx, name)
		if err != nil {
			return nil, err
		}
		c.lock.Lock()
		c.entries[name] = &entry{schema: schema, loadTime: time.Now()}
		c.lock.Unlock()
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.NamespaceSchema), nil
}

// Invalidate drops the cached snapshot so the next Schema call reloads.
func (c *CatalogCache) Invalidate(name string) {
	c.lock.Lock()
	delete(c.entries, name)
	c.lock.Unlock()
}
