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

// Package store binds an object store to the parquet file layout used by
// the query tier. The querier only ever reads through it.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/criticalboot/influxdb/catalog"
	"github.com/criticalboot/influxdb/errors"
)

// ObjectStore is the narrow contract over the durable object layer.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Size(ctx context.Context, path string) (int64, error)
}

type memObjectStore struct {
	objects map[string][]byte
	lock    sync.RWMutex
}

// NewMemObjectStore returns an in-memory object store for tests and the
// single node mode.
func NewMemObjectStore() ObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (s *memObjectStore) Put(ctx context.Context, path string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = cp
	return nil
}

func (s *memObjectStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.ErrObjectNotExist
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStore) Size(ctx context.Context, path string) (int64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	data, ok := s.objects[path]
	if !ok {
		return 0, errors.ErrObjectNotExist
	}
	return int64(len(data)), nil
}

// ParquetStorage couples an object store with the read limiter and the
// parquet path layout. Copies share the underlying store and limiter.
type ParquetStorage struct {
	store   ObjectStore
	limiter *Limiter
}

func NewParquetStorage(store ObjectStore, limit LimitConfig) ParquetStorage {
	return ParquetStorage{
		store:   store,
		limiter: NewLimiter(limit),
	}
}

// Path returns the canonical object path of a parquet file.
func (s ParquetStorage) Path(f *catalog.ParquetFile) string {
	return fmt.Sprintf("%d/%d/%d.parquet", f.NamespaceID, f.TableID, f.ID)
}

// Open returns a reader over one parquet object. The read is throttled by
// the storage limiter; Close releases the concurrency slot.
func (s ParquetStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := s.limiter.AcquireRead(); err != nil {
		return nil, err
	}
	rc, err := s.store.Get(ctx, path)
	if err != nil {
		s.limiter.ReleaseRead()
		return nil, err
	}
	return &limitedReadCloser{
		reader:  s.limiter.Reader(ctx, rc),
		close:   rc.Close,
		limiter: s.limiter,
	}, nil
}

func (s ParquetStorage) Put(ctx context.Context, path string, data []byte) error {
	if err := s.limiter.AcquireWrite(); err != nil {
		return err
	}
	defer s.limiter.ReleaseWrite()

	if err := s.limiter.WaitWrite(ctx, len(data)); err != nil {
		return err
	}
	return s.store.Put(ctx, path, data)
}

func (s ParquetStorage) Size(ctx context.Context, path string) (int64, error) {
	return s.store.Size(ctx, path)
}

type limitedReadCloser struct {
	reader  io.Reader
	close   func() error
	limiter *Limiter

	once sync.Once
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

func (r *limitedReadCloser) Close() error {
	var err error
	r.once.Do(func() {
		r.limiter.ReleaseRead()
		err = r.close()
	})
	return err
}
