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

package store

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/criticalboot/influxdb/errors"
)

const mb = 1 << 20

// LimitConfig bounds object store traffic. Zero values disable the
// corresponding limit.
type LimitConfig struct {
	ReadConcurrency  int `json:"read_concurrency"`
	WriteConcurrency int `json:"write_concurrency"`
	ReadMBPS         int `json:"read_mbps"`
	WriteMBPS        int `json:"write_mbps"`
}

// Limiter throttles object store reads and writes by concurrency and by
// bandwidth. Concurrency is a try-acquire: exceeding it fails fast with
// errors.ErrLimitExceeded instead of queueing behind slow object reads.
type Limiter struct {
	config LimitConfig

	readCount  *countLimit
	writeCount *countLimit
	rateReader *rate.Limiter
	rateWriter *rate.Limiter
}

func NewLimiter(cfg LimitConfig) *Limiter {
	lim := &Limiter{config: cfg}
	if cfg.ReadConcurrency > 0 {
		lim.readCount = newCountLimit(cfg.ReadConcurrency)
	}
	if cfg.WriteConcurrency > 0 {
		lim.writeCount = newCountLimit(cfg.WriteConcurrency)
	}
	if cfg.ReadMBPS > 0 {
		lim.rateReader = rate.NewLimiter(rate.Limit(cfg.ReadMBPS*mb), cfg.ReadMBPS*mb)
	}
	if cfg.WriteMBPS > 0 {
		lim.rateWriter = rate.NewLimiter(rate.Limit(cfg.WriteMBPS*mb), cfg.WriteMBPS*mb)
	}
	return lim
}

func (lim *Limiter) AcquireRead() error {
	if lim.readCount != nil {
		return lim.readCount.acquire()
	}
	return nil
}

func (lim *Limiter) ReleaseRead() {
	if lim.readCount != nil {
		lim.readCount.release()
	}
}

func (lim *Limiter) AcquireWrite() error {
	if lim.writeCount != nil {
		return lim.writeCount.acquire()
	}
	return nil
}

func (lim *Limiter) ReleaseWrite() {
	if lim.writeCount != nil {
		lim.writeCount.release()
	}
}

func (lim *Limiter) WaitWrite(ctx context.Context, n int) error {
	if lim.rateWriter != nil && n > 0 {
		return lim.rateWriter.WaitN(ctx, n)
	}
	return nil
}

// Reader wraps r with the read bandwidth limit.
func (lim *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if lim.rateReader == nil {
		return r
	}
	return &limitedReader{ctx: ctx, rate: lim.rateReader, underlying: r}
}

type limitedReader struct {
	ctx        context.Context
	rate       *rate.Limiter
	underlying io.Reader
}

func (r *limitedReader) Read(p []byte) (n int, err error) {
	if err = r.rate.WaitN(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.underlying.Read(p)
}

type countLimit struct {
	limit   int32
	running int32
}

func newCountLimit(limit int) *countLimit {
	return &countLimit{limit: int32(limit)}
}

func (c *countLimit) acquire() error {
	if atomic.AddInt32(&c.running, 1) > atomic.LoadInt32(&c.limit) {
		atomic.AddInt32(&c.running, -1)
		return errors.ErrLimitExceeded
	}
	return nil
}

func (c *countLimit) release() {
	atomic.AddInt32(&c.running, -1)
}

func (c *countLimit) Running() int {
	return int(atomic.LoadInt32(&c.running))
}
