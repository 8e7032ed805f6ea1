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

package ingester

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/balancer/roundrobin"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/criticalboot/influxdb/metrics"
)

const (
	lbResolverSchema = "dns"

	partitionsMethod = "/influxdata.platform.ingester.v1.IngesterService/UnpersistedPartitions"
)

type (
	Config struct {
		Addresses       string          `json:"addresses"`
		TransportConfig TransportConfig `json:"transport"`
	}
	TransportConfig struct {
		MaxTimeoutMs       uint32 `json:"max_timeout_ms"`
		ConnectTimeoutMs   uint32 `json:"connect_timeout_ms"`
		KeepaliveTimeoutS  uint32 `json:"keepalive_timeout_s"`
		BackoffBaseDelayMs uint32 `json:"backoff_base_delay_ms"`
		BackoffMaxDelayMs  uint32 `json:"backoff_max_delay_ms"`
	}

	client struct {
		conn *grpc.ClientConn
		tc   TransportConfig
	}

	partitionsRequest struct {
		Namespace string `json:"namespace"`
	}
	partitionsResponse struct {
		Partitions []Partition `json:"partitions"`
	}
)

// jsonCodec lets the querier speak to the ingester fleet without carrying
// generated stubs in this repository.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

func unaryInterceptorWithTracer(ctx context.Context, method string, req, reply interface{},
	cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
) error {
	span := trace.SpanFromContextSafe(ctx)
	ctx = metadata.NewOutgoingContext(ctx, metadata.Pairs(
		"req-id", span.TraceID(),
	))

	return invoker(ctx, method, req, reply, cc, opts...)
}

func generateDialOpts(cfg *TransportConfig) []grpc.DialOption {
	dialOpts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(math.MaxInt64),
			grpc.MaxCallRecvMsgSize(math.MaxInt64),
			grpc.CallContentSubtype(jsonCodec{}.Name()),
		),
		grpc.WithKeepaliveParams(
			keepalive.ClientParameters{
				Timeout:             time.Duration(cfg.KeepaliveTimeoutS) * time.Second,
				PermitWithoutStream: true,
			},
		),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay: time.Duration(cfg.BackoffBaseDelayMs) * time.Millisecond,
				MaxDelay:  time.Duration(cfg.BackoffMaxDelayMs) * time.Millisecond,
			},
			MinConnectTimeout: time.Millisecond * time.Duration(cfg.ConnectTimeoutMs),
		}),
		grpc.WithChainUnaryInterceptor(
			unaryInterceptorWithTracer,
			metrics.GRPCClientMetrics.UnaryClientInterceptor(),
		),
		grpc.WithDefaultServiceConfig(fmt.Sprintf(`{"LoadBalancingPolicy": "%s"}`, roundrobin.Name)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	return dialOpts
}

// NewConnection dials the ingester fleet. Addresses are comma separated and
// balanced round robin.
func NewConnection(cfg *Config) (Connection, error) {
	if cfg.Addresses == "" {
		return nil, fmt.Errorf("ingester addresses can't be nil")
	}
	addresses := cfg.Addresses
	if !strings.HasPrefix(addresses, lbResolverSchema+":///") {
		addresses = lbResolverSchema + ":///" + addresses
	}

	conn, err := grpc.Dial(addresses, generateDialOpts(&cfg.TransportConfig)...)
	if err != nil {
		return nil, err
	}
	return &client{conn: conn, tc: cfg.TransportConfig}, nil
}

func (c *client) UnpersistedPartitions(ctx context.Context, namespace string) ([]Partition, error) {
	if c.tc.MaxTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.tc.MaxTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	req := &partitionsRequest{Namespace: namespace}
	resp := &partitionsResponse{}
	if err := c.conn.Invoke(ctx, partitionsMethod, req, resp); err != nil {
		return nil, err
	}
	return resp.Partitions, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}
