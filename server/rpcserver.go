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
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/criticalboot/influxdb/catalog"
	apierrors "github.com/criticalboot/influxdb/errors"
	"github.com/criticalboot/influxdb/metrics"
)

const (
	querierServiceName = "influxdata.platform.querier.v1.QuerierService"

	reqIDKey = "req-id"
)

type (
	ListNamespacesRequest  struct{}
	ListNamespacesResponse struct {
		Namespaces []*catalog.Namespace `json:"namespaces"`
	}

	GetSchemaRequest struct {
		Namespace string `json:"namespace"`
	}
	GetSchemaResponse struct {
		Schema *catalog.NamespaceSchema `json:"schema"`
	}

	GetTableSummaryRequest struct {
		Namespace string `json:"namespace"`
		Table     string `json:"table"`
	}
	GetTableSummaryResponse struct {
		Summary *TableSummary `json:"summary"`
	}
)

type RPCServer struct {
	*Server

	grpcServer *grpc.Server
}

func NewRPCServer(server *Server) *RPCServer {
	rs := &RPCServer{Server: server}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		rs.unaryInterceptorWithTracer,
		metrics.GRPCMetrics.UnaryServerInterceptor(),
	))
	s.RegisterService(&querierServiceDesc, rs)
	metrics.GRPCMetrics.InitializeMetrics(s)
	rs.grpcServer = s
	return rs
}

func (r *RPCServer) Serve(addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("grpc server listen on %s: %s", addr, err)
	}
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			log.Fatal("grpc server exits:", err)
		}
	}()

	log.Info("grpc server is running at:", addr)
}

func (r *RPCServer) Stop() {
	r.grpcServer.GracefulStop()
}

func (r *RPCServer) ListNamespaces(ctx context.Context, req *ListNamespacesRequest) (*ListNamespacesResponse, error) {
	namespaces, err := r.Server.ListNamespaces(ctx)
	if err != nil {
		return nil, toStatusErr(err)
	}
	return &ListNamespacesResponse{Namespaces: namespaces}, nil
}

func (r *RPCServer) GetSchema(ctx context.Context, req *GetSchemaRequest) (*GetSchemaResponse, error) {
	span := trace.SpanFromContextSafe(ctx)
	schema, err := r.NamespaceSchema(ctx, req.Namespace)
	if err != nil {
		span.Errorf("get schema of namespace[%s] failed: %s", req.Namespace, err)
		return nil, toStatusErr(err)
	}
	return &GetSchemaResponse{Schema: schema}, nil
}

func (r *RPCServer) GetTableSummary(ctx context.Context, req *GetTableSummaryRequest) (*GetTableSummaryResponse, error) {
	summary, err := r.Server.GetTableSummary(ctx, req.Namespace, req.Table)
	if err != nil {
		return nil, toStatusErr(err)
	}
	return &GetTableSummaryResponse{Summary: summary}, nil
}

func toStatusErr(err error) error {
	switch {
	case errors.Is(err, apierrors.ErrNamespaceNotExist), errors.Is(err, apierrors.ErrTableNotExist):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (r *RPCServer) unaryInterceptorWithTracer(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if reqID := md.Get(reqIDKey); len(reqID) > 0 {
			_, ctx = trace.StartSpanFromContextWithTraceID(ctx, info.FullMethod, reqID[0])
		}
	}
	return handler(ctx, req)
}

// The service descriptor is built by hand: the querier RPC surface is
// json-encoded and carries no generated stubs.
var querierServiceDesc = grpc.ServiceDesc{
	ServiceName: querierServiceName,
	HandlerType: (*querierService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListNamespaces", Handler: listNamespacesHandler},
		{MethodName: "GetSchema", Handler: getSchemaHandler},
		{MethodName: "GetTableSummary", Handler: getTableSummaryHandler},
	},
	Streams: []grpc.StreamDesc{},
}

type querierService interface {
	ListNamespaces(context.Context, *ListNamespacesRequest) (*ListNamespacesResponse, error)
	GetSchema(context.Context, *GetSchemaRequest) (*GetSchemaResponse, error)
	GetTableSummary(context.Context, *GetTableSummaryRequest) (*GetTableSummaryResponse, error)
}

func listNamespacesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListNamespacesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(querierService).ListNamespaces(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + querierServiceName + "/ListNamespaces",
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(querierService).ListNamespaces(ctx, req.(*ListNamespacesRequest))
	})
}

func getSchemaHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetSchemaRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(querierService).GetSchema(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + querierServiceName + "/GetSchema",
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(querierService).GetSchema(ctx, req.(*GetSchemaRequest))
	})
}

func getTableSummaryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetTableSummaryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(querierService).GetTableSummary(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + querierServiceName + "/GetTableSummary",
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(querierService).GetTableSummary(ctx, req.(*GetTableSummaryRequest))
	})
}
