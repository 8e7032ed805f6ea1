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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/util/log"

	apierrors "github.com/criticalboot/influxdb/errors"
	"github.com/criticalboot/influxdb/metrics"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 30
)

type HttpServer struct {
	httpServer *http.Server

	*Server
}

func NewHttpServer(server *Server) *HttpServer {
	return &HttpServer{Server: server}
}

func (h *HttpServer) Serve(addr string) {
	ph := profile.NewProfileHandler(addr)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(h.newHandler(), ph),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server exits:", err)
		}
	}()
	h.httpServer = httpServer

	log.Info("http server is running at:", addr)
}

func (h *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	h.httpServer.Shutdown(ctx)
}

func (h *HttpServer) newHandler() *rpc.Router {
	rpc.GET("/v1/namespaces", h.Namespaces, rpc.OptArgsQuery())
	rpc.GET("/v1/schema", h.Schema, rpc.OptArgsQuery())
	rpc.GET("/v1/querylog", h.QueryLog, rpc.OptArgsQuery())
	rpc.GET("/metrics", h.Metrics, rpc.OptArgsQuery())
	rpc.GET("/stats", h.Stats, rpc.OptArgsQuery())

	return rpc.DefaultRouter
}

func (h *HttpServer) Namespaces(c *rpc.Context) {
	namespaces, err := h.ListNamespaces(c.Request.Context())
	if err != nil {
		c.RespondStatus(http.StatusServiceUnavailable)
		return
	}
	c.RespondJSON(namespaces)
}

func (h *HttpServer) Schema(c *rpc.Context) {
	name := c.Request.URL.Query().Get("namespace")
	if name == "" {
		c.RespondStatus(http.StatusBadRequest)
		return
	}
	schema, err := h.NamespaceSchema(c.Request.Context(), name)
	if err != nil {
		if err == apierrors.ErrNamespaceNotExist {
			c.RespondStatus(http.StatusNotFound)
			return
		}
		c.RespondStatus(http.StatusServiceUnavailable)
		return
	}
	c.RespondJSON(schema)
}

func (h *HttpServer) QueryLog(c *rpc.Context) {
	c.RespondJSON(h.QueryLogEntries(c.Request.URL.Query().Get("namespace")))
}

func (h *HttpServer) Metrics(c *rpc.Context) {
	promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).
		ServeHTTP(c.Writer, c.Request)
}

func (h *HttpServer) Stats(c *rpc.Context) {
	c.RespondStatus(http.StatusOK)
}
