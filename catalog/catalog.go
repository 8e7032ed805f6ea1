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

// Package catalog defines the namespace catalog: the durable record of
// which namespaces exist, their table schemas and their parquet files.
package catalog

import (
	"context"
)

type (
	NamespaceID uint64
	TableID     uint64
	ColumnID    uint64
	FileID      uint64

	ColumnType uint8
)

const (
	ColumnTypeTag ColumnType = iota + 1
	ColumnTypeI64
	ColumnTypeU64
	ColumnTypeF64
	ColumnTypeBool
	ColumnTypeString
	ColumnTypeTime
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeTag:
		return "tag"
	case ColumnTypeI64:
		return "i64"
	case ColumnTypeU64:
		return "u64"
	case ColumnTypeF64:
		return "f64"
	case ColumnTypeBool:
		return "bool"
	case ColumnTypeString:
		return "string"
	case ColumnTypeTime:
		return "time"
	default:
		return "unknown"
	}
}

type (
	// Namespace is the lightweight listing record of one logical database.
	Namespace struct {
		ID                NamespaceID `json:"id"`
		Name              string      `json:"name"`
		RetentionPeriodNs int64       `json:"retention_period_ns"`
		MaxTables         int32       `json:"max_tables"`
		CreateTime        int64       `json:"create_time"`
	}

	ColumnSchema struct {
		ID   ColumnID   `json:"id"`
		Type ColumnType `json:"type"`
	}

	TableSchema struct {
		ID      TableID                 `json:"id"`
		Columns map[string]ColumnSchema `json:"columns"`
	}

	// NamespaceSchema is an immutable snapshot of all table schemas of one
	// namespace at resolution time.
	NamespaceSchema struct {
		ID     NamespaceID             `json:"id"`
		Name   string                  `json:"name"`
		Tables map[string]*TableSchema `json:"tables"`
	}

	// ParquetFile describes one persisted file of a table.
	ParquetFile struct {
		ID          FileID      `json:"id"`
		NamespaceID NamespaceID `json:"namespace_id"`
		TableID     TableID     `json:"table_id"`
		TableName   string      `json:"table_name"`
		ObjectPath  string      `json:"object_path"`
		RowCount    int64       `json:"row_count"`
		SizeBytes   int64       `json:"size_bytes"`
		MinTimeNs   int64       `json:"min_time_ns"`
		MaxTimeNs   int64       `json:"max_time_ns"`
		CreateTime  int64       `json:"create_time"`
	}
)

// Catalog is the narrow contract the querier reads namespaces through.
// Implementations must be safe for concurrent use.
type Catalog interface {
	CreateNamespace(ctx context.Context, name string, retentionPeriodNs int64) (*Namespace, error)
	GetNamespaceByName(ctx context.Context, name string) (*Namespace, error)
	ListNamespaces(ctx context.Context) ([]*Namespace, error)

	// GetSchemaByName returns the current schema snapshot of the namespace,
	// or errors.ErrNamespaceNotExist if the namespace is unknown.
	GetSchemaByName(ctx context.Context, name string) (*NamespaceSchema, error)
	UpsertTable(ctx context.Context, namespace, table string, columns map[string]ColumnType) (*TableSchema, error)

	AddParquetFile(ctx context.Context, file *ParquetFile) (*ParquetFile, error)
	ListParquetFiles(ctx context.Context, namespaceID NamespaceID, table string) ([]*ParquetFile, error)

	Close()
}
