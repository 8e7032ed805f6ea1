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

package errors

import "errors"

var (
	ErrNamespaceNotExist      = errors.New("the namespace does not exist")
	ErrNamespaceAlreadyExists = errors.New("the namespace is already created")

	ErrTableNotExist = errors.New("table does not exist")

	ErrColumnTypeConflict = errors.New("column type conflicts with the existing schema")

	ErrObjectNotExist = errors.New("object does not exist")

	ErrExecutorClosed = errors.New("executor is closed")

	ErrIngesterUnavailable = errors.New("ingester is unavailable")

	ErrLimitExceeded = errors.New("limit exceeded")
)
