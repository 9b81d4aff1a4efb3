// Copyright 2015 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package prepare

import (
	"time"

	"github.com/hanchuanchuan/goPrepareShutdown/session"
)

// Server is the administrative surface of the target instance used while
// preparing it for shutdown. Every method is one synchronous round trip.
// *session.Session implements it.
type Server interface {
	GlobalVariable(name string) (string, error)
	StatusCounter(name string) (int64, error)
	SetGlobalVariable(name, value string) error

	ReplicaStatus() (*session.ReplicationStatus, error)
	ParallelWorkers() (int64, error)
	StopReplicaThread(thread session.ReplicaThread) error
	StartReplica() error

	LongRunningTransactions(threshold time.Duration) ([]session.OpenTransaction, error)
}

// InnoDB settings and counters touched during preparation.
const (
	VarMaxDirtyPagesPct  = "innodb_max_dirty_pages_pct"
	VarFastShutdown      = "innodb_fast_shutdown"
	VarDumpAtShutdown    = "innodb_buffer_pool_dump_at_shutdown"
	VarDumpPct           = "innodb_buffer_pool_dump_pct"
	VarLoadAtStartup     = "innodb_buffer_pool_load_at_startup"
	StatusPagesDirty     = "Innodb_buffer_pool_pages_dirty"
	fullShutdown         = "0"
	bufferPoolDumpEnable = "ON"
)
