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

package session

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// ReplicaThread names one of the two single-threaded replication workers.
type ReplicaThread string

// Replication threads.
const (
	IOThread  ReplicaThread = "IO_THREAD"
	SQLThread ReplicaThread = "SQL_THREAD"
)

// ReplicationStatus holds replication information from SHOW REPLICA STATUS.
type ReplicationStatus struct {
	// IsReplica is false on a primary or an unconfigured node.
	IsReplica        bool
	IOThreadRunning  bool
	SQLThreadRunning bool
	// ParallelWorkers is the configured number of applier workers.
	ParallelWorkers int64

	// Coordinates read by the IO thread.
	MasterLogFile    string
	ReadMasterLogPos int64
	// Coordinates executed by the SQL thread.
	RelayMasterLogFile string
	ExecMasterLogPos   int64

	// SecondsBehindMaster is nil when the server reports NULL.
	SecondsBehindMaster *int64
}

// CaughtUp reports whether the SQL thread has executed everything the IO
// thread has read. Offsets are compared as int64; binlog files can grow past
// 4GB on a single large transaction.
func (s *ReplicationStatus) CaughtUp() bool {
	if s.MasterLogFile == "" || s.RelayMasterLogFile == "" {
		return s.MasterLogFile == s.RelayMasterLogFile && s.ReadMasterLogPos == s.ExecMasterLogPos
	}
	if c := gomysql.CompareBinlogFileName(s.RelayMasterLogFile, s.MasterLogFile); c != 0 {
		return c > 0
	}
	return s.ExecMasterLogPos >= s.ReadMasterLogPos
}

// ReplicationRunning returns true iff both the IO and SQL threads are running.
func (s *ReplicationStatus) ReplicationRunning() bool {
	return s.IOThreadRunning && s.SQLThreadRunning
}

// ReplicationStopped returns true iff neither thread is running.
func (s *ReplicationStatus) ReplicationStopped() bool {
	return !s.IOThreadRunning && !s.SQLThreadRunning
}

// Lag prints the coordinates of both threads.
func (s *ReplicationStatus) Lag() string {
	behind := "NULL"
	if s.SecondsBehindMaster != nil {
		behind = strconv.FormatInt(*s.SecondsBehindMaster, 10)
	}
	return fmt.Sprintf("read %s:%d, executed %s:%d, seconds behind %s",
		s.MasterLogFile, s.ReadMasterLogPos, s.RelayMasterLogFile, s.ExecMasterLogPos, behind)
}

// rowMap is one result row keyed by column name.
type rowMap map[string]sql.NullString

// get returns the first non-null column among the given names, so both the
// SLAVE and the REPLICA column spellings can be read.
func (m rowMap) get(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := m[name]; ok && v.Valid {
			return v.String, true
		}
	}
	return "", false
}

func (m rowMap) getString(names ...string) string {
	v, _ := m.get(names...)
	return v
}

func (m rowMap) getInt64(names ...string) int64 {
	v, _ := m.get(names...)
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func (m rowMap) getInt64Ptr(names ...string) *int64 {
	v, ok := m.get(names...)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// readFirstRow returns the first row of rows, or nil when there is none.
func readFirstRow(rows *sql.Rows) (rowMap, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !rows.Next() {
		return nil, errors.Trace(rows.Err())
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Trace(err)
	}

	m := make(rowMap, len(columns))
	for i, column := range columns {
		m[column] = values[i]
	}
	return m, nil
}

func replicationStatusFromRow(m rowMap) *ReplicationStatus {
	return &ReplicationStatus{
		IsReplica:           true,
		IOThreadRunning:     strings.EqualFold(m.getString("Replica_IO_Running", "Slave_IO_Running"), "Yes"),
		SQLThreadRunning:    strings.EqualFold(m.getString("Replica_SQL_Running", "Slave_SQL_Running"), "Yes"),
		MasterLogFile:       m.getString("Source_Log_File", "Master_Log_File"),
		ReadMasterLogPos:    m.getInt64("Read_Source_Log_Pos", "Read_Master_Log_Pos"),
		RelayMasterLogFile:  m.getString("Relay_Source_Log_File", "Relay_Master_Log_File"),
		ExecMasterLogPos:    m.getInt64("Exec_Source_Log_Pos", "Exec_Master_Log_Pos"),
		SecondsBehindMaster: m.getInt64Ptr("Seconds_Behind_Source", "Seconds_Behind_Master"),
	}
}

// replicaTerm returns the replication keyword understood by the server.
// MySQL 8.0.22 introduced the REPLICA statements.
func (s *Session) replicaTerm() string {
	if !s.version.mariaDB && s.version.atLeast(8, 0, 22) {
		return "REPLICA"
	}
	return "SLAVE"
}

// parallelWorkersVariable returns the name of the applier worker setting.
func (s *Session) parallelWorkersVariable() string {
	switch {
	case s.version.mariaDB:
		return "slave_parallel_threads"
	case s.version.atLeast(8, 0, 26):
		return "replica_parallel_workers"
	default:
		return "slave_parallel_workers"
	}
}

// ReplicaStatus reads the replica status. Only the first channel is
// considered.
func (s *Session) ReplicaStatus() (*ReplicationStatus, error) {
	rows, err := s.Raw(fmt.Sprintf("SHOW %s STATUS", s.replicaTerm()))
	if err != nil {
		return nil, errors.Annotate(err, "read replica status")
	}
	m, err := readFirstRow(rows)
	if err != nil {
		return nil, errors.Annotate(err, "read replica status")
	}
	if m == nil {
		return &ReplicationStatus{}, nil
	}
	return replicationStatusFromRow(m), nil
}

// ParallelWorkers reads the configured number of parallel applier workers.
func (s *Session) ParallelWorkers() (int64, error) {
	name := s.parallelWorkersVariable()
	value, err := s.GlobalVariable(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.Annotatef(err, "%s is not a number", name)
	}
	return n, nil
}

// StopReplicaThread stops one replication thread.
func (s *Session) StopReplicaThread(thread ReplicaThread) error {
	log.Debugf("Stopping %s.", thread)
	return s.Exec(fmt.Sprintf("STOP %s %s", s.replicaTerm(), thread))
}

// StartReplica starts both replication threads.
func (s *Session) StartReplica() error {
	return s.Exec(fmt.Sprintf("START %s", s.replicaTerm()))
}
