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
	"fmt"
	"strings"
	"time"

	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/pingcap/errors"
)

// fakeServer is an in-memory Server. Every statement that changes state is
// recorded in statements.
type fakeServer struct {
	variables map[string]string

	replica *session.ReplicationStatus
	// catchUp is returned by ReplicaStatus once replication was stopped, one
	// element per call, the last one repeating.
	catchUp      []*session.ReplicationStatus
	catchUpReads int
	workers      int64

	// dirty is returned by successive reads of the dirty page counter, the
	// last one repeating.
	dirty      []int64
	dirtyReads int
	// onDirtyRead runs after every dirty page read with its 1-based number.
	onDirtyRead func(n int)

	trxs          []session.OpenTransaction
	trxThresholds []time.Duration
	// onTrxCheck runs when the long running transactions are read.
	onTrxCheck func()

	// fail makes the statement or read with the given name fail.
	fail map[string]error

	statements []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		variables: map[string]string{
			VarMaxDirtyPagesPct: "90.000000",
			VarFastShutdown:     "1",
			VarDumpAtShutdown:   "OFF",
			VarDumpPct:          "25",
			VarLoadAtStartup:    "ON",
		},
		replica: &session.ReplicationStatus{},
		dirty:   []int64{0},
		fail:    map[string]error{},
	}
}

func newFakeReplica(ioRunning, sqlRunning bool) *fakeServer {
	s := newFakeServer()
	s.replica = &session.ReplicationStatus{
		IsReplica:          true,
		IOThreadRunning:    ioRunning,
		SQLThreadRunning:   sqlRunning,
		MasterLogFile:      "mysql-bin.000010",
		ReadMasterLogPos:   4096,
		RelayMasterLogFile: "mysql-bin.000010",
		ExecMasterLogPos:   4096,
	}
	return s
}

var errFakeConnection = errors.New("invalid connection")

func (s *fakeServer) failed(name string) error {
	if err, ok := s.fail[name]; ok {
		return err
	}
	return nil
}

func (s *fakeServer) GlobalVariable(name string) (string, error) {
	if err := s.failed(name); err != nil {
		return "", err
	}
	v, ok := s.variables[name]
	if !ok {
		return "", errors.Annotate(session.ErrVariableNotFound, name)
	}
	return v, nil
}

func (s *fakeServer) StatusCounter(name string) (int64, error) {
	if err := s.failed(name); err != nil {
		return 0, err
	}
	if name != StatusPagesDirty {
		return 0, errors.Annotate(session.ErrVariableNotFound, name)
	}
	i := s.dirtyReads
	if i >= len(s.dirty) {
		i = len(s.dirty) - 1
	}
	s.dirtyReads++
	if s.onDirtyRead != nil {
		s.onDirtyRead(s.dirtyReads)
	}
	return s.dirty[i], nil
}

func (s *fakeServer) SetGlobalVariable(name, value string) error {
	s.statements = append(s.statements, fmt.Sprintf("SET GLOBAL %s = %s", name, value))
	if err := s.failed("SET " + name); err != nil {
		return err
	}
	s.variables[name] = value
	return nil
}

func (s *fakeServer) ReplicaStatus() (*session.ReplicationStatus, error) {
	if err := s.failed("SHOW REPLICA STATUS"); err != nil {
		return nil, err
	}
	if s.replica.IsReplica && !s.replica.ReplicationRunning() && len(s.catchUp) > 0 {
		i := s.catchUpReads
		if i >= len(s.catchUp) {
			i = len(s.catchUp) - 1
		}
		s.catchUpReads++
		st := *s.catchUp[i]
		st.IsReplica = true
		return &st, nil
	}
	st := *s.replica
	return &st, nil
}

func (s *fakeServer) ParallelWorkers() (int64, error) {
	return s.workers, nil
}

func (s *fakeServer) StopReplicaThread(thread session.ReplicaThread) error {
	s.statements = append(s.statements, "STOP REPLICA "+string(thread))
	if err := s.failed("STOP " + string(thread)); err != nil {
		return err
	}
	switch thread {
	case session.IOThread:
		s.replica.IOThreadRunning = false
	case session.SQLThread:
		s.replica.SQLThreadRunning = false
	}
	return nil
}

func (s *fakeServer) StartReplica() error {
	s.statements = append(s.statements, "START REPLICA")
	s.replica.IOThreadRunning = true
	s.replica.SQLThreadRunning = true
	return nil
}

func (s *fakeServer) LongRunningTransactions(threshold time.Duration) ([]session.OpenTransaction, error) {
	s.trxThresholds = append(s.trxThresholds, threshold)
	if s.onTrxCheck != nil {
		s.onTrxCheck()
	}
	if err := s.failed("innodb_trx"); err != nil {
		return nil, err
	}
	return s.trxs, nil
}

// mutations returns the recorded SET GLOBAL statements.
func (s *fakeServer) mutations() []string {
	var sets []string
	for _, stmt := range s.statements {
		if strings.HasPrefix(stmt, "SET GLOBAL") {
			sets = append(sets, stmt)
		}
	}
	return sets
}

func (s *fakeServer) ran(stmt string) bool {
	for _, st := range s.statements {
		if st == stmt {
			return true
		}
	}
	return false
}
