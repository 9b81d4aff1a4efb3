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
	"context"
	"strings"
	"time"

	"github.com/hanchuanchuan/goPrepareShutdown/session"
	. "github.com/pingcap/check"
	"github.com/pingcap/errors"
	"go.uber.org/multierr"
)

var _ = Suite(&testComponentSuite{})

type testComponentSuite struct{}

func (s *testComponentSuite) TestPoll(c *C) {
	ctx := context.Background()
	calls := 0
	probe := func() (int, error) {
		calls++
		return calls, nil
	}

	v, state, err := Poll(ctx, probe, func(n int) bool { return n == 3 }, time.Millisecond, time.Minute)
	c.Assert(err, IsNil)
	c.Assert(state, Equals, PollSettled)
	c.Assert(v, Equals, 3)

	calls = 0
	v, state, err = Poll(ctx, probe, func(n int) bool { return false }, time.Millisecond, 0)
	c.Assert(err, IsNil)
	c.Assert(state, Equals, PollTimedOut)
	c.Assert(v, Equals, 1)

	calls = 0
	start := time.Now()
	_, state, err = Poll(ctx, probe, func(n int) bool { return false }, time.Millisecond, 20*time.Millisecond)
	c.Assert(err, IsNil)
	c.Assert(state, Equals, PollTimedOut)
	c.Assert(time.Since(start) >= 20*time.Millisecond, IsTrue)
	c.Assert(calls > 1, IsTrue)

	cctx, cancel := context.WithCancel(ctx)
	calls = 0
	v, state, err = Poll(cctx, probe, func(n int) bool {
		if n == 2 {
			cancel()
		}
		return false
	}, time.Millisecond, time.Minute)
	c.Assert(err, IsNil)
	c.Assert(state, Equals, PollCancelled)
	c.Assert(v, Equals, 2)
	c.Assert(state.String(), Equals, "cancelled")

	boom := errors.New("boom")
	calls = 0
	v, _, err = Poll(ctx, func() (int, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return calls, nil
	}, func(n int) bool { return false }, time.Millisecond, time.Minute)
	c.Assert(errors.Cause(err), Equals, boom)
	c.Assert(v, Equals, 1)
}

func (s *testComponentSuite) TestSettleRule(c *C) {
	d := NewDrainer(newFakeServer(), DefaultSettleRatio, DefaultSettleFloor)
	tests := []struct {
		count    int64
		baseline int64
		reason   string
	}{
		{0, 0, "Dirty pages is 0."},
		{0, 1000, "Dirty pages is 0."},
		{99, 1000, "Dirty pages < 10% of the starting count."},
		{100, 1000, "Dirty pages < 500."},
		{499, 100, "Dirty pages < 500."},
		{500, 1000, ""},
		{999, 10000, "Dirty pages < 10% of the starting count."},
		{1000, 10000, ""},
		{600, 1000, ""},
	}
	for _, t := range tests {
		c.Assert(d.settleReason(t.count, t.baseline), Equals, t.reason,
			Commentf("count %d baseline %d", t.count, t.baseline))
	}
}

func (s *testComponentSuite) TestDrainRatioSequence(c *C) {
	srv := newFakeServer()
	srv.dirty = []int64{1000, 600, 150, 90}
	// No absolute floor: only the ratio rule can settle.
	d := NewDrainer(srv, DefaultSettleRatio, 0)
	c.Assert(d.State(), Equals, DrainInitial)
	c.Assert(d.SetBound(0), IsNil)
	c.Assert(d.State(), Equals, DrainDraining)
	c.Assert(srv.statements, DeepEquals, []string{"SET GLOBAL innodb_max_dirty_pages_pct = 0"})

	report, err := d.PollUntilSettled(context.Background(), 1000, time.Minute, time.Millisecond)
	c.Assert(err, IsNil)
	c.Assert(d.State(), Equals, DrainSettled)
	c.Assert(report.State, Equals, DrainSettled)
	c.Assert(report.Readings, Equals, 4)
	c.Assert(report.Last.Count, Equals, int64(90))
	c.Assert(report.Reason, Equals, "Dirty pages < 10% of the starting count.")
}

func (s *testComponentSuite) TestDrainFloorSequence(c *C) {
	srv := newFakeServer()
	srv.dirty = []int64{1000, 600, 150, 90}
	d := NewDrainer(srv, DefaultSettleRatio, DefaultSettleFloor)
	report, err := d.PollUntilSettled(context.Background(), 1000, time.Minute, time.Millisecond)
	c.Assert(err, IsNil)
	c.Assert(report.Readings, Equals, 3)
	c.Assert(report.Last.Count, Equals, int64(150))
	c.Assert(report.Reason, Equals, "Dirty pages < 500.")
}

func (s *testComponentSuite) TestDrainTimeout(c *C) {
	srv := newFakeServer()
	srv.dirty = []int64{8000}
	d := NewDrainer(srv, DefaultSettleRatio, DefaultSettleFloor)
	c.Assert(d.SetBound(0), IsNil)
	report, err := d.PollUntilSettled(context.Background(), 8000, 10*time.Millisecond, time.Millisecond)
	c.Assert(err, IsNil)
	c.Assert(report.State, Equals, DrainTimedOut)
	c.Assert(d.State(), Equals, DrainTimedOut)
	c.Assert(report.Reason, Equals, "")
	c.Assert(DrainTimedOut.String(), Equals, "timed out")
}

func (s *testComponentSuite) TestStopReplicationIdempotent(c *C) {
	srv := newFakeReplica(false, false)
	rc := NewReplicationController(srv, 10*time.Second)
	rc.sleep = func(time.Duration) { c.Fatal("unexpected grace sleep") }

	status, err := rc.DetectRole()
	c.Assert(err, IsNil)
	c.Assert(status.IsReplica, IsTrue)
	stopped, err := rc.StopReplicationSingleThreaded(status)
	c.Assert(err, IsNil)
	c.Assert(stopped, IsFalse)
	c.Assert(srv.statements, HasLen, 0)
}

func (s *testComponentSuite) TestStopReplicationSQLThreadOnly(c *C) {
	srv := newFakeReplica(false, true)
	rc := NewReplicationController(srv, 7*time.Second)
	var slept []time.Duration
	rc.sleep = func(d time.Duration) { slept = append(slept, d) }

	status, err := rc.DetectRole()
	c.Assert(err, IsNil)
	stopped, err := rc.StopReplicationSingleThreaded(status)
	c.Assert(err, IsNil)
	c.Assert(stopped, IsTrue)
	c.Assert(slept, DeepEquals, []time.Duration{7 * time.Second})
	c.Assert(srv.statements, DeepEquals, []string{"STOP REPLICA SQL_THREAD"})
}

func (s *testComponentSuite) TestStopReplicationPartialFailure(c *C) {
	srv := newFakeReplica(true, true)
	srv.fail["STOP "+string(session.SQLThread)] = errFakeConnection
	rc := NewReplicationController(srv, 0)
	rc.sleep = func(time.Duration) {}

	status, err := rc.DetectRole()
	c.Assert(err, IsNil)
	stopped, err := rc.StopReplicationSingleThreaded(status)
	c.Assert(errors.Cause(err), Equals, errFakeConnection)
	c.Assert(stopped, IsTrue)
}

func (s *testComponentSuite) TestDetectRolePrimary(c *C) {
	srv := newFakeServer()
	rc := NewReplicationController(srv, 0)
	status, err := rc.DetectRole()
	c.Assert(err, IsNil)
	c.Assert(status.IsReplica, IsFalse)
}

func (s *testComponentSuite) TestDetectRoleWorkers(c *C) {
	srv := newFakeReplica(true, true)
	srv.workers = 2
	rc := NewReplicationController(srv, 0)
	status, err := rc.DetectRole()
	c.Assert(err, IsNil)
	c.Assert(status.ParallelWorkers, Equals, int64(2))
	_, err = rc.StopReplicationSingleThreaded(status)
	c.Assert(errors.Cause(err), Equals, ErrMultiThreadedReplica)
	c.Assert(srv.statements, HasLen, 0)
}

func (s *testComponentSuite) TestRestart(c *C) {
	srv := newFakeReplica(false, false)
	rc := NewReplicationController(srv, 0)
	c.Assert(rc.Restart(), IsNil)
	c.Assert(srv.statements, DeepEquals, []string{"START REPLICA"})
	c.Assert(srv.replica.ReplicationRunning(), IsTrue)
}

func (s *testComponentSuite) TestCompensations(c *C) {
	var order []string
	var undo Compensations
	undo.Push("first", func() error {
		order = append(order, "first")
		return nil
	})
	undo.Push("second", func() error {
		order = append(order, "second")
		return errFakeConnection
	})
	undo.Push("third", func() error {
		order = append(order, "third")
		return nil
	})
	c.Assert(undo.Len(), Equals, 3)
	c.Assert(undo.Names(), DeepEquals, []string{"third", "second", "first"})

	err := undo.Run()
	c.Assert(errors.Cause(err), Equals, errFakeConnection)
	c.Assert(err, ErrorMatches, "second: invalid connection")
	c.Assert(order, DeepEquals, []string{"third", "second", "first"})
	c.Assert(undo.Len(), Equals, 0)

	undo.Push("dropped", func() error {
		c.Fatal("discarded action ran")
		return nil
	})
	undo.Discard()
	c.Assert(undo.Run(), IsNil)

	fail := func() error { return errFakeConnection }
	undo.Push("restore a", fail)
	undo.Push("restore b", fail)
	err = undo.Run()
	c.Assert(multierr.Errors(err), HasLen, 2)
	c.Assert(err, ErrorMatches, "restore b: invalid connection; restore a: invalid connection")
}

func (s *testComponentSuite) TestGlobalChange(c *C) {
	srv := newFakeServer()
	change, err := CaptureGlobal(srv, VarMaxDirtyPagesPct)
	c.Assert(err, IsNil)
	c.Assert(change.Original, Equals, "90.000000")

	c.Assert(srv.SetGlobalVariable(VarMaxDirtyPagesPct, "0"), IsNil)
	c.Assert(change.Restore(), IsNil)
	c.Assert(srv.variables[VarMaxDirtyPagesPct], Equals, "90.000000")

	_, err = CaptureGlobal(srv, "no_such_variable")
	c.Assert(errors.Cause(err), Equals, session.ErrVariableNotFound)
}

func (s *testComponentSuite) TestTransactionGuard(c *C) {
	srv := newFakeServer()
	g := NewTransactionGuard(srv, 0, nil, nil)
	trxs, err := g.FindLongRunningTransactions()
	c.Assert(err, IsNil)
	c.Assert(g.Evaluate(trxs), IsNil)
	c.Assert(srv.trxThresholds, DeepEquals, []time.Duration{DefaultTrxThreshold})

	srv.fail["innodb_trx"] = errFakeConnection
	_, err = g.FindLongRunningTransactions()
	c.Assert(errors.Cause(err), Equals, errFakeConnection)

	var out strings.Builder
	g = NewTransactionGuard(srv, 2*time.Minute, nil, &out)
	err = g.Evaluate([]session.OpenTransaction{{ID: "9", Info: "select sleep(1000)"}})
	c.Assert(err, ErrorMatches, "Transaction\\(s\\) found running > 120 seconds.*")
	c.Assert(out.Len() > 0, IsTrue)
}

func (s *testComponentSuite) TestTableReporter(c *C) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	rows := transactionRows([]session.OpenTransaction{
		{ID: "1001", StartedAt: started, DurationSeconds: 95, ConnectionID: 33, User: "app",
			Host: "10.0.0.8", Command: "Query", ElapsedTime: 90, Info: "update t1 set c1 = 2"},
		{ID: "1002", StartedAt: started.Add(10 * time.Second), DurationSeconds: 85, ConnectionID: 34,
			User: "batch", Host: "10.0.0.9", Command: "Sleep", ElapsedTime: 80},
	})
	c.Assert(rows[0], DeepEquals, []string{"1001", "2024-05-01 10:00:00", "95", "33", "app", "10.0.0.8",
		"Query", "90", "update t1 set c1 = 2"})

	text := TableReporter{}.Render(rows, TransactionColumns)
	for _, column := range TransactionColumns {
		c.Assert(strings.Contains(text, column), IsTrue, Commentf("column %s", column))
	}
	// Oldest transaction first.
	c.Assert(strings.Index(text, "1001") < strings.Index(text, "1002"), IsTrue)
	c.Assert(strings.Contains(text, "update t1 set c1 = 2"), IsTrue)
}

func (s *testComponentSuite) TestTuner(c *C) {
	srv := newFakeServer()
	t := NewTuner(srv)
	c.Assert(t.DisableFastShutdownPath(), IsNil)
	loaded, err := t.EnablePersistedBufferState(60)
	c.Assert(err, IsNil)
	c.Assert(loaded, IsTrue)
	c.Assert(srv.statements, DeepEquals, []string{
		"SET GLOBAL innodb_fast_shutdown = 0",
		"SET GLOBAL innodb_buffer_pool_dump_at_shutdown = ON",
		"SET GLOBAL innodb_buffer_pool_dump_pct = 60",
	})

	srv.variables[VarLoadAtStartup] = "OFF"
	loaded, err = t.EnablePersistedBufferState(DefaultBufferPoolDumpPct)
	c.Assert(err, IsNil)
	c.Assert(loaded, IsFalse)
}
