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
	"time"

	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// Stage is a step of the preparation sequence.
type Stage int

// Stages, in the order they run.
const (
	StageStart Stage = iota
	StageRoleCheck
	StageTransactionCheck
	StageDirtyDrain
	StageShutdownTune
	StageDone
)

var stageNames = [...]string{
	StageStart:            "start",
	StageRoleCheck:        "role check",
	StageTransactionCheck: "transaction check",
	StageDirtyDrain:       "dirty page drain",
	StageShutdownTune:     "shutdown tune",
	StageDone:             "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Orchestrator runs the preparation sequence against one server. It is the
// only place that decides whether to continue or abort.
type Orchestrator struct {
	srv  Server
	opts Options

	replication *ReplicationController
	guard       *TransactionGuard
	drainer     *Drainer
	tuner       *Tuner

	undo  Compensations
	stage Stage
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(srv Server, opts Options) *Orchestrator {
	return &Orchestrator{
		srv:         srv,
		opts:        opts,
		replication: NewReplicationController(srv, opts.StopGrace),
		guard:       NewTransactionGuard(srv, opts.TrxThreshold, opts.Reporter, opts.Output),
		drainer:     NewDrainer(srv, opts.SettleRatio, opts.SettleFloor),
		tuner:       NewTuner(srv),
	}
}

// Stage returns the stage the run is in, or stopped at.
func (o *Orchestrator) Stage() Stage {
	return o.stage
}

// Run prepares the server for shutdown. Cancelling ctx is honored only while
// waiting for replication to catch up or for dirty pages to drain; the
// changes made so far are then reverted. Run never returns nil.
func (o *Orchestrator) Run(ctx context.Context) *RunResult {
	res := &RunResult{}
	log.Info("[ START ] Preparing MySQL for shutdown.")
	defer timeTrack(time.Now(), "preparation")

	if err := o.checkRole(ctx, res); err != nil {
		return o.abort(res, err)
	}
	if err := o.checkTransactions(res); err != nil {
		return o.abort(res, err)
	}
	if err := o.drain(ctx, res); err != nil {
		return o.abort(res, err)
	}
	if err := o.tune(res); err != nil {
		return o.abort(res, err)
	}

	o.stage = StageDone
	o.undo.Discard()
	res.Stage = o.stage
	res.Outcome = Prepared
	log.Info("[ COMPLETED ] MySQL is prepared for shutdown!")
	return res
}

func (o *Orchestrator) checkRole(ctx context.Context, res *RunResult) error {
	o.stage = StageRoleCheck
	status, err := o.replication.DetectRole()
	if err != nil {
		return err
	}
	if !status.IsReplica {
		return nil
	}

	stopped, err := o.replication.StopReplicationSingleThreaded(status)
	if stopped {
		o.undo.Push("restart replication", o.replication.Restart)
	}
	if err != nil {
		return err
	}

	if o.opts.WaitCatchUp {
		defer timeTrack(time.Now(), "replication catch-up")
		report, err := o.replication.WaitUntilCaughtUp(ctx, o.opts.CatchUpTimeout, o.opts.CatchUpInterval)
		res.CatchUp = report
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) checkTransactions(res *RunResult) error {
	o.stage = StageTransactionCheck
	if o.opts.NoTransactionCheck {
		log.Warn("--no-transaction-check was used. Not checking for long running transactions.")
		return nil
	}

	trxs, err := o.guard.FindLongRunningTransactions()
	if err != nil {
		return err
	}
	res.Transactions = trxs
	return o.guard.Evaluate(trxs)
}

func (o *Orchestrator) drain(ctx context.Context, res *RunResult) error {
	o.stage = StageDirtyDrain
	if ctx.Err() != nil {
		return errors.Trace(ErrCancelled)
	}
	defer timeTrack(time.Now(), "dirty page drain")
	saved, err := CaptureGlobal(o.srv, VarMaxDirtyPagesPct)
	if err != nil {
		return err
	}
	baseline, err := o.drainer.ReadDirtyPages()
	if err != nil {
		return err
	}

	if err := o.drainer.SetBound(o.opts.DirtyPagesTarget); err != nil {
		return err
	}
	o.undo.Push("restore "+VarMaxDirtyPagesPct, saved.Restore)

	report, err := o.drainer.PollUntilSettled(ctx, baseline.Count, o.opts.DrainTimeout, o.opts.DrainPollInterval)
	res.Drain = report
	if err != nil {
		return err
	}
	if report.State == DrainTimedOut && o.opts.FailOnDrainTimeout {
		return errors.Trace(ErrDrainTimeout)
	}
	return nil
}

func (o *Orchestrator) tune(res *RunResult) error {
	o.stage = StageShutdownTune
	if err := o.tuner.DisableFastShutdownPath(); err != nil {
		return err
	}
	loadAtStartup, err := o.tuner.EnablePersistedBufferState(o.opts.BufferPoolDumpPct)
	if err != nil {
		return err
	}
	res.LoadAtStartup = loadAtStartup
	return nil
}

// abort reverts what the run changed and fills in the failure.
func (o *Orchestrator) abort(res *RunResult, err error) *RunResult {
	res.Stage = o.stage
	res.Err = err
	res.Outcome = outcomeOf(err)

	if res.Outcome == AbortedByOperator {
		log.Warn("CTRL+C. Reverting changes.")
	}
	if o.undo.Len() > 0 {
		log.Debugf("Reverting: %v.", o.undo.Names())
		if uerr := o.undo.Run(); uerr != nil {
			log.Errorf("Could not revert every change: %v", uerr)
		}
	}
	return res
}
