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

	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// ReplicationController stops and restarts single-threaded replication.
type ReplicationController struct {
	srv Server
	// grace is how long the SQL thread may keep applying relay events
	// after the IO thread was stopped.
	grace time.Duration
	sleep func(time.Duration)
}

// NewReplicationController creates a ReplicationController.
func NewReplicationController(srv Server, grace time.Duration) *ReplicationController {
	return &ReplicationController{srv: srv, grace: grace, sleep: time.Sleep}
}

// DetectRole reads the replication status. On a replica the number of
// parallel applier workers is filled in as well.
func (rc *ReplicationController) DetectRole() (*session.ReplicationStatus, error) {
	status, err := rc.srv.ReplicaStatus()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if status == nil || !status.IsReplica {
		log.Debug("This is not a replica. Skipping replication tasks.")
		return &session.ReplicationStatus{}, nil
	}
	log.Debug("This is a replica.")

	workers, err := rc.srv.ParallelWorkers()
	if err != nil {
		return nil, errors.Trace(err)
	}
	status.ParallelWorkers = workers
	return status, nil
}

// StopReplicationSingleThreaded stops the IO thread, gives the SQL thread
// the grace interval and stops it too. Threads that are not running are left
// alone. stopped reports whether any thread was stopped by this call, also
// when an error is returned.
func (rc *ReplicationController) StopReplicationSingleThreaded(status *session.ReplicationStatus) (stopped bool, err error) {
	if status.ParallelWorkers > 0 {
		log.Debugf("Replica has %d parallel workers.", status.ParallelWorkers)
		return false, errors.Trace(ErrMultiThreadedReplica)
	}
	if status.ReplicationStopped() {
		log.Info("Replication was already stopped.")
		return false, nil
	}

	log.Info("Stopping replication.")
	if status.IOThreadRunning {
		log.Debug("Stopping IO thread.")
		if err := rc.srv.StopReplicaThread(session.IOThread); err != nil {
			return false, errors.Trace(err)
		}
		stopped = true
	} else {
		log.Debug("IO thread was already stopped.")
	}

	if status.SQLThreadRunning {
		log.Debugf("Giving the SQL thread %s to catch up.", rc.grace)
		rc.sleep(rc.grace)
		log.Debug("Stopping SQL thread.")
		if err := rc.srv.StopReplicaThread(session.SQLThread); err != nil {
			return stopped, errors.Trace(err)
		}
		stopped = true
	} else {
		log.Debug("SQL thread was already stopped.")
	}
	return stopped, nil
}

// CatchUpReport is the result of WaitUntilCaughtUp.
type CatchUpReport struct {
	State  PollState
	Status *session.ReplicationStatus
}

// WaitUntilCaughtUp polls the replica until the SQL thread has executed
// everything the IO thread read. A timeout is not an error. ErrCancelled is
// returned when ctx is cancelled.
func (rc *ReplicationController) WaitUntilCaughtUp(ctx context.Context, timeout, interval time.Duration) (*CatchUpReport, error) {
	log.Debugf("Waiting up to %s for replication to catch up.", timeout)
	status, state, err := Poll(ctx, rc.srv.ReplicaStatus, func(st *session.ReplicationStatus) bool {
		if st == nil || !st.IsReplica || st.CaughtUp() {
			return true
		}
		log.Debugf("Replication is behind: %s.", st.Lag())
		return false
	}, interval, timeout)
	if err != nil {
		return nil, errors.Trace(err)
	}

	report := &CatchUpReport{State: state, Status: status}
	switch state {
	case PollSettled:
		log.Info("Replication is caught up.")
	case PollTimedOut:
		log.Warnf("Replication did not catch up after %s (%s). The replica may not be fully caught up.",
			timeout, status.Lag())
	case PollCancelled:
		return report, errors.Trace(ErrCancelled)
	}
	return report, nil
}

// Restart starts replication again. It only runs as a compensation.
func (rc *ReplicationController) Restart() error {
	log.Info("Restarting replication. There was either a problem or you aborted.")
	return errors.Trace(rc.srv.StartReplica())
}
