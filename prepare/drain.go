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
	"fmt"
	"strconv"
	"time"

	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// Settle rule defaults.
const (
	DefaultSettleRatio = 0.10
	DefaultSettleFloor = 500
)

// DrainState is the state of a Drainer.
type DrainState int

// Drainer states.
const (
	DrainInitial DrainState = iota
	DrainDraining
	DrainSettled
	DrainTimedOut
)

func (s DrainState) String() string {
	switch s {
	case DrainInitial:
		return "initial"
	case DrainDraining:
		return "draining"
	case DrainSettled:
		return "settled"
	case DrainTimedOut:
		return "timed out"
	}
	return "unknown"
}

// DirtyPageReading is one sample of Innodb_buffer_pool_pages_dirty.
type DirtyPageReading struct {
	Count      int64
	ObservedAt time.Time
}

// DrainReport summarizes PollUntilSettled.
type DrainReport struct {
	State    DrainState
	Baseline int64
	Last     DirtyPageReading
	Readings int
	// Reason names the settle condition that matched.
	Reason string
}

// Drainer lowers the dirty page bound and waits for InnoDB to flush.
type Drainer struct {
	srv   Server
	ratio float64
	floor int64
	state DrainState
}

// NewDrainer creates a Drainer with the settle rule r == 0, r < ratio*B,
// r < floor.
func NewDrainer(srv Server, ratio float64, floor int64) *Drainer {
	return &Drainer{srv: srv, ratio: ratio, floor: floor}
}

// State returns the current state.
func (d *Drainer) State() DrainState {
	return d.state
}

// ReadDirtyPages takes one reading of the dirty page counter.
func (d *Drainer) ReadDirtyPages() (DirtyPageReading, error) {
	n, err := d.srv.StatusCounter(StatusPagesDirty)
	if err != nil {
		return DirtyPageReading{}, errors.Trace(err)
	}
	return DirtyPageReading{Count: n, ObservedAt: time.Now()}, nil
}

// SetBound sets innodb_max_dirty_pages_pct. The caller captures the
// previous value first.
func (d *Drainer) SetBound(pct float64) error {
	value := strconv.FormatFloat(pct, 'f', -1, 64)
	log.Infof("Setting %s to %s.", VarMaxDirtyPagesPct, value)
	if err := d.srv.SetGlobalVariable(VarMaxDirtyPagesPct, value); err != nil {
		return errors.Trace(err)
	}
	d.state = DrainDraining
	return nil
}

// settleReason returns which settle condition count meets, checked in
// order, or "" if none does.
func (d *Drainer) settleReason(count, baseline int64) string {
	switch {
	case count == 0:
		return "Dirty pages is 0."
	case float64(count) < d.ratio*float64(baseline):
		return fmt.Sprintf("Dirty pages < %s%% of the starting count.", strconv.FormatFloat(d.ratio*100, 'g', 4, 64))
	case count < d.floor:
		return fmt.Sprintf("Dirty pages < %d.", d.floor)
	}
	return ""
}

// PollUntilSettled reads the dirty page counter every interval until it
// settles relative to baseline or timeout elapses. A timeout is not an
// error. ErrCancelled is returned when ctx is cancelled.
func (d *Drainer) PollUntilSettled(ctx context.Context, baseline int64, timeout, interval time.Duration) (*DrainReport, error) {
	log.Debugf("Checking dirty pages. The starting count is %d.", baseline)
	report := &DrainReport{Baseline: baseline}

	probe := func() (DirtyPageReading, error) {
		r, err := d.ReadDirtyPages()
		if err == nil {
			report.Readings++
			log.Debugf("Dirty pages is %d.", r.Count)
		}
		return r, err
	}
	settled := func(r DirtyPageReading) bool {
		report.Reason = d.settleReason(r.Count, baseline)
		if report.Reason == "" {
			log.Infof("Dirty pages is %d, waiting (up to %s) for it to get lower.", r.Count, timeout)
			return false
		}
		return true
	}

	last, state, err := Poll(ctx, probe, settled, interval, timeout)
	report.Last = last
	if err != nil {
		return report, errors.Trace(err)
	}

	switch state {
	case PollSettled:
		d.state = DrainSettled
		report.State = d.state
		log.Info(report.Reason)
	case PollTimedOut:
		d.state = DrainTimedOut
		report.State = d.state
		log.Warnf("Dirty pages is %d, and did not settle after %s.", last.Count, timeout)
	case PollCancelled:
		report.State = d.state
		return report, errors.Trace(ErrCancelled)
	}
	return report, nil
}
