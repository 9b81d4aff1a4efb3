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
)

// PollState is how a bounded poll ended.
type PollState int

// Poll end states.
const (
	PollSettled PollState = iota
	PollTimedOut
	PollCancelled
)

func (s PollState) String() string {
	switch s {
	case PollSettled:
		return "settled"
	case PollTimedOut:
		return "timed out"
	case PollCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Poll calls probe until done accepts its value, timeout elapses or ctx is
// cancelled. The first probe runs immediately, later ones every interval.
// Cancellation is only observed between probes. A probe error stops the poll
// and is returned as is, together with the last good value.
func Poll[T any](ctx context.Context, probe func() (T, error), done func(T) bool,
	interval, timeout time.Duration) (T, PollState, error) {
	var last T
	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return last, PollCancelled, nil
		}

		v, err := probe()
		if err != nil {
			return last, PollSettled, errors.Trace(err)
		}
		last = v
		if done(v) {
			return v, PollSettled, nil
		}
		if !time.Now().Before(deadline) {
			return v, PollTimedOut, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, PollCancelled, nil
		case <-timer.C:
		}
	}
}
