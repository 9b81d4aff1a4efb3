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
	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/pingcap/errors"
)

// Outcome is the result of one preparation run.
type Outcome int

// Outcomes.
const (
	Prepared Outcome = iota
	AbortedMultiThreadedReplica
	AbortedOpenTransactions
	AbortedByOperator
	AbortedConnectionError
	AbortedDrainTimeout
)

var outcomeNames = map[Outcome]string{
	Prepared:                    "prepared",
	AbortedMultiThreadedReplica: "aborted: multi-threaded replica",
	AbortedOpenTransactions:     "aborted: open transactions",
	AbortedByOperator:           "aborted by operator",
	AbortedConnectionError:      "aborted: connection error",
	AbortedDrainTimeout:         "aborted: dirty pages did not settle",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// ExitCode maps the outcome to the process exit status.
func (o Outcome) ExitCode() int {
	if o == Prepared {
		return 0
	}
	return 1
}

// outcomeOf classifies the error that aborted a run. Anything that is not
// one of the known abort reasons is a failed round trip to the server.
func outcomeOf(err error) Outcome {
	cause := errors.Cause(err)
	switch cause {
	case nil:
		return Prepared
	case ErrMultiThreadedReplica:
		return AbortedMultiThreadedReplica
	case ErrCancelled:
		return AbortedByOperator
	case ErrDrainTimeout:
		return AbortedDrainTimeout
	}
	if _, ok := cause.(*OpenTransactionsError); ok {
		return AbortedOpenTransactions
	}
	return AbortedConnectionError
}

// RunResult is what Orchestrator.Run reports.
type RunResult struct {
	Outcome Outcome
	// Err is the reason of an abort, nil when prepared.
	Err error
	// Stage is the last stage entered.
	Stage Stage

	Transactions []session.OpenTransaction
	CatchUp      *CatchUpReport
	Drain        *DrainReport
	// LoadAtStartup is false when the buffer pool will not be reloaded
	// automatically after the restart.
	LoadAtStartup bool
}
