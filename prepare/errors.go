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
	"time"

	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/pingcap/errors"
)

var (
	// ErrMultiThreadedReplica is returned for replicas with parallel applier
	// workers. Their stop order is not handled.
	ErrMultiThreadedReplica = errors.New("This is a multi-threaded replica.")
	// ErrCancelled is returned when the operator interrupted a wait.
	ErrCancelled = errors.New("Terminated.")
	// ErrDrainTimeout is returned when dirty pages did not settle and
	// dirty-pages.fail-on-timeout is set.
	ErrDrainTimeout = errors.New("Dirty pages did not settle before the timeout.")
)

// OpenTransactionsError lists the transactions that blocked the run.
type OpenTransactionsError struct {
	Threshold    time.Duration
	Transactions []session.OpenTransaction
}

func (e *OpenTransactionsError) Error() string {
	return fmt.Sprintf("Transaction(s) found running > %d seconds. COMMIT, ROLLBACK, or kill them. "+
		"Otherwise, use the less safe --no-transaction-check.", int64(e.Threshold/time.Second))
}
