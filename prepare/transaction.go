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
	"io"
	"time"

	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultTrxThreshold is the age above which a transaction blocks the run.
const DefaultTrxThreshold = 60 * time.Second

// TransactionGuard refuses to continue while old transactions are open.
type TransactionGuard struct {
	srv       Server
	threshold time.Duration
	reporter  Reporter
	out       io.Writer
}

// NewTransactionGuard creates a TransactionGuard. The diagnostic table of
// offending transactions is written to out.
func NewTransactionGuard(srv Server, threshold time.Duration, reporter Reporter, out io.Writer) *TransactionGuard {
	if threshold <= 0 {
		threshold = DefaultTrxThreshold
	}
	if reporter == nil {
		reporter = TableReporter{}
	}
	return &TransactionGuard{srv: srv, threshold: threshold, reporter: reporter, out: out}
}

// FindLongRunningTransactions returns the transactions open longer than the
// threshold, oldest first.
func (g *TransactionGuard) FindLongRunningTransactions() ([]session.OpenTransaction, error) {
	log.Info("Checking for long running transactions.")
	trxs, err := g.srv.LongRunningTransactions(g.threshold)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return trxs, nil
}

// Evaluate fails with *OpenTransactionsError when trxs is not empty, after
// printing every offending transaction.
func (g *TransactionGuard) Evaluate(trxs []session.OpenTransaction) error {
	if len(trxs) == 0 {
		log.Debugf("There are no transactions running > %d seconds.", int64(g.threshold/time.Second))
		return nil
	}
	if g.out != nil {
		if _, err := io.WriteString(g.out, g.reporter.Render(transactionRows(trxs), TransactionColumns)); err != nil {
			log.Warnf("write transaction table: %v", err)
		}
	}
	return &OpenTransactionsError{Threshold: g.threshold, Transactions: trxs}
}
