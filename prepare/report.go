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
	"bytes"
	"strconv"

	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/olekukonko/tablewriter"
)

// TransactionColumns are the headers of the open transaction table.
var TransactionColumns = []string{
	"trx_id",
	"trx_started",
	"trx_duration_seconds",
	"processlist_id",
	"user",
	"host",
	"command",
	"time",
	"info_25",
}

// Reporter renders rows for the operator.
type Reporter interface {
	Render(rows [][]string, columns []string) string
}

// TableReporter draws an ASCII table.
type TableReporter struct{}

// Render implements Reporter.
func (TableReporter) Render(rows [][]string, columns []string) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
	return buf.String()
}

const trxTimeFormat = "2006-01-02 15:04:05"

func transactionRows(trxs []session.OpenTransaction) [][]string {
	rows := make([][]string, 0, len(trxs))
	for _, t := range trxs {
		rows = append(rows, []string{
			t.ID,
			t.StartedAt.Format(trxTimeFormat),
			strconv.FormatInt(t.DurationSeconds, 10),
			strconv.FormatUint(t.ConnectionID, 10),
			t.User,
			t.Host,
			t.Command,
			strconv.FormatInt(t.ElapsedTime, 10),
			t.Info,
		})
	}
	return rows
}
