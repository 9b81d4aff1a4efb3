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

package session

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pingcap/errors"
)

// InfoSnippetLength is how much of the running statement is kept.
const InfoSnippetLength = 25

// OpenTransaction is an InnoDB transaction joined with its processlist entry.
type OpenTransaction struct {
	ID              string
	StartedAt       time.Time
	DurationSeconds int64
	ConnectionID    uint64
	User            string
	Host            string
	Command         string
	ElapsedTime     int64
	Info            string
}

// trxRow is the column contract of longRunningTrxSQL. Columns are
// matched by alias, never by position.
type trxRow struct {
	TrxID           string         `gorm:"column:trx_id"`
	TrxStarted      time.Time      `gorm:"column:trx_started"`
	DurationSeconds int64          `gorm:"column:trx_duration_seconds"`
	ProcesslistID   uint64         `gorm:"column:processlist_id"`
	User            sql.NullString `gorm:"column:user"`
	Host            sql.NullString `gorm:"column:host"`
	Command         sql.NullString `gorm:"column:command"`
	Time            int64          `gorm:"column:time"`
	Info            sql.NullString `gorm:"column:info"`
}

const longRunningTrxSQL = `SELECT trx.trx_id AS trx_id,
	trx.trx_started AS trx_started,
	TIMESTAMPDIFF(SECOND, trx.trx_started, NOW()) AS trx_duration_seconds,
	p.id AS processlist_id,
	p.user AS user,
	p.host AS host,
	p.command AS command,
	p.time AS time,
	p.info AS info
FROM information_schema.innodb_trx trx
JOIN information_schema.processlist p ON trx.trx_mysql_thread_id = p.id
WHERE TIMESTAMPDIFF(SECOND, trx.trx_started, NOW()) > ?
ORDER BY trx.trx_started`

// LongRunningTransactions returns the transactions open longer than
// threshold, oldest first.
func (s *Session) LongRunningTransactions(threshold time.Duration) ([]OpenTransaction, error) {
	var rows []trxRow
	if err := s.RawScan(&rows, longRunningTrxSQL, int64(threshold/time.Second)); err != nil {
		return nil, errors.Annotate(err, "read long running transactions")
	}

	trxs := make([]OpenTransaction, 0, len(rows))
	for _, r := range rows {
		trxs = append(trxs, OpenTransaction{
			ID:              r.TrxID,
			StartedAt:       r.TrxStarted,
			DurationSeconds: r.DurationSeconds,
			ConnectionID:    r.ProcesslistID,
			User:            r.User.String,
			Host:            NormalizeHost(r.Host.String),
			Command:         r.Command.String,
			ElapsedTime:     r.Time,
			Info:            InfoSnippet(r.Info.String),
		})
	}
	return trxs, nil
}

// NormalizeHost strips the port from a processlist "host:port" value.
// The raw value is kept when nothing is left.
func NormalizeHost(host string) string {
	i := strings.Index(host, ":")
	if i <= 0 {
		return host
	}
	return host[:i]
}

// InfoSnippet keeps the first InfoSnippetLength characters of a statement
// with the newlines removed.
func InfoSnippet(info string) string {
	runes := []rune(info)
	if len(runes) > InfoSnippetLength {
		runes = runes[:InfoSnippetLength]
	}
	return strings.ReplaceAll(string(runes), "\n", "")
}
