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

	"github.com/jinzhu/gorm"
	// register the mysql dialect for gorm.Open
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// Session is the single administrative connection to the target server.
// Queries are never retried: a failed round trip is returned to the caller.
type Session struct {
	db  *gorm.DB
	opt SourceOptions

	version serverVersion
}

// Open connects to the target server and reads its version.
func Open(opt SourceOptions) (*Session, error) {
	log.Debugf("Connecting to MySQL at %s as %q.", opt.Addr(), opt.User)

	db, err := gorm.Open("mysql", opt.DSN())
	if err != nil {
		return nil, &ConnectionError{Addr: opt.Addr(), Err: err}
	}

	// 禁用日志记录器，不显示任何日志
	db.LogMode(false)
	// One logical session: every statement goes through the same connection.
	db.DB().SetMaxOpenConns(1)
	db.DB().SetMaxIdleConns(1)

	s := &Session{db: db, opt: opt}

	version, err := s.GlobalVariable("version")
	if err != nil {
		s.Close()
		return nil, &ConnectionError{Addr: opt.Addr(), Err: err}
	}
	s.version = parseServerVersion(version)
	log.Debugf("Connected to MySQL %s.", version)
	return s, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Trace(err)
}

// Version returns the server version string.
func (s *Session) Version() string {
	return s.version.raw
}

// Raw runs a query returning rows.
func (s *Session) Raw(sqlStr string, args ...interface{}) (*sql.Rows, error) {
	rows, err := s.db.Raw(sqlStr, args...).Rows()
	if err != nil {
		log.Debugf("query failed: %v sql:%s", err, sqlStr)
		return nil, errors.Trace(err)
	}
	return rows, nil
}

// RawScan runs a query and scans the result into dest by column name.
func (s *Session) RawScan(dest interface{}, sqlStr string, args ...interface{}) error {
	err := s.db.Raw(sqlStr, args...).Scan(dest).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		log.Debugf("query failed: %v sql:%s", err, sqlStr)
	}
	return err
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(sqlStr string, args ...interface{}) error {
	log.Debugf("exec: %s", sqlStr)
	if err := s.db.Exec(sqlStr, args...).Error; err != nil {
		log.Debugf("exec failed: %v sql:%s", err, sqlStr)
		return errors.Trace(err)
	}
	return nil
}
