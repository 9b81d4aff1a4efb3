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
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
)

// ErrVariableNotFound is returned when a named variable or status counter
// does not exist on the server.
var ErrVariableNotFound = errors.New("variable not found")

// ConnectionError records a failure to establish the session.
type ConnectionError struct {
	Addr string
	Err  error
}

// Error prints errors, with a formatted string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to MySQL at %s: %s", e.Addr, ErrorMessage(e.Err))
}

// Cause returns the underlying driver error.
func (e *ConnectionError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying driver error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ErrorMessage renders server errors the way the mysql client does,
// "ERROR <code>: <message>". Other errors keep their own text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if myErr, ok := errors.Cause(err).(*mysqlDriver.MySQLError); ok {
		return fmt.Sprintf("ERROR %d: %s", myErr.Number, myErr.Message)
	}
	return err.Error()
}
