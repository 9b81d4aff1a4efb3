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
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/gorm"
	"github.com/pingcap/errors"
)

// variableRow is one row of SHOW GLOBAL VARIABLES / SHOW GLOBAL STATUS.
type variableRow struct {
	Name  string `gorm:"column:Variable_name"`
	Value string `gorm:"column:Value"`
}

var variableNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (s *Session) showGlobal(kind, name string) (string, error) {
	var row variableRow
	sqlStr := fmt.Sprintf("SHOW GLOBAL %s WHERE Variable_name = ?", kind)
	err := s.RawScan(&row, sqlStr, name)
	if gorm.IsRecordNotFoundError(err) {
		return "", errors.Annotate(ErrVariableNotFound, name)
	}
	if err != nil {
		return "", errors.Annotatef(err, "read %s", name)
	}
	return row.Value, nil
}

// GlobalVariable reads one global system variable.
func (s *Session) GlobalVariable(name string) (string, error) {
	return s.showGlobal("VARIABLES", name)
}

// StatusCounter reads one numeric global status counter.
func (s *Session) StatusCounter(name string) (int64, error) {
	value, err := s.showGlobal("STATUS", name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.Annotatef(err, "status %s is not a number", name)
	}
	return n, nil
}

// SetGlobalVariable runs SET GLOBAL name = value. Numbers and the ON/OFF
// keywords are sent bare, anything else as a quoted string.
func (s *Session) SetGlobalVariable(name, value string) error {
	if !variableNameRegexp.MatchString(name) {
		return errors.Errorf("invalid variable name %q", name)
	}
	return errors.Annotatef(s.Exec(fmt.Sprintf("SET GLOBAL %s = %s", name, globalValueLiteral(value))),
		"set %s", name)
}

func globalValueLiteral(value string) string {
	switch strings.ToUpper(value) {
	case "ON", "OFF":
		return strings.ToUpper(value)
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value) + "'"
}

// serverVersion is the parsed value of the version variable.
type serverVersion struct {
	raw     string
	major   int
	minor   int
	patch   int
	mariaDB bool
}

func parseServerVersion(raw string) serverVersion {
	v := serverVersion{
		raw:     raw,
		mariaDB: strings.Contains(strings.ToLower(raw), "mariadb"),
	}
	numbers := raw
	if i := strings.IndexFunc(raw, func(r rune) bool { return r != '.' && (r < '0' || r > '9') }); i >= 0 {
		numbers = raw[:i]
	}
	parts := strings.SplitN(numbers, ".", 3)
	fields := []*int{&v.major, &v.minor, &v.patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		*fields[i] = n
	}
	return v
}

// atLeast reports whether the version is major.minor.patch or newer.
func (v serverVersion) atLeast(major, minor, patch int) bool {
	if v.major != major {
		return v.major > major
	}
	if v.minor != minor {
		return v.minor > minor
	}
	return v.patch >= patch
}
