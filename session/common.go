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
	"net"
	"strconv"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

const (
	// DefaultHost is the host name that selects the unix socket.
	DefaultHost = "localhost"
	// DefaultConnectTimeout bounds the initial dial.
	DefaultConnectTimeout = 10 * time.Second
)

// SourceOptions 目标数据库连接参数
type SourceOptions struct {
	Host     string
	Port     int
	Socket   string
	User     string
	Password string

	// ConnectTimeout is the dial timeout, DefaultConnectTimeout when zero.
	ConnectTimeout time.Duration
}

// useSocket follows the mysql client rule: "localhost" means the unix socket.
func (opt *SourceOptions) useSocket() bool {
	return opt.Socket != "" && (opt.Host == "" || opt.Host == DefaultHost)
}

// Addr returns a printable address of the target server.
func (opt *SourceOptions) Addr() string {
	if opt.useSocket() {
		return opt.Socket
	}
	return net.JoinHostPort(opt.Host, strconv.Itoa(opt.Port))
}

// DSN builds the go-sql-driver data source name.
func (opt *SourceOptions) DSN() string {
	cfg := mysqlDriver.NewConfig()
	cfg.User = opt.User
	cfg.Passwd = opt.Password
	if opt.useSocket() {
		cfg.Net = "unix"
	} else {
		cfg.Net = "tcp"
	}
	cfg.Addr = opt.Addr()
	cfg.Timeout = opt.ConnectTimeout
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConnectTimeout
	}
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.InterpolateParams = true
	cfg.Params = map[string]string{
		"charset": "utf8mb4",
	}
	return cfg.FormatDSN()
}
