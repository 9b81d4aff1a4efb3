// Copyright 2017 PingCAP, Inc.
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

package config

import (
	"os"
	"path/filepath"

	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// clientSection is the option file group read by every MySQL client program.
const clientSection = "client"

// Names of the connection settings that can come from an option file.
const (
	OptHost     = "host"
	OptPort     = "port"
	OptSocket   = "socket"
	OptUser     = "user"
	OptPassword = "password"
)

// ClientOptions is the [client] group of a MySQL option file.
type ClientOptions struct {
	Host     string
	Port     uint
	Socket   string
	User     string
	Password string
}

// DefaultsFilePath returns the option file to read: the configured one, or
// ~/.my.cnf when it exists. An empty result means no option file is used.
func (c *Config) DefaultsFilePath() (string, error) {
	if c.DefaultsFile != "" {
		if _, err := os.Stat(c.DefaultsFile); err != nil {
			return "", errors.Annotatef(err, "defaults file %s", c.DefaultsFile)
		}
		return c.DefaultsFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Debugf("Cannot locate home directory: %v", err)
		return "", nil
	}
	dotMyCnf := filepath.Join(home, ".my.cnf")
	if st, err := os.Stat(dotMyCnf); err != nil || st.IsDir() {
		return "", nil
	}
	return dotMyCnf, nil
}

// LoadMyCnf reads the [client] group of a MySQL option file.
func LoadMyCnf(path string) (*ClientOptions, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SkipUnrecognizableLines:  true,
		SpaceBeforeInlineComment: true,
	}, path)
	if err != nil {
		return nil, errors.Annotatef(err, "read option file %s", path)
	}

	opts := &ClientOptions{}
	if !f.HasSection(clientSection) {
		return opts, nil
	}
	sec := f.Section(clientSection)
	opts.Host = sec.Key(OptHost).String()
	opts.Socket = sec.Key(OptSocket).String()
	opts.User = sec.Key(OptUser).String()
	opts.Password = sec.Key(OptPassword).String()
	if sec.HasKey(OptPort) {
		port, err := sec.Key(OptPort).Uint()
		if err != nil {
			return nil, errors.Annotatef(err, "invalid port in %s", path)
		}
		opts.Port = port
	}
	return opts, nil
}

// MergeClientOptions copies the option file values into the config. Only
// settings still at their built-in default are filled, so the order is
// command line, then config file, then option file. Settings named in
// explicit were given on the command line and are kept.
func (c *Config) MergeClientOptions(opts *ClientOptions, explicit map[string]bool) {
	if opts == nil {
		return
	}
	if opts.Host != "" && !explicit[OptHost] && c.Host == defaultConf.Host {
		c.Host = opts.Host
	}
	if opts.Port != 0 && !explicit[OptPort] && c.Port == defaultConf.Port {
		c.Port = opts.Port
	}
	if opts.Socket != "" && !explicit[OptSocket] && c.Socket == defaultConf.Socket {
		c.Socket = opts.Socket
	}
	if opts.User != "" && !explicit[OptUser] && c.User == defaultConf.User {
		c.User = opts.User
	}
	if opts.Password != "" && !explicit[OptPassword] && c.Password == defaultConf.Password {
		c.Password = opts.Password
	}
}
