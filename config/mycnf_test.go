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

	. "github.com/pingcap/check"
)

var _ = Suite(&testMyCnfSuite{})

type testMyCnfSuite struct{}

func writeOptionFile(c *C, content string) string {
	name := filepath.Join(c.MkDir(), "my.cnf")
	c.Assert(os.WriteFile(name, []byte(content), 0600), IsNil)
	return name
}

func (s *testMyCnfSuite) TestLoadMyCnf(c *C) {
	name := writeOptionFile(c, `
# comment
[mysqld]
datadir = /var/lib/mysql

[client]
user = backup
password = s3c#ret # inline comment
host = db2.example.com
port = 3310
socket = /tmp/mysql.sock
skip-ssl
`)
	opts, err := LoadMyCnf(name)
	c.Assert(err, IsNil)
	c.Assert(opts, DeepEquals, &ClientOptions{
		Host:     "db2.example.com",
		Port:     3310,
		Socket:   "/tmp/mysql.sock",
		User:     "backup",
		Password: "s3c#ret",
	})
}

func (s *testMyCnfSuite) TestLoadMyCnfWithoutClientGroup(c *C) {
	name := writeOptionFile(c, "[mysqld]\nport = 3306\n")
	opts, err := LoadMyCnf(name)
	c.Assert(err, IsNil)
	c.Assert(opts, DeepEquals, &ClientOptions{})
}

func (s *testMyCnfSuite) TestLoadMyCnfBadPort(c *C) {
	name := writeOptionFile(c, "[client]\nport = abc\n")
	_, err := LoadMyCnf(name)
	c.Assert(err, ErrorMatches, "invalid port.*")
}

func (s *testMyCnfSuite) TestMergeClientOptions(c *C) {
	conf := NewConfig()
	conf.User = "from-flag"
	opts := &ClientOptions{
		Host:     "db3",
		Port:     3311,
		User:     "from-file",
		Password: "file-pass",
	}
	conf.MergeClientOptions(opts, map[string]bool{OptUser: true})

	c.Assert(conf.User, Equals, "from-flag")
	c.Assert(conf.Host, Equals, "db3")
	c.Assert(conf.Port, Equals, uint(3311))
	c.Assert(conf.Password, Equals, "file-pass")
	// Empty file values keep the default.
	c.Assert(conf.Socket, Equals, "/var/lib/mysql/mysql.sock")

	conf.MergeClientOptions(nil, nil)
	c.Assert(conf.Host, Equals, "db3")
}

func (s *testMyCnfSuite) TestMergeClientOptionsKeepsConfigFile(c *C) {
	conf := NewConfig()
	name := filepath.Join(c.MkDir(), "prepare.toml")
	c.Assert(os.WriteFile(name, []byte("host = \"db-toml\"\nuser = \"toml-user\"\n"), 0600), IsNil)
	c.Assert(conf.Load(name), IsNil)

	conf.MergeClientOptions(&ClientOptions{
		Host:     "db-cnf",
		Port:     3312,
		User:     "cnf-user",
		Password: "cnf-pass",
	}, nil)

	c.Assert(conf.Host, Equals, "db-toml")
	c.Assert(conf.User, Equals, "toml-user")
	c.Assert(conf.Port, Equals, uint(3312))
	c.Assert(conf.Password, Equals, "cnf-pass")
}

func (s *testMyCnfSuite) TestDefaultsFilePath(c *C) {
	conf := NewConfig()
	conf.DefaultsFile = filepath.Join(c.MkDir(), "missing.cnf")
	_, err := conf.DefaultsFilePath()
	c.Assert(err, NotNil)

	conf.DefaultsFile = writeOptionFile(c, "[client]\n")
	path, err := conf.DefaultsFilePath()
	c.Assert(err, IsNil)
	c.Assert(path, Equals, conf.DefaultsFile)

	home := c.MkDir()
	c.Assert(os.Setenv("HOME", home), IsNil)
	conf.DefaultsFile = ""
	path, err = conf.DefaultsFilePath()
	c.Assert(err, IsNil)
	c.Assert(path, Equals, "")

	dotMyCnf := filepath.Join(home, ".my.cnf")
	c.Assert(os.WriteFile(dotMyCnf, []byte("[client]\nuser = me\n"), 0600), IsNil)
	path, err = conf.DefaultsFilePath()
	c.Assert(err, IsNil)
	c.Assert(path, Equals, dotMyCnf)
}
