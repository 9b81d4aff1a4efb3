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
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hanchuanchuan/goPrepareShutdown/util/logutil"
	"github.com/pingcap/errors"
)

// Config number limitations
const (
	MaxLogFileSize = 4096 // MB
	// MaxStopGrace caps how long the SQL thread may keep applying relay events.
	MaxStopGrace = 10 * time.Second
)

// Connection defaults, as the mysql client uses them.
const (
	DefaultHost   = "localhost"
	DefaultPort   = 3306
	DefaultSocket = "/var/lib/mysql/mysql.sock"
)

// Config contains configuration options.
type Config struct {
	Host         string `toml:"host" json:"host"`
	Port         uint   `toml:"port" json:"port"`
	Socket       string `toml:"socket" json:"socket"`
	User         string `toml:"user" json:"user"`
	Password     string `toml:"password" json:"-"`
	DefaultsFile string `toml:"defaults-file" json:"defaults-file"`

	NoTransactionCheck bool `toml:"no-transaction-check" json:"no-transaction-check"`
	Verbose            bool `toml:"verbose" json:"verbose"`

	Log         Log         `toml:"log" json:"log"`
	Replication Replication `toml:"replication" json:"replication"`
	Transaction Transaction `toml:"transaction" json:"transaction"`
	DirtyPages  DirtyPages  `toml:"dirty-pages" json:"dirty-pages"`
	Shutdown    Shutdown    `toml:"shutdown" json:"shutdown"`
}

// Log is the log section of config.
type Log struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log format. one of json or text.
	Format string `toml:"format" json:"format"`
	// Disable automatic timestamps in output.
	DisableTimestamp bool `toml:"disable-timestamp" json:"disable-timestamp"`
	// File log config.
	File logutil.FileLogConfig `toml:"file" json:"file"`
}

// Replication is the replica handling section of the config.
type Replication struct {
	// StopGrace is how long the SQL thread keeps applying queued relay
	// events after the IO thread was stopped.
	StopGrace string `toml:"stop-grace" json:"stop-grace"`
	// WaitCatchUp polls the replica coordinates after stopping replication.
	WaitCatchUp     bool   `toml:"wait-catch-up" json:"wait-catch-up"`
	CatchUpTimeout  string `toml:"catch-up-timeout" json:"catch-up-timeout"`
	CatchUpInterval string `toml:"catch-up-interval" json:"catch-up-interval"`
}

// Transaction is the long running transaction check section of the config.
type Transaction struct {
	Threshold string `toml:"threshold" json:"threshold"`
}

// DirtyPages is the buffer pool drain section of the config.
type DirtyPages struct {
	// TargetPct is applied to innodb_max_dirty_pages_pct while draining.
	TargetPct    float64 `toml:"target-pct" json:"target-pct"`
	Timeout      string  `toml:"timeout" json:"timeout"`
	PollInterval string  `toml:"poll-interval" json:"poll-interval"`
	SettleRatio  float64 `toml:"settle-ratio" json:"settle-ratio"`
	SettleFloor  int64   `toml:"settle-floor" json:"settle-floor"`
	// FailOnTimeout aborts the run when the drain does not settle in time.
	FailOnTimeout bool `toml:"fail-on-timeout" json:"fail-on-timeout"`
}

// Shutdown is the shutdown tuning section of the config.
type Shutdown struct {
	BufferPoolDumpPct uint `toml:"buffer-pool-dump-pct" json:"buffer-pool-dump-pct"`
}

var defaultConf = Config{
	Host:   DefaultHost,
	Port:   DefaultPort,
	Socket: DefaultSocket,
	Log: Log{
		Level:  "info",
		Format: logutil.DefaultLogFormat,
		File: logutil.FileLogConfig{
			LogRotate: true,
			MaxSize:   logutil.DefaultLogMaxSize,
		},
	},
	Replication: Replication{
		StopGrace:       "10s",
		WaitCatchUp:     true,
		CatchUpTimeout:  "60s",
		CatchUpInterval: "5s",
	},
	Transaction: Transaction{
		Threshold: "60s",
	},
	DirtyPages: DirtyPages{
		TargetPct:     0,
		Timeout:       "60s",
		PollInterval:  "1s",
		SettleRatio:   0.10,
		SettleFloor:   500,
		FailOnTimeout: false,
	},
	Shutdown: Shutdown{
		BufferPoolDumpPct: 75,
	},
}

var globalConf = defaultConf

// NewConfig creates a new config instance with default value.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// GetGlobalConfig returns the global configuration for this process.
// It should store configuration from command line and configuration file.
func GetGlobalConfig() *Config {
	return &globalConf
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	_, err := toml.DecodeFile(confFile, c)
	return errors.Trace(err)
}

// ToLogConfig converts *Log to *logutil.LogConfig.
func (l *Log) ToLogConfig() *logutil.LogConfig {
	return &logutil.LogConfig{
		Level:            l.Level,
		Format:           l.Format,
		DisableTimestamp: l.DisableTimestamp,
		File:             l.File,
	}
}

// ParseDuration parses a duration setting. Bare numbers are seconds.
func ParseDuration(value string) (time.Duration, error) {
	dur, err := time.ParseDuration(value)
	if err != nil {
		dur, err = time.ParseDuration(value + "s")
	}
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", value)
	}
	if dur < 0 {
		return 0, errors.Errorf("negative duration %q", value)
	}
	return dur, nil
}

// Valid checks the configuration, returning the first problem found.
func (c *Config) Valid() error {
	if c.Port == 0 || c.Port > 65535 {
		return errors.Errorf("port should be in [1, 65535], got %d", c.Port)
	}
	if c.Log.File.MaxSize > MaxLogFileSize {
		return errors.Errorf("log max-size should not be larger than %d MB", MaxLogFileSize)
	}

	durations := []struct {
		name     string
		value    string
		positive bool
	}{
		{"replication.stop-grace", c.Replication.StopGrace, false},
		{"replication.catch-up-timeout", c.Replication.CatchUpTimeout, false},
		{"replication.catch-up-interval", c.Replication.CatchUpInterval, true},
		{"transaction.threshold", c.Transaction.Threshold, false},
		{"dirty-pages.timeout", c.DirtyPages.Timeout, false},
		{"dirty-pages.poll-interval", c.DirtyPages.PollInterval, true},
	}
	for _, d := range durations {
		dur, err := ParseDuration(d.value)
		if err != nil {
			return errors.Annotate(err, d.name)
		}
		if d.positive && dur == 0 {
			return errors.Errorf("%s should be greater than 0", d.name)
		}
	}

	grace, _ := ParseDuration(c.Replication.StopGrace)
	if grace > MaxStopGrace {
		return errors.Errorf("replication.stop-grace should not be larger than %s", MaxStopGrace)
	}
	if c.DirtyPages.TargetPct < 0 || c.DirtyPages.TargetPct > 99.999 {
		return errors.Errorf("dirty-pages.target-pct should be in [0, 99.999], got %v", c.DirtyPages.TargetPct)
	}
	if c.DirtyPages.SettleRatio < 0 || c.DirtyPages.SettleRatio > 1 {
		return errors.Errorf("dirty-pages.settle-ratio should be in [0, 1], got %v", c.DirtyPages.SettleRatio)
	}
	if c.DirtyPages.SettleFloor < 0 {
		return errors.Errorf("dirty-pages.settle-floor should not be negative, got %d", c.DirtyPages.SettleFloor)
	}
	if c.Shutdown.BufferPoolDumpPct < 1 || c.Shutdown.BufferPoolDumpPct > 100 {
		return errors.Errorf("shutdown.buffer-pool-dump-pct should be in [1, 100], got %d", c.Shutdown.BufferPoolDumpPct)
	}
	return nil
}

// Durations returns the parsed duration settings. Valid must have passed.
func (c *Config) Durations() Durations {
	parse := func(v string) time.Duration {
		d, _ := ParseDuration(v)
		return d
	}
	return Durations{
		StopGrace:         parse(c.Replication.StopGrace),
		CatchUpTimeout:    parse(c.Replication.CatchUpTimeout),
		CatchUpInterval:   parse(c.Replication.CatchUpInterval),
		TrxThreshold:      parse(c.Transaction.Threshold),
		DrainTimeout:      parse(c.DirtyPages.Timeout),
		DrainPollInterval: parse(c.DirtyPages.PollInterval),
	}
}

// Durations holds the parsed duration settings of a Config.
type Durations struct {
	StopGrace         time.Duration
	CatchUpTimeout    time.Duration
	CatchUpInterval   time.Duration
	TrxThreshold      time.Duration
	DrainTimeout      time.Duration
	DrainPollInterval time.Duration
}
