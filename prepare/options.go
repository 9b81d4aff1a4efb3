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

	"github.com/hanchuanchuan/goPrepareShutdown/config"
)

// Options are the settings of one run.
type Options struct {
	NoTransactionCheck bool

	StopGrace       time.Duration
	WaitCatchUp     bool
	CatchUpTimeout  time.Duration
	CatchUpInterval time.Duration

	TrxThreshold time.Duration

	DirtyPagesTarget   float64
	DrainTimeout       time.Duration
	DrainPollInterval  time.Duration
	SettleRatio        float64
	SettleFloor        int64
	FailOnDrainTimeout bool

	BufferPoolDumpPct uint

	// Reporter renders the open transaction table, TableReporter when nil.
	Reporter Reporter
	// Output receives the open transaction table. Nothing is printed when nil.
	Output io.Writer
}

// DefaultOptions returns the built-in settings.
func DefaultOptions() Options {
	return Options{
		StopGrace:         10 * time.Second,
		WaitCatchUp:       true,
		CatchUpTimeout:    60 * time.Second,
		CatchUpInterval:   5 * time.Second,
		TrxThreshold:      DefaultTrxThreshold,
		DirtyPagesTarget:  0,
		DrainTimeout:      60 * time.Second,
		DrainPollInterval: time.Second,
		SettleRatio:       DefaultSettleRatio,
		SettleFloor:       DefaultSettleFloor,
		BufferPoolDumpPct: DefaultBufferPoolDumpPct,
	}
}

// OptionsFromConfig builds the run options from a validated Config.
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Durations()
	return Options{
		NoTransactionCheck: cfg.NoTransactionCheck,
		StopGrace:          d.StopGrace,
		WaitCatchUp:        cfg.Replication.WaitCatchUp,
		CatchUpTimeout:     d.CatchUpTimeout,
		CatchUpInterval:    d.CatchUpInterval,
		TrxThreshold:       d.TrxThreshold,
		DirtyPagesTarget:   cfg.DirtyPages.TargetPct,
		DrainTimeout:       d.DrainTimeout,
		DrainPollInterval:  d.DrainPollInterval,
		SettleRatio:        cfg.DirtyPages.SettleRatio,
		SettleFloor:        cfg.DirtyPages.SettleFloor,
		FailOnDrainTimeout: cfg.DirtyPages.FailOnTimeout,
		BufferPoolDumpPct:  cfg.Shutdown.BufferPoolDumpPct,
	}
}
