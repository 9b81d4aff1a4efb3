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
	"strconv"
	"strings"

	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBufferPoolDumpPct is how much of the buffer pool is dumped.
const DefaultBufferPoolDumpPct = 75

// Tuner applies the settings that only take effect at shutdown.
type Tuner struct {
	srv Server
}

// NewTuner creates a Tuner.
func NewTuner(srv Server) *Tuner {
	return &Tuner{srv: srv}
}

func (t *Tuner) set(name, value string) error {
	log.Infof("Setting %s to %s.", name, value)
	return errors.Trace(t.srv.SetGlobalVariable(name, value))
}

// DisableFastShutdownPath forces a full purge and change buffer merge at
// shutdown.
func (t *Tuner) DisableFastShutdownPath() error {
	return t.set(VarFastShutdown, fullShutdown)
}

// EnablePersistedBufferState makes InnoDB dump dumpPct percent of the buffer
// pool at shutdown. loadAtStartup reports whether the dump will be loaded
// back automatically; when it is not, a warning is logged.
func (t *Tuner) EnablePersistedBufferState(dumpPct uint) (loadAtStartup bool, err error) {
	if err := t.set(VarDumpAtShutdown, bufferPoolDumpEnable); err != nil {
		return false, err
	}
	if err := t.set(VarDumpPct, strconv.FormatUint(uint64(dumpPct), 10)); err != nil {
		return false, err
	}

	value, err := t.srv.GlobalVariable(VarLoadAtStartup)
	if err != nil {
		return false, errors.Trace(err)
	}
	if !strings.EqualFold(value, "ON") {
		log.Warnf("%s is not enabled. You may want to set this in the my.cnf: %s = ON",
			VarLoadAtStartup, VarLoadAtStartup)
		return false, nil
	}
	return true, nil
}
