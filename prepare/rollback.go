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
	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// GlobalChange remembers the value a global variable had before the run
// changed it.
type GlobalChange struct {
	srv      Server
	Name     string
	Original string
}

// CaptureGlobal reads the current value of name so it can be restored later.
func CaptureGlobal(srv Server, name string) (*GlobalChange, error) {
	value, err := srv.GlobalVariable(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Debugf("%s was %s.", name, value)
	return &GlobalChange{srv: srv, Name: name, Original: value}, nil
}

// Restore writes the captured value back.
func (g *GlobalChange) Restore() error {
	log.Infof("Setting %s to %s.", g.Name, g.Original)
	return errors.Trace(g.srv.SetGlobalVariable(g.Name, g.Original))
}

type compensation struct {
	name string
	undo func() error
}

// Compensations is the undo log of one run. Actions run in reverse order of
// registration, and every one of them runs even when an earlier one fails.
type Compensations struct {
	actions []compensation
}

// Push registers undo to run if the run aborts.
func (c *Compensations) Push(name string, undo func() error) {
	c.actions = append(c.actions, compensation{name: name, undo: undo})
}

// Len returns the number of pending actions.
func (c *Compensations) Len() int {
	return len(c.actions)
}

// Names returns the pending actions in the order they would run.
func (c *Compensations) Names() []string {
	names := make([]string, 0, len(c.actions))
	for i := len(c.actions) - 1; i >= 0; i-- {
		names = append(names, c.actions[i].name)
	}
	return names
}

// Discard forgets every pending action. It is called once the run succeeded.
func (c *Compensations) Discard() {
	c.actions = nil
}

// Run executes the pending actions and empties the log. Every failure is
// returned.
func (c *Compensations) Run() error {
	var errs error
	for i := len(c.actions) - 1; i >= 0; i-- {
		a := c.actions[i]
		if err := a.undo(); err != nil {
			log.Errorf("%s failed: %v", a.name, err)
			errs = multierr.Append(errs, errors.Annotate(err, a.name))
		}
	}
	c.actions = nil
	return errs
}
