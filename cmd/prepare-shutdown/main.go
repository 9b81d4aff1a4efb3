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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanchuanchuan/goPrepareShutdown/config"
	"github.com/hanchuanchuan/goPrepareShutdown/prepare"
	"github.com/hanchuanchuan/goPrepareShutdown/session"
	"github.com/hanchuanchuan/goPrepareShutdown/util"
	"github.com/hanchuanchuan/goPrepareShutdown/util/logutil"
	"github.com/pingcap/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

// Flag Names
const (
	nmConfig             = "config"
	nmUser               = "user"
	nmPassword           = "password"
	nmAskPass            = "ask-pass"
	nmHost               = "host"
	nmPort               = "port"
	nmSocket             = "socket"
	nmDefaultsFile       = "defaults-file"
	nmNoTransactionCheck = "no-transaction-check"
	nmVerbose            = "verbose"
	nmLogLevel           = "log-level"
	nmLogFile            = "log-file"
	nmEncryptPassword    = "encrypt-password"
)

var (
	configPath = flag.StringP(nmConfig, "c", "", "config file path")

	user         = flag.StringP(nmUser, "u", "", "MySQL user")
	password     = flag.StringP(nmPassword, "p", "", "MySQL password")
	askPass      = flag.Bool(nmAskPass, false, "Ask for password")
	host         = flag.StringP(nmHost, "H", config.DefaultHost, "MySQL host")
	port         = flag.UintP(nmPort, "P", config.DefaultPort, "MySQL port")
	socket       = flag.StringP(nmSocket, "S", config.DefaultSocket, "MySQL socket")
	defaultsFile = flag.String(nmDefaultsFile, "", "Use MySQL configuration file. Default: ~/.my.cnf if present")

	noTransactionCheck = flag.BoolP(nmNoTransactionCheck, "t", false, "Do not check for transactions running > 60 seconds.")
	verbose            = flag.BoolP(nmVerbose, "v", false, "Print additional information")

	// Log
	logLevel = flag.StringP(nmLogLevel, "L", "info", "log level: info, debug, warn, error")
	logFile  = flag.String(nmLogFile, "", "log file path")

	encryptPassword = flag.Bool(nmEncryptPassword, false, "print the encrypted form of the password for the config file and exit")
)

var cfg *config.Config

func main() {
	flag.CommandLine.SortFlags = false
	flag.Parse()

	loadConfig()
	explicit := overrideConfig()
	if *encryptPassword {
		printEncryptedPassword()
		os.Exit(0)
	}
	resolveCredentials(explicit)
	validateConfig()
	setupLog()

	os.Exit(run())
}

func loadConfig() {
	cfg = config.GetGlobalConfig()
	if *configPath != "" {
		if err := cfg.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
	}
}

// overrideConfig applies the flags given on the command line and returns
// their names.
func overrideConfig() map[string]bool {
	actualFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		actualFlags[f.Name] = true
	})

	if actualFlags[nmUser] {
		cfg.User = *user
	}
	if actualFlags[nmPassword] {
		cfg.Password = *password
	}
	if actualFlags[nmHost] {
		cfg.Host = *host
	}
	if actualFlags[nmPort] {
		cfg.Port = *port
	}
	if actualFlags[nmSocket] {
		cfg.Socket = *socket
	}
	if actualFlags[nmDefaultsFile] {
		cfg.DefaultsFile = *defaultsFile
	}
	if actualFlags[nmNoTransactionCheck] {
		cfg.NoTransactionCheck = *noTransactionCheck
	}
	if actualFlags[nmVerbose] {
		cfg.Verbose = *verbose
	}

	// Log
	if actualFlags[nmLogLevel] {
		cfg.Log.Level = *logLevel
	}
	if actualFlags[nmLogFile] {
		cfg.Log.File.Filename = *logFile
	}
	return actualFlags
}

// resolveCredentials fills in what the command line left out from the
// option file, then asks for the password if requested.
func resolveCredentials(explicit map[string]bool) {
	path, err := cfg.DefaultsFilePath()
	if err != nil {
		fatal(err)
	}
	if path != "" {
		opts, err := config.LoadMyCnf(path)
		if err != nil {
			fatal(err)
		}
		cfg.MergeClientOptions(opts, map[string]bool{
			config.OptHost:     explicit[nmHost],
			config.OptPort:     explicit[nmPort],
			config.OptSocket:   explicit[nmSocket],
			config.OptUser:     explicit[nmUser],
			config.OptPassword: explicit[nmPassword],
		})
	}

	if *askPass {
		p, err := readPassword("Password: ")
		if err != nil {
			fatal(err)
		}
		cfg.Password = p
		return
	}
	if cfg.Password, err = util.DecryptPassword(cfg.Password); err != nil {
		fatal(err)
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Annotate(err, "read password")
	}
	return string(b), nil
}

func printEncryptedPassword() {
	p := *password
	if !flag.CommandLine.Changed(nmPassword) {
		var err error
		if p, err = readPassword("Password: "); err != nil {
			fatal(err)
		}
	}
	encrypted, err := util.EncryptPassword(p)
	if err != nil {
		fatal(err)
	}
	fmt.Println(encrypted)
}

func validateConfig() {
	if err := cfg.Valid(); err != nil {
		fatal(err)
	}
}

func setupLog() {
	logConfig := cfg.Log.ToLogConfig()
	if cfg.Verbose {
		logConfig.Level = "debug"
	}
	if err := logutil.InitLogger(logConfig); err != nil {
		fatal(err)
	}
}

func sourceOptions() session.SourceOptions {
	return session.SourceOptions{
		Host:     cfg.Host,
		Port:     int(cfg.Port),
		Socket:   cfg.Socket,
		User:     cfg.User,
		Password: cfg.Password,
	}
}

var _ prepare.Server = (*session.Session)(nil)

// run prepares the server and returns the process exit code.
func run() int {
	se, err := session.Open(sourceOptions())
	if err != nil {
		log.Error(session.ErrorMessage(err))
		return 1
	}
	defer se.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	opts := prepare.OptionsFromConfig(cfg)
	opts.Output = os.Stdout
	res := prepare.NewOrchestrator(se, opts).Run(ctx)
	if res.Err != nil {
		log.Errorf("%s", session.ErrorMessage(res.Err))
	}
	log.Debugf("Finished at %s: %s.", res.Stage, res.Outcome)
	return res.Outcome.ExitCode()
}

// setupSignalHandler cancels the run on CTRL+C or SIGTERM. Later signals
// are ignored so the revert can finish.
func setupSignalHandler(cancel context.CancelFunc) {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sc {
			log.Debugf("Got signal [%s].", sig)
			cancel()
		}
	}()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}
