/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command scriptstage converts "Actor: text" dialogue scripts into staged
// JSON documents for the stage runtime.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"scriptstage/internal/config"
	"scriptstage/internal/crash"
	applog "scriptstage/internal/log"
	"scriptstage/internal/store"
	"scriptstage/internal/telemetry"
)

// Exit codes.
const (
	exitOK         = 0
	exitConversion = 1
	exitUsage      = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries the per-process state shared by all commands.
type app struct {
	rawIn  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool

	cfg     config.AppConfig
	secret  string
	tel     *telemetry.Client
	st      *store.Store
	stErr   error
	session *crash.Session
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		rawIn:   stdin,
		in:      bufio.NewReader(stdin),
		stdout:  stdout,
		stderr:  stderr,
		cfg:     config.Defaults(),
		session: &crash.Session{},
	}
}

// runError marks a failure of the work itself rather than of the command line.
type runError struct{ err error }

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func runErr(err error) error {
	if err == nil {
		return nil
	}
	return &runError{err: err}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	defer a.close()
	defer crash.Recover(a.session)

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	var re *runError
	if errors.As(err, &re) {
		return exitConversion
	}
	_, _ = fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
	return exitUsage
}

// openStore opens the configured store once. Failures are remembered so the
// caller can continue without history.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.st != nil || a.stErr != nil {
		return a.st, a.stErr
	}
	dsn := a.cfg.Store.DSN
	if dsn == "" {
		def, err := config.DefaultStoreDSN()
		if err != nil {
			a.stErr = err
			return nil, err
		}
		dsn = def
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	a.st, a.stErr = store.Open(octx, store.WithPassword(dsn, a.secret))
	return a.st, a.stErr
}

func (a *app) close() {
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		a.tel.Flush(ctx)
		cancel()
		a.tel.Close()
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			applog.WithComponent("cli").Warn("close store failed", slog.Any("err", err))
		}
	}
	_ = applog.Close()
}
