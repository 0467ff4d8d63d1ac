/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"

	"scriptstage/internal/config"
	applog "scriptstage/internal/log"
	"scriptstage/internal/telemetry"
	"scriptstage/internal/version"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scriptstage",
		Short: "Convert dialogue scripts into staged JSON documents",
		Long: `scriptstage reads scripts made of "Actor: text" lines, asks which side of
the stage each actor stands on and writes a JSON document with one entry per
line, carrying the staging and gesture cues for the stage runtime.`,
		Version:           version.String(),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: user config dir, or $SCS_CONFIG)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newConvertCmd(a),
		newInteractiveCmd(a),
		newSchemaCmd(a),
		newCueSheetCmd(a),
		newHistoryCmd(a),
		newSidesCmd(a),
		newStorePasswordCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the configuration and wires logging and telemetry.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg    config.AppConfig
		secret string
		err    error
	)
	if a.configPath != "" {
		cfg, secret, err = config.LoadFrom(a.configPath)
	} else {
		cfg, secret, err = config.Load()
	}
	a.cfg, a.secret = cfg, secret

	opts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Writer:    a.stderr,
	}
	if a.verbose {
		opts.Level = "debug"
	}
	applog.Init(opts)
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", err))
	}

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	a.tel = telemetry.New(tcfg)
	a.session.Telemetry = a.tel
	a.session.Command = cmd.Name()
	l.Debug("start", slog.String("cmd", cmd.CommandPath()))
	return nil
}

// exactArgs is cobra.ExactArgs with a message naming the expected operands.
func exactArgs(n int, names string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %s, got %d argument(s)", cmd.Name(), names, len(args))
		}
		return nil
	}
}
