/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"scriptstage/internal/cast"
	"scriptstage/internal/convert"
	"scriptstage/internal/emit"
	"scriptstage/internal/export"
	applog "scriptstage/internal/log"
	"scriptstage/internal/staging"
	"scriptstage/internal/store"
	"scriptstage/internal/tui"

	"github.com/spf13/cobra"
)

type convertOptions struct {
	sidesFile      string
	tui            bool
	strict         bool
	suppressVacant bool
	remember       bool
	cueSheet       string
	noValidate     bool
}

func newConvertCmd(a *app) *cobra.Command {
	var o convertOptions
	cmd := &cobra.Command{
		Use:   "convert <script.txt> <out.json>",
		Short: "Convert one script into a staged JSON document",
		Long: `Convert reads every line of the script, asks for the side of each actor
(from --sides, remembered answers, then the terminal) and writes the document.
Nothing is written unless the whole script converts.`,
		Args: exactArgs(2, "<script.txt> <out.json>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("remember") {
				o.remember = a.cfg.Store.Remember
			}
			return runErr(a.convertFile(cmd.Context(), args[0], args[1], o))
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.sidesFile, "sides", "", "YAML file mapping actor names to Left/Right")
	f.BoolVar(&o.tui, "tui", false, "ask for missing sides with the full-screen picker")
	f.BoolVar(&o.strict, "strict", false, "reject text that would need JSON escaping")
	f.BoolVar(&o.suppressVacant, "suppress-vacant-goback", false, "drop goBack cues for an empty side")
	f.BoolVar(&o.remember, "remember", false, "reuse and store answered sides (default from config)")
	f.StringVar(&o.cueSheet, "cue-sheet", "", "also render a PDF cue sheet to this path")
	f.BoolVar(&o.noValidate, "no-validate", false, "skip JSON Schema validation of the output")
	return cmd
}

// converter builds a Converter from config and flags. The side sources are
// consulted in order: sides file, remembered sides, then the terminal.
func (a *app) converter(ctx context.Context, o convertOptions) (*convert.Converter, *store.Store, error) {
	l := applog.WithComponent("cli")
	policy, err := emit.ParsePolicy(a.cfg.Conversion.Policy)
	if err != nil {
		return nil, nil, err
	}
	if o.strict {
		policy = emit.PolicyStrict
	}

	var sources []cast.Source
	sidesFile := o.sidesFile
	if sidesFile == "" {
		sidesFile = a.cfg.Conversion.SidesFile
	}
	if sidesFile != "" {
		ms, err := cast.LoadSidesFile(sidesFile)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, ms)
	}

	st, err := a.openStore(ctx)
	if err != nil {
		l.Warn("history store unavailable", slog.Any("err", err))
		st = nil
	}
	if o.remember && st != nil {
		sources = append(sources, st.Source())
	}
	if o.tui {
		sources = append(sources, tui.NewPicker(a.rawIn, a.stdout))
	} else {
		sources = append(sources, cast.NewPromptSource(a.in, a.stdout))
	}

	conv := &convert.Converter{
		Sides:       cast.NewChain(sources...),
		Staging:     staging.Options{SuppressVacantGoBack: o.suppressVacant || a.cfg.Conversion.SuppressVacantGoBack},
		Policy:      policy,
		Validate:    a.cfg.Conversion.Validate && !o.noValidate,
		MaxAttempts: a.cfg.Conversion.MaxAttempts,
	}
	return conv, st, nil
}

func (a *app) convertFile(ctx context.Context, in, out string, o convertOptions) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "convert")
	a.session.Input, a.session.Output = in, out

	conv, st, err := a.converter(ctx, o)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := conv.ConvertFile(ctx, in, out)
	took := time.Since(start)

	status := store.StatusOK
	if err != nil {
		status = store.StatusFailed
	}
	a.tel.Conversion(status, len(res.Document.Lines), res.Cast.Len(), took)
	if st != nil {
		rec := store.Record{Input: in, Output: out, Lines: len(res.Document.Lines), CastSize: res.Cast.Len(), Status: status}
		if err != nil {
			rec.Error = err.Error()
		}
		if id, rerr := st.RecordConversion(ctx, rec); rerr != nil {
			l.Warn("record conversion failed", slog.Any("err", rerr))
		} else {
			l.Debug("conversion recorded", slog.String("run", id.String()))
		}
	}
	if err != nil {
		return err
	}

	if o.remember && st != nil {
		if err := st.SaveSides(ctx, res.Assignment); err != nil {
			l.Warn("remember sides failed", slog.Any("err", err))
		}
	}
	if o.cueSheet != "" {
		title := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		if err := export.WriteCueSheetFile(o.cueSheet, title, res.Document); err != nil {
			return fmt.Errorf("cue sheet: %w", err)
		}
	}
	_, _ = fmt.Fprintf(a.stdout, "Wrote %s (%d lines, %d actors)\n", out, len(res.Document.Lines), res.Cast.Len())
	return nil
}
