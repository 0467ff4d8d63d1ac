/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scriptstage/internal/cast"
	"scriptstage/internal/config"
	"scriptstage/internal/convert"
	"scriptstage/internal/emit"
	"scriptstage/internal/export"
	"scriptstage/internal/script"
	"scriptstage/internal/version"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the output document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := emit.Schema()
			if err != nil {
				return runErr(err)
			}
			_, err = fmt.Fprintf(a.stdout, "%s\n", b)
			return runErr(err)
		},
	}
}

func newCueSheetCmd(a *app) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "cue-sheet <doc.json> <out.pdf>",
		Short: "Render an existing document as a printable PDF cue sheet",
		Args:  exactArgs(2, "<doc.json> <out.pdf>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return runErr(err)
			}
			if err := emit.Validate(data); err != nil {
				return runErr(err)
			}
			doc, err := emit.Decode(bytes.NewReader(data))
			if err != nil {
				return runErr(err)
			}
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if err := export.WriteCueSheetFile(args[1], title, doc); err != nil {
				return runErr(err)
			}
			_, _ = fmt.Fprintf(a.stdout, "Wrote %s (%d lines)\n", args[1], len(doc.Lines))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "page title (default: document file name)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return runErr(err)
			}
			recs, err := st.ListConversions(cmd.Context(), limit)
			if err != nil {
				return runErr(err)
			}
			if len(recs) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "No conversions recorded.")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("RUN", "WHEN", "STATUS", "LINES", "CAST", "INPUT", "OUTPUT")
			for _, r := range recs {
				t.Row(
					r.ID.String()[:8],
					r.At.Local().Format("2006-01-02 15:04:05"),
					r.Status,
					strconv.Itoa(r.Lines),
					strconv.Itoa(r.CastSize),
					r.Input,
					r.Output,
				)
			}
			_, _ = fmt.Fprintln(a.stdout, t.Render())
			for _, r := range recs {
				if r.Error != "" {
					_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", r.ID.String()[:8], r.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	return cmd
}

func newSidesCmd(a *app) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "sides <script.txt>",
		Short: "Show remembered sides for the cast of a script",
		Args:  exactArgs(1, "<script.txt>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return runErr(err)
			}
			raws, err := script.ReadLines(f)
			_ = f.Close()
			if err != nil {
				return runErr(err)
			}
			plan, err := (&convert.Converter{}).Prepare(raws)
			if err != nil {
				return runErr(err)
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return runErr(err)
			}
			known, err := st.LoadSides(cmd.Context(), plan.Cast.Members())
			if err != nil {
				return runErr(err)
			}
			for _, actor := range plan.Cast.Members() {
				side := "?"
				if s, ok := known[actor]; ok {
					side = s.String()
				}
				_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", actor, side)
			}
			if exportPath != "" {
				if missing := known.Missing(plan.Cast); len(missing) > 0 {
					return runErr(&cast.IncompleteSideAssignmentError{Actor: missing[0], Err: cast.ErrExhausted})
				}
				if err := cast.SaveSidesFile(exportPath, known); err != nil {
					return runErr(err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "write the remembered sides as a YAML sides file")
	return cmd
}

func newStorePasswordCmd(a *app) *cobra.Command {
	var clearPw bool
	cmd := &cobra.Command{
		Use:   "store-password",
		Short: "Save the Postgres store password in the OS keychain (read from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clearPw {
				return runErr(config.ClearStorePassword())
			}
			pw, err := a.in.ReadString('\n')
			pw = strings.TrimRight(pw, "\r\n")
			if pw == "" {
				if err != nil {
					return runErr(fmt.Errorf("read password: %w", err))
				}
				return runErr(errors.New("empty password"))
			}
			return runErr(config.SetStorePassword(pw))
		},
	}
	cmd.Flags().BoolVar(&clearPw, "clear", false, "remove the stored password")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(a.stdout, "scriptstage %s\n", version.String())
		},
	}
}
