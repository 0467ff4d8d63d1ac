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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// doneWord ends the interactive loop.
const doneWord = "DONE"

func newInteractiveCmd(a *app) *cobra.Command {
	var (
		dir string
		o   convertOptions
	)
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Convert scripts one after another, asking for file names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.remember = a.cfg.Store.Remember
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return runErr(err)
				}
				dir = wd
			}
			return runErr(a.interactive(cmd.Context(), dir, o))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding scripts and documents (default: working directory)")
	cmd.Flags().BoolVar(&o.tui, "tui", false, "ask for sides with the full-screen picker")
	return cmd
}

// interactive asks for an input and an output name per round. A missing input
// or a failed conversion is reported and the loop continues; DONE or end of
// input stops it.
func (a *app) interactive(ctx context.Context, dir string, o convertOptions) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := a.promptLine("Type DONE to terminate. Otherwise, what file should we convert? - ")
		if err != nil {
			return err
		}
		if name == doneWord {
			_, _ = fmt.Fprintln(a.stdout)
			return nil
		}
		in := filepath.Join(dir, name)
		_, _ = fmt.Fprintf(a.stdout, "Reading from %s...\n", in)
		if fi, err := os.Stat(in); err != nil || fi.IsDir() {
			_, _ = fmt.Fprintln(a.stdout, "ERROR. File not found in the script directory.")
			continue
		}
		_, _ = fmt.Fprintln(a.stdout, "File found!")
		outName, err := a.promptLine("What would you like to name the output file? - ")
		if err != nil {
			return err
		}
		if outName == "" {
			_, _ = fmt.Fprintln(a.stdout, "ERROR. An output file name is required.")
			continue
		}
		if err := a.convertFile(ctx, in, filepath.Join(dir, outName), o); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "ERROR. %v\n", err)
		}
	}
}

// promptLine prints prompt and reads one trimmed line. End of input ends the
// session without an error.
func (a *app) promptLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(a.stdout, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if s := strings.TrimSpace(line); s != "" {
				return s, nil
			}
			return doneWord, nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
