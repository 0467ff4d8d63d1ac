/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package convert runs a whole script through splitting, side resolution,
// staging and encoding. Output is produced only after every stage succeeded.
package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scriptstage/internal/cast"
	"scriptstage/internal/emit"
	applog "scriptstage/internal/log"
	"scriptstage/internal/script"
	"scriptstage/internal/staging"
)

// Converter holds the settings for one or more conversions.
type Converter struct {
	// Sides answers which side each cast member stands on.
	Sides   cast.Source
	Staging staging.Options
	Policy  emit.Policy
	// Validate checks the encoded bytes against the document schema.
	Validate bool
	// MaxAttempts caps invalid side answers per actor; 0 means no cap.
	MaxAttempts int
	Logger      *slog.Logger
}

// Plan is the result of the first pass: every line parsed and the cast known.
type Plan struct {
	Lines []script.Line
	Cast  cast.Cast
}

// Result is a finished conversion.
type Result struct {
	Document   emit.Document
	Bytes      []byte
	Cast       cast.Cast
	Assignment cast.Assignment
}

func (c *Converter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return applog.WithComponent("convert")
}

// Prepare parses every raw line and collects the cast. It has no side effects.
func (c *Converter) Prepare(raws []string) (*Plan, error) {
	lines, err := script.Parse(raws)
	if err != nil {
		return nil, err
	}
	return &Plan{Lines: lines, Cast: cast.FromLines(lines)}, nil
}

// Convert turns raw script lines into an encoded document held in memory.
func (c *Converter) Convert(ctx context.Context, raws []string) (Result, error) {
	l := applog.WithOperation(c.logger(), "convert")
	start := time.Now()

	plan, err := c.Prepare(raws)
	if err != nil {
		l.Warn("script rejected", slog.Any("err", err))
		return Result{}, err
	}

	var opts []cast.ResolveOption
	opts = append(opts, cast.WithLogger(c.logger()))
	if c.MaxAttempts > 0 {
		opts = append(opts, cast.WithMaxAttempts(c.MaxAttempts))
	}
	assign, err := cast.Resolve(ctx, plan.Cast, c.Sides, opts...)
	if err != nil {
		l.Warn("side assignment incomplete", slog.Any("err", err))
		return Result{}, err
	}

	events, err := staging.Synthesize(plan.Lines, plan.Cast, assign, c.Staging)
	if err != nil {
		return Result{}, err
	}
	doc := emit.FromEvents(events)
	data, err := emit.Marshal(doc, c.Policy)
	if err != nil {
		l.Warn("document rejected", slog.Any("err", err))
		return Result{}, err
	}
	if c.Validate {
		if err := emit.Validate(data); err != nil {
			l.Error("document failed schema validation", slog.Any("err", err))
			return Result{}, err
		}
	}

	l.Info("script converted",
		slog.Int("lines", len(plan.Lines)),
		slog.Int("cast", plan.Cast.Len()),
		slog.Int("bytes", len(data)),
		slog.Duration("took", time.Since(start)),
	)
	return Result{Document: doc, Bytes: data, Cast: plan.Cast, Assignment: assign}, nil
}

// ConvertReader reads the whole script from r and converts it.
func (c *Converter) ConvertReader(ctx context.Context, r io.Reader) (Result, error) {
	raws, err := script.ReadLines(r)
	if err != nil {
		return Result{}, err
	}
	return c.Convert(ctx, raws)
}

// ConvertFile converts inPath and atomically writes the document to outPath.
// On any error outPath is left untouched.
func (c *Converter) ConvertFile(ctx context.Context, inPath, outPath string) (Result, error) {
	l := applog.WithOperation(c.logger(), "convert_file").With(
		slog.String("in", inPath),
		slog.String("out", outPath),
	)
	f, err := os.Open(inPath)
	if err != nil {
		return Result{}, fmt.Errorf("open script: %w", err)
	}
	res, err := c.ConvertReader(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close script: %w", cerr)
	}
	if err != nil {
		return Result{}, err
	}
	if err := WriteFileAtomic(outPath, res.Bytes); err != nil {
		l.Error("write document failed", slog.Any("err", err))
		return Result{}, fmt.Errorf("write document: %w", err)
	}
	l.Debug("document written", slog.Int("bytes", len(res.Bytes)))
	return res, nil
}

// WriteFileAtomic writes data to a temp file next to path, flushes it to disk
// and renames it over path.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
