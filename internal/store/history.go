/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversion statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Record is one conversion run.
type Record struct {
	ID       uuid.UUID
	At       time.Time
	Input    string
	Output   string
	Lines    int
	CastSize int
	Status   string
	Error    string
}

// language=SQL
const insertConversionSQL = `INSERT INTO conversions (id, ts, input, output, lines, cast_size, status, error)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`

// language=SQL
const listConversionsSQL = `SELECT id, ts, input, output, lines, cast_size, status, error
FROM conversions ORDER BY ts DESC LIMIT ?`

// RecordConversion stores r and returns its run id. A zero ID gets a new
// random one and a zero timestamp becomes now.
func (s *Store) RecordConversion(ctx context.Context, r Record) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	if r.Status == "" {
		r.Status = StatusOK
	}
	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}
	_, err := s.exec(ctx, insertConversionSQL,
		r.ID.String(), r.At.UTC().Format(timeLayout), r.Input, r.Output, r.Lines, r.CastSize, r.Status, errText)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record conversion: %w", err)
	}
	return r.ID, nil
}

// ListConversions returns up to limit most recent runs, newest first.
func (s *Store) ListConversions(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx, listConversionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		var (
			id, ts  string
			r       Record
			errText sql.NullString
		)
		if err := rows.Scan(&id, &ts, &r.Input, &r.Output, &r.Lines, &r.CastSize, &r.Status, &errText); err != nil {
			return nil, err
		}
		r.ID, _ = uuid.Parse(id)
		r.At, _ = time.Parse(timeLayout, ts)
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}
