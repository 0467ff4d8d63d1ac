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
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"scriptstage/internal/cast"
)

// language=SQL
const upsertSideSQL = `INSERT INTO cast_sides (actor, side, updated_at) VALUES(?, ?, ?)
ON CONFLICT(actor) DO UPDATE SET side=excluded.side, updated_at=excluded.updated_at`

// language=SQL
const selectSideSQL = `SELECT side FROM cast_sides WHERE actor=?`

// SaveSides remembers every assigned side, replacing earlier answers.
func (s *Store) SaveSides(ctx context.Context, a cast.Assignment) error {
	actors := make([]string, 0, len(a))
	for actor, side := range a {
		if side == cast.Unassigned {
			continue
		}
		actors = append(actors, actor)
	}
	sort.Strings(actors)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save sides: %w", err)
	}
	ts := now()
	q := s.rebind(upsertSideSQL)
	for _, actor := range actors {
		if _, err := tx.ExecContext(ctx, q, actor, a[actor].String(), ts); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save side for %q: %w", actor, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save sides: %w", err)
	}
	s.log.Debug("sides saved", slog.Int("count", len(actors)))
	return nil
}

// LoadSides returns the remembered sides of the given actors. Actors without
// a remembered side are absent from the result.
func (s *Store) LoadSides(ctx context.Context, actors []string) (cast.Assignment, error) {
	out := cast.Assignment{}
	for _, actor := range actors {
		side, ok, err := s.lookupSide(ctx, actor)
		if err != nil {
			return nil, err
		}
		if ok {
			out[actor] = side
		}
	}
	return out, nil
}

func (s *Store) lookupSide(ctx context.Context, actor string) (cast.Side, bool, error) {
	var raw string
	err := s.queryRow(ctx, selectSideSQL, actor).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return cast.Unassigned, false, nil
	}
	if err != nil {
		return cast.Unassigned, false, fmt.Errorf("load side for %q: %w", actor, err)
	}
	side, err := cast.ParseSide(raw)
	if err != nil {
		s.log.Warn("ignoring stored side", slog.String("actor", actor), slog.String("side", raw))
		return cast.Unassigned, false, nil
	}
	return side, true, nil
}

// Source answers side questions from remembered sides. Unknown or rejected
// actors yield cast.ErrExhausted so a chained source can take over.
func (s *Store) Source() cast.Source {
	return &storeSource{s: s, rejected: map[string]bool{}}
}

type storeSource struct {
	s        *Store
	rejected map[string]bool
}

func (src *storeSource) Ask(ctx context.Context, actor string) (string, error) {
	if src.rejected[actor] {
		return "", cast.ErrExhausted
	}
	side, ok, err := src.s.lookupSide(ctx, actor)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", cast.ErrExhausted
	}
	return side.String(), nil
}

func (src *storeSource) Reject(actor, _ string) { src.rejected[actor] = true }
