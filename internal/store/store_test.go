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
	"os"
	"path/filepath"
	"testing"
	"time"

	"scriptstage/internal/cast"

	"github.com/google/uuid"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.sqlite")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpenCreatesSchemaAtCurrentVersion(t *testing.T) {
	s, path := openTemp(t)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	var v int
	if err := s.db.QueryRow(`SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("schema = %d, want %d", v, schemaVersion)
	}
}

func TestMigrationsUpgradeV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.sqlite")
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stmts := []string{
		createVersionSQL,
		createCastSidesSQL,
		createConversionsSQL,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z')`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	_ = db.Close()

	s, err := Open(context.Background(), "sqlite:"+path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()
	var v int
	if err := s.db.QueryRow(`SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("schema after migration = %d, want %d", v, schemaVersion)
	}
	var name string
	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_conversions_ts'`).Scan(&name)
	if err != nil {
		t.Fatalf("migration index missing: %v", err)
	}
}

func TestSidesRoundTripAndOverwrite(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	if err := s.SaveSides(ctx, cast.Assignment{"A": cast.Left, "B": cast.Right}); err != nil {
		t.Fatalf("SaveSides: %v", err)
	}
	if err := s.SaveSides(ctx, cast.Assignment{"B": cast.Left, "X": cast.Unassigned}); err != nil {
		t.Fatalf("SaveSides: %v", err)
	}
	got, err := s.LoadSides(ctx, []string{"A", "B", "C", "X"})
	if err != nil {
		t.Fatalf("LoadSides: %v", err)
	}
	want := cast.Assignment{"A": cast.Left, "B": cast.Left}
	if len(got) != len(want) {
		t.Fatalf("LoadSides = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("side of %s = %v, want %v", k, got[k], v)
		}
	}
}

func TestSourceAnswersRememberedSides(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	if err := s.SaveSides(ctx, cast.Assignment{"A": cast.Right}); err != nil {
		t.Fatalf("SaveSides: %v", err)
	}
	src := s.Source()
	ans, err := src.Ask(ctx, "A")
	if err != nil || ans != "Right" {
		t.Fatalf("Ask(A) = %q, %v", ans, err)
	}
	if _, err := src.Ask(ctx, "Nobody"); !errors.Is(err, cast.ErrExhausted) {
		t.Fatalf("Ask(unknown) err = %v, want ErrExhausted", err)
	}
	src.(cast.Rejecter).Reject("A", ans)
	if _, err := src.Ask(ctx, "A"); !errors.Is(err, cast.ErrExhausted) {
		t.Fatalf("Ask after Reject err = %v, want ErrExhausted", err)
	}
}

func TestSourceResolvesThroughChain(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	if err := s.SaveSides(ctx, cast.Assignment{"A": cast.Left}); err != nil {
		t.Fatalf("SaveSides: %v", err)
	}
	fallback := cast.NewMapSource(map[string]string{"B": "right"})
	got, err := cast.Resolve(ctx, cast.New("A", "B"), cast.NewChain(s.Source(), fallback))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["A"] != cast.Left || got["B"] != cast.Right {
		t.Fatalf("Resolve = %v", got)
	}
}

func TestConversionHistoryNewestFirst(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first, err := s.RecordConversion(ctx, Record{At: base, Input: "a.txt", Output: "a.json", Lines: 3, CastSize: 2})
	if err != nil {
		t.Fatalf("RecordConversion: %v", err)
	}
	second, err := s.RecordConversion(ctx, Record{At: base.Add(time.Minute), Input: "b.txt", Output: "b.json", Status: StatusFailed, Error: "line 0: missing"})
	if err != nil {
		t.Fatalf("RecordConversion: %v", err)
	}
	if first == uuid.Nil || first == second {
		t.Fatalf("run ids not unique: %v %v", first, second)
	}
	got, err := s.ListConversions(ctx, 10)
	if err != nil {
		t.Fatalf("ListConversions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != second || got[0].Status != StatusFailed || got[0].Error != "line 0: missing" {
		t.Fatalf("newest record = %+v", got[0])
	}
	if got[1].ID != first || got[1].Status != StatusOK || got[1].Lines != 3 || !got[1].At.Equal(base) {
		t.Fatalf("oldest record = %+v", got[1])
	}
	limited, err := s.ListConversions(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit ignored: %d, %v", len(limited), err)
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &Store{dialect: dialectPostgres}
	if got, want := s.rebind(`SELECT a FROM t WHERE x=? AND y=?`), `SELECT a FROM t WHERE x=$1 AND y=$2`; got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	sq := &Store{dialect: dialectSQLite}
	if got := sq.rebind(`x=?`); got != `x=?` {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}

func TestWithPassword(t *testing.T) {
	cases := []struct{ dsn, pw, want string }{
		{"postgres://scs@db:5432/scs?sslmode=disable", "s3cret", "postgres://scs:s3cret@db:5432/scs?sslmode=disable"},
		{"postgres://scs:given@db/scs", "s3cret", "postgres://scs:given@db/scs"},
		{"postgres://db/scs", "s3cret", "postgres://db/scs"},
		{"/tmp/history.sqlite", "s3cret", "/tmp/history.sqlite"},
		{"postgres://scs@db/scs", "", "postgres://scs@db/scs"},
	}
	for _, c := range cases {
		if got := WithPassword(c.dsn, c.pw); got != c.want {
			t.Fatalf("WithPassword(%q) = %q, want %q", c.dsn, got, c.want)
		}
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

// TestPostgresRoundTrip runs against a live database when SCS_TEST_PG_DSN is set.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("SCS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SCS_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("cannot open postgres: %v", err)
	}
	defer func() { _ = s.Close() }()
	actor := "pg-" + uuid.NewString()
	if err := s.SaveSides(ctx, cast.Assignment{actor: cast.Right}); err != nil {
		t.Fatalf("SaveSides: %v", err)
	}
	got, err := s.LoadSides(ctx, []string{actor})
	if err != nil || got[actor] != cast.Right {
		t.Fatalf("LoadSides = %v, %v", got, err)
	}
	if _, err := s.RecordConversion(ctx, Record{Input: "in", Output: "out"}); err != nil {
		t.Fatalf("RecordConversion: %v", err)
	}
}
