/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scriptstage/internal/cast"

	tea "github.com/charmbracelet/bubbletea"
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestSideModelKeys(t *testing.T) {
	cases := []struct {
		name    string
		msg     tea.KeyMsg
		answer  string
		aborted bool
	}{
		{"arrow left", tea.KeyMsg{Type: tea.KeyLeft}, "Left", false},
		{"l", runes("l"), "Left", false},
		{"arrow right", tea.KeyMsg{Type: tea.KeyRight}, "Right", false},
		{"R", runes("R"), "Right", false},
		{"q", runes("q"), "", true},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, "", true},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			next, cmd := newSideModel("Alice", 1, "").Update(c.msg)
			m := next.(sideModel)
			if m.answer != c.answer || m.aborted != c.aborted {
				t.Fatalf("answer=%q aborted=%v, want %q %v", m.answer, m.aborted, c.answer, c.aborted)
			}
			if !isQuit(cmd) {
				t.Fatalf("expected quit command")
			}
		})
	}
}

func TestSideModelRejectsOtherKeys(t *testing.T) {
	next, cmd := newSideModel("Alice", 1, "").Update(runes("x"))
	m := next.(sideModel)
	if cmd != nil {
		t.Fatalf("unexpected command for rejected key")
	}
	if m.answer != "" || m.aborted {
		t.Fatalf("state changed on rejected key: %+v", m)
	}
	if !strings.Contains(m.notice, `"x"`) {
		t.Fatalf("notice = %q", m.notice)
	}
	if !strings.Contains(m.View(), "not a side") {
		t.Fatalf("view lacks rejection:\n%s", m.View())
	}
}

func TestSideModelViewNamesActor(t *testing.T) {
	v := newSideModel("Bob", 2, "").View()
	if !strings.Contains(v, "Bob") || !strings.Contains(v, "#2") {
		t.Fatalf("view = %q", v)
	}
}

// scripted drives the model with keys instead of a terminal.
func scripted(keys ...tea.KeyMsg) func(context.Context, tea.Model) (tea.Model, error) {
	return func(_ context.Context, m tea.Model) (tea.Model, error) {
		for _, k := range keys {
			var cmd tea.Cmd
			m, cmd = m.Update(k)
			if isQuit(cmd) {
				return m, nil
			}
		}
		return m, nil
	}
}

func TestPickerAsk(t *testing.T) {
	p := NewPicker(strings.NewReader(""), &strings.Builder{})
	p.run = scripted(runes("x"), tea.KeyMsg{Type: tea.KeyRight})
	got, err := p.Ask(context.Background(), "Alice")
	if err != nil || got != "Right" {
		t.Fatalf("Ask = %q, %v", got, err)
	}
}

func TestPickerAbortIsExhausted(t *testing.T) {
	p := NewPicker(strings.NewReader(""), &strings.Builder{})
	p.run = scripted(tea.KeyMsg{Type: tea.KeyEsc})
	_, err := p.Ask(context.Background(), "Alice")
	if !errors.Is(err, cast.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}

	res, err := cast.Resolve(context.Background(), cast.New("Alice"), p)
	var inc *cast.IncompleteSideAssignmentError
	if !errors.As(err, &inc) || inc.Actor != "Alice" || res != nil {
		t.Fatalf("Resolve err = %v", err)
	}
}

func TestPickerCanceledContext(t *testing.T) {
	p := NewPicker(strings.NewReader(""), &strings.Builder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Ask(ctx, "Alice"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPickerRejectShowsNoticeOnce(t *testing.T) {
	p := NewPicker(strings.NewReader(""), &strings.Builder{})
	var seen []string
	p.run = func(_ context.Context, m tea.Model) (tea.Model, error) {
		seen = append(seen, m.(sideModel).notice)
		next, _ := m.Update(runes("l"))
		return next, nil
	}
	p.Reject("Alice", "up")
	if _, err := p.Ask(context.Background(), "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Ask(context.Background(), "Bob"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(seen[0], `"up"`) || seen[1] != "" {
		t.Fatalf("notices = %q", seen)
	}
}
