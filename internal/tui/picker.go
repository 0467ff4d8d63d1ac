/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package tui asks for actor sides with a small full-terminal picker.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"scriptstage/internal/cast"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Left  key.Binding
	Right key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Left, k.Right, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Left:  key.NewBinding(key.WithKeys("left", "l", "L"), key.WithHelp("←/l", "left")),
	Right: key.NewBinding(key.WithKeys("right", "r", "R"), key.WithHelp("→/r", "right")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "abort")),
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6BCB77"))
	actorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD93D"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
)

// sideModel asks for the side of a single actor.
type sideModel struct {
	actor   string
	asked   int
	notice  string
	answer  string
	aborted bool
	help    help.Model
}

func newSideModel(actor string, asked int, notice string) sideModel {
	return sideModel{actor: actor, asked: asked, notice: notice, help: help.New()}
}

func (m sideModel) Init() tea.Cmd { return nil }

func (m sideModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			m.answer = cast.Left.String()
			return m, tea.Quit
		case key.Matches(msg, keys.Right):
			m.answer = cast.Right.String()
			return m, tea.Quit
		case key.Matches(msg, keys.Quit):
			m.aborted = true
			return m, tea.Quit
		default:
			m.notice = fmt.Sprintf("%q is not a side. Press ←/l for Left or →/r for Right.", msg.String())
			return m, nil
		}
	}
	return m, nil
}

func (m sideModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Staging side #%d", m.asked)))
	b.WriteString("\n\n")
	b.WriteString("Is ")
	b.WriteString(actorStyle.Render(m.actor))
	b.WriteString(" on the Left or the Right?\n")
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render("⚠ " + m.notice))
		b.WriteString("\n")
	}
	if m.answer != "" {
		b.WriteString(statusStyle.Render(m.actor + " → " + m.answer))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(statusStyle.Render(m.help.View(keys)))
	b.WriteString("\n")
	return b.String()
}

// Picker is a cast.Source that runs one bubbletea program per question.
// Aborting the picker reports cast.ErrExhausted.
type Picker struct {
	in     io.Reader
	out    io.Writer
	asked  int
	notice string
	// run executes the model; tests replace it to drive Update directly.
	run func(ctx context.Context, m tea.Model) (tea.Model, error)
}

// NewPicker creates a picker reading keys from in and drawing to out.
func NewPicker(in io.Reader, out io.Writer) *Picker {
	p := &Picker{in: in, out: out}
	p.run = p.runProgram
	return p
}

func (p *Picker) runProgram(ctx context.Context, m tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	return prog.Run()
}

// Ask shows the picker for actor and returns "Left" or "Right".
func (p *Picker) Ask(ctx context.Context, actor string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.asked++
	notice := p.notice
	p.notice = ""
	final, err := p.run(ctx, newSideModel(actor, p.asked, notice))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", cast.ErrExhausted
		}
		return "", fmt.Errorf("side picker: %w", err)
	}
	m, ok := final.(sideModel)
	if !ok || m.aborted || m.answer == "" {
		return "", fmt.Errorf("picker aborted for %s: %w", actor, cast.ErrExhausted)
	}
	return m.answer, nil
}

// Reject shows the rejected answer on the next question.
func (p *Picker) Reject(actor, answer string) {
	p.notice = fmt.Sprintf("%q is not a side for %s.", answer, actor)
}
