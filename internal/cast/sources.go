/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cast

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MapSource answers from a fixed mapping. An actor without an entry, or whose
// entry was rejected once, makes it return ErrExhausted.
type MapSource struct {
	answers  map[string]string
	rejected map[string]bool
}

// NewMapSource copies answers into a new MapSource.
func NewMapSource(answers map[string]string) *MapSource {
	m := &MapSource{answers: make(map[string]string, len(answers)), rejected: map[string]bool{}}
	for k, v := range answers {
		m.answers[k] = v
	}
	return m
}

// FromAssignment answers with the sides of a previous assignment.
func FromAssignment(a Assignment) *MapSource { return NewMapSource(a.Strings()) }

func (m *MapSource) Ask(_ context.Context, actor string) (string, error) {
	v, ok := m.answers[actor]
	if !ok || m.rejected[actor] {
		return "", ErrExhausted
	}
	return v, nil
}

func (m *MapSource) Reject(actor, _ string) { m.rejected[actor] = true }

// LoadSidesFile reads a YAML mapping of actor name to side, e.g.
//
//	Alice: left
//	Bob: Right
func LoadSidesFile(path string) (*MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sides file: %w", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse sides file %s: %w", path, err)
	}
	return NewMapSource(raw), nil
}

// SaveSidesFile writes an assignment in the format LoadSidesFile reads.
func SaveSidesFile(path string, a Assignment) error {
	data, err := yaml.Marshal(a.Strings())
	if err != nil {
		return fmt.Errorf("marshal sides: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sides file: %w", err)
	}
	return nil
}

// PromptSource asks on a line-oriented terminal, one answer per line.
type PromptSource struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptSource prompts on out and reads answers from in.
func NewPromptSource(in io.Reader, out io.Writer) *PromptSource {
	return &PromptSource{in: bufio.NewReader(in), out: out}
}

func (p *PromptSource) Ask(ctx context.Context, actor string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, _ = fmt.Fprintf(p.out, "Is %s on the Left or the Right? - ", actor)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if s := strings.TrimSpace(line); s != "" {
				return s, nil
			}
			return "", fmt.Errorf("prompt input closed: %w", ErrExhausted)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *PromptSource) Reject(actor, answer string) {
	_, _ = fmt.Fprintf(p.out, "%q is not a side for %s. Please type Left or Right.\n", answer, actor)
}

// Chain asks each source in turn and returns the first answer. A source
// returning ErrExhausted passes the question on to the next one.
type Chain struct {
	sources []Source
	last    map[string]int
}

// NewChain builds a Chain; nil sources are skipped.
func NewChain(sources ...Source) *Chain {
	c := &Chain{last: map[string]int{}}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

func (c *Chain) Ask(ctx context.Context, actor string) (string, error) {
	for i, s := range c.sources {
		answer, err := s.Ask(ctx, actor)
		if errors.Is(err, ErrExhausted) {
			continue
		}
		if err != nil {
			return "", err
		}
		c.last[actor] = i
		return answer, nil
	}
	return "", ErrExhausted
}

// Reject forwards to the source that produced the rejected answer.
func (c *Chain) Reject(actor, answer string) {
	i, ok := c.last[actor]
	if !ok {
		return
	}
	if r, ok := c.sources[i].(Rejecter); ok {
		r.Reject(actor, answer)
	}
}
