/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cast derives the set of speaking actors from a parsed script and
// assigns each of them a stage side.
//
// The cast is ordered by first appearance in the script. That order is part
// of the output contract: startBack and sqIdle tokens are emitted in it.
package cast

import (
	"errors"
	"fmt"
	"strings"

	"scriptstage/internal/script"
)

// Side is the stage position of an actor.
type Side int

const (
	Unassigned Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return "Unassigned"
	}
}

// ErrInvalidSide is returned by ParseSide for anything but Left or Right.
var ErrInvalidSide = errors.New("side must be Left or Right")

// ParseSide accepts "Left"/"Right" in any case, plus the "l"/"r" shorthands.
func ParseSide(answer string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return Unassigned, fmt.Errorf("%w: %q", ErrInvalidSide, answer)
}

// Cast is the ordered set of distinct actors in a script.
type Cast struct {
	members []string
	index   map[string]int
}

// FromLines collects distinct actors in first-appearance order.
func FromLines(lines []script.Line) Cast {
	c := Cast{index: make(map[string]int)}
	for _, ln := range lines {
		c.add(ln.Actor)
	}
	return c
}

// New builds a cast from names; duplicates are ignored.
func New(names ...string) Cast {
	c := Cast{index: make(map[string]int)}
	for _, n := range names {
		c.add(n)
	}
	return c
}

func (c *Cast) add(name string) {
	if _, ok := c.index[name]; ok {
		return
	}
	c.index[name] = len(c.members)
	c.members = append(c.members, name)
}

// Members returns a copy of the actors in cast order.
func (c Cast) Members() []string { return append([]string(nil), c.members...) }

// Len returns the number of distinct actors.
func (c Cast) Len() int { return len(c.members) }

// Contains reports whether name speaks in the script.
func (c Cast) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Assignment maps every cast member to a side.
type Assignment map[string]Side

// Of returns the side of actor, or Unassigned.
func (a Assignment) Of(actor string) Side { return a[actor] }

// Missing lists cast members without a valid side, in cast order.
func (a Assignment) Missing(c Cast) []string {
	var out []string
	for _, m := range c.members {
		if s := a[m]; s != Left && s != Right {
			out = append(out, m)
		}
	}
	return out
}

// Strings renders the assignment as actor -> "Left"/"Right", the shape used in
// sides files and the store.
func (a Assignment) Strings() map[string]string {
	out := make(map[string]string, len(a))
	for k, v := range a {
		out[k] = v.String()
	}
	return out
}
