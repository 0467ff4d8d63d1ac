/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package staging turns parsed dialogue lines into dialogue events carrying
// enter/exit/idle/speak cues for a two-sided stage.
//
// Each side has at most one actor in front (its occupant). When an actor
// speaks from a side held by someone else, the occupant goes back and the
// speaker comes to the front. The speaker bounces, everybody else idles.
package staging

import (
	"scriptstage/internal/cast"
	"scriptstage/internal/script"
)

// Verb is the animation part of an action token.
type Verb string

const (
	StartBack Verb = "startBack"
	GoBack    Verb = "goBack"
	GoFront   Verb = "goFront"
	SqBounce  Verb = "sqBounce"
	SqIdle    Verb = "sqIdle"
)

// Action is one "actor.verb" cue. Actor may be empty for a goBack issued
// while a side has no occupant.
type Action struct {
	Actor string
	Verb  Verb
}

func (a Action) String() string { return a.Actor + "." + string(a.Verb) }

// Event is the staged form of one script line.
type Event struct {
	Actor   string
	Actions []Action
	Text    string
}

// Tokens renders the actions as "actor.verb" strings in order.
func (e Event) Tokens() []string {
	out := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		out[i] = a.String()
	}
	return out
}

// Options tunes quirks of the cue synthesis.
type Options struct {
	// SuppressVacantGoBack drops the goBack cue when the side being entered
	// has no occupant. By default such a cue is kept with an empty actor
	// (".goBack"), which the stage runtime ignores.
	SuppressVacantGoBack bool
}

// state tracks who is in front on each side during one pass.
type state struct {
	left  string
	right string
}

// Synthesize produces one event per line, in line order.
// assign must cover every member of c; otherwise an
// *cast.IncompleteSideAssignmentError names the first uncovered actor.
func Synthesize(lines []script.Line, c cast.Cast, assign cast.Assignment, opt Options) ([]Event, error) {
	if missing := assign.Missing(c); len(missing) > 0 {
		return nil, &cast.IncompleteSideAssignmentError{Actor: missing[0]}
	}
	for _, ln := range lines {
		if !c.Contains(ln.Actor) {
			return nil, &cast.IncompleteSideAssignmentError{Actor: ln.Actor}
		}
	}
	if len(lines) == 0 {
		return []Event{}, nil
	}

	members := c.Members()
	firstLeft := firstOnSide(lines, assign, cast.Left)
	firstRight := firstOnSide(lines, assign, cast.Right)
	st := state{left: firstLeft, right: firstRight}

	events := make([]Event, 0, len(lines))
	for i, ln := range lines {
		var actions []Action
		if i == 0 {
			for _, m := range members {
				if m != firstLeft && m != firstRight {
					actions = append(actions, Action{Actor: m, Verb: StartBack})
				}
			}
		} else {
			actions = st.enter(actions, ln.Actor, assign.Of(ln.Actor), opt)
		}
		actions = appendGestures(actions, ln.Actor, members)
		events = append(events, Event{Actor: ln.Actor, Actions: actions, Text: ln.Text})
	}
	return events, nil
}

// firstOnSide returns the speaker of the earliest line whose actor stands on side.
func firstOnSide(lines []script.Line, assign cast.Assignment, side cast.Side) string {
	for _, ln := range lines {
		if assign.Of(ln.Actor) == side {
			return ln.Actor
		}
	}
	return ""
}

// enter brings name to the front of its side. The two sides are checked
// independently; an actor has one side so at most one check fires.
func (st *state) enter(actions []Action, name string, side cast.Side, opt Options) []Action {
	if side == cast.Left && name != st.left {
		actions = swap(actions, st.left, name, opt)
		st.left = name
	}
	if side == cast.Right && name != st.right {
		actions = swap(actions, st.right, name, opt)
		st.right = name
	}
	return actions
}

func swap(actions []Action, occupant, name string, opt Options) []Action {
	if occupant != "" || !opt.SuppressVacantGoBack {
		actions = append(actions, Action{Actor: occupant, Verb: GoBack})
	}
	return append(actions, Action{Actor: name, Verb: GoFront})
}

func appendGestures(actions []Action, speaker string, members []string) []Action {
	actions = append(actions, Action{Actor: speaker, Verb: SqBounce})
	for _, m := range members {
		if m != speaker {
			actions = append(actions, Action{Actor: m, Verb: SqIdle})
		}
	}
	return actions
}
