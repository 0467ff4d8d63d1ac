/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script splits raw dialogue lines of the form "Actor: text" into
// actor/text pairs.
package script

import (
	"errors"
	"fmt"
)

// Separator divides the actor name from the spoken text. Only its first
// occurrence counts; the text may contain further separators.
const Separator = ": "

// Line is one validated dialogue line.
// Index is the 0-based position in the source script and is what error
// messages and staging refer to.
type Line struct {
	Index int
	Actor string
	Text  string
}

// ErrEmptyScript is returned when a script contains no lines at all.
var ErrEmptyScript = errors.New("script has no lines")

// MalformedLineError reports a line that does not split into actor and text.

type MalformedLineError struct {
	Index int
	Line  string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: missing %q separator: %q", e.Index, Separator, e.Line)
}
