/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// maxLineBytes bounds a single script line for the scanner.
const maxLineBytes = 1 << 20

// Split parses one raw line at position index.
// The actor is everything before the first ": ", the text is the remainder
// with trailing whitespace (including the newline) removed.
func Split(index int, raw string) (Line, error) {
	actor, rest, ok := strings.Cut(raw, Separator)
	if !ok {
		return Line{}, &MalformedLineError{Index: index, Line: raw}
	}
	return Line{
		Index: index,
		Actor: actor,
		Text:  strings.TrimRightFunc(rest, unicode.IsSpace),
	}, nil
}

// Parse validates every raw line before returning any of them. The first
// malformed line aborts the whole parse, so callers never see a partial result.
func Parse(raws []string) ([]Line, error) {
	if len(raws) == 0 {
		return nil, ErrEmptyScript
	}
	out := make([]Line, 0, len(raws))
	for i, raw := range raws {
		ln, err := Split(i, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, nil
}

// ReadLines reads raw script lines from r.
// Line terminators ("\n" or "\r\n") are dropped. Blank lines are kept, they
// are not valid dialogue and Parse reports them.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return lines, nil
}
