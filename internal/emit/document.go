/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package emit serializes staged dialogue events into the JSON document read
// by the stage runtime.
//
// The runtime deserializes every field of a line as a string, so the actions
// of an event are flattened into one comma-joined string instead of an array.
package emit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"scriptstage/internal/staging"
)

// ActionSeparator joins action tokens inside the "actions" field. Actor names
// may contain it too; Line.Tokens regroups pieces on the known verbs. A name
// that itself ends in ".<verb>" before a comma still reads back ambiguously.
const ActionSeparator = ","

var verbSuffixes = []string{
	"." + string(staging.StartBack),
	"." + string(staging.GoBack),
	"." + string(staging.GoFront),
	"." + string(staging.SqBounce),
	"." + string(staging.SqIdle),
}

func endsInVerb(s string) bool {
	for _, suf := range verbSuffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// Line is one dialogue entry of the output document.
type Line struct {
	Actor   string `json:"actor" jsonschema:"title=Speaking actor"`
	Actions string `json:"actions" jsonschema:"title=Comma-separated actor.verb cues"`
	Text    string `json:"text" jsonschema:"title=Spoken text"`
}

// Document is the whole output artifact.
type Document struct {
	Lines []Line `json:"lines"`
}

// Policy decides what happens to text that needs escaping in JSON.
type Policy int

const (
	// PolicyEscape escapes quotes, backslashes and control characters.
	PolicyEscape Policy = iota
	// PolicyStrict refuses such content with an *UnescapedContentError.
	PolicyStrict
)

// ParsePolicy maps "escape" / "strict" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "escape":
		return PolicyEscape, nil
	case "strict":
		return PolicyStrict, nil
	}
	return PolicyEscape, fmt.Errorf("unknown content policy %q", s)
}

// UnescapedContentError reports a field containing the string delimiter,
// a backslash or a control character under PolicyStrict.
type UnescapedContentError struct {
	Index int
	Field string
	Value string
}

func (e *UnescapedContentError) Error() string {
	return fmt.Sprintf("line %d: %s contains characters that need escaping: %q", e.Index, e.Field, e.Value)
}

// FromEvents builds the document, one line per event, in event order.
func FromEvents(events []staging.Event) Document {
	doc := Document{Lines: make([]Line, 0, len(events))}
	for _, ev := range events {
		doc.Lines = append(doc.Lines, Line{
			Actor:   ev.Actor,
			Actions: strings.Join(ev.Tokens(), ActionSeparator),
			Text:    ev.Text,
		})
	}
	return doc
}

// Check applies the policy without encoding anything.
func Check(doc Document, p Policy) error {
	if p != PolicyStrict {
		return nil
	}
	for i, ln := range doc.Lines {
		if needsEscape(ln.Actor) {
			return &UnescapedContentError{Index: i, Field: "actor", Value: ln.Actor}
		}
		if needsEscape(ln.Text) {
			return &UnescapedContentError{Index: i, Field: "text", Value: ln.Text}
		}
	}
	return nil
}

// needsEscape reports text the encoder would escape or rewrite. Invalid
// UTF-8 counts: encoding/json replaces it with U+FFFD.
func needsEscape(s string) bool {
	if !utf8.ValidString(s) {
		return true
	}
	for _, r := range s {
		if r == '"' || r == '\\' || r < 0x20 {
			return true
		}
	}
	return false
}

// Encode writes doc as tab-indented JSON. Nothing is written when the policy
// rejects the document.
func Encode(w io.Writer, doc Document, p Policy) error {
	data, err := Marshal(doc, p)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the encoded document.
func Marshal(doc Document, p Policy) ([]byte, error) {
	if err := Check(doc, p); err != nil {
		return nil, err
	}
	if doc.Lines == nil {
		doc.Lines = []Line{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrNoLines is returned by Decode for a document without a lines array.
var ErrNoLines = errors.New("document has no lines")

// Decode reads a document previously written by Encode.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Lines == nil {
		return Document{}, ErrNoLines
	}
	return doc, nil
}

// Tokens splits the actions field back into "actor.verb" tokens.
func (l Line) Tokens() []string {
	if l.Actions == "" {
		return nil
	}
	var (
		out     []string
		cur     string
		pending bool
	)
	for _, piece := range strings.Split(l.Actions, ActionSeparator) {
		if pending {
			cur += ActionSeparator + piece
		} else {
			cur, pending = piece, true
		}
		if endsInVerb(cur) {
			out = append(out, cur)
			cur, pending = "", false
		}
	}
	if pending {
		out = append(out, cur)
	}
	return out
}
