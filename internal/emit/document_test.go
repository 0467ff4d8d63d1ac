/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package emit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"scriptstage/internal/staging"
)

func sampleEvents() []staging.Event {
	return []staging.Event{
		{Actor: "A", Text: "Hi", Actions: []staging.Action{{Actor: "A", Verb: staging.SqBounce}, {Actor: "B", Verb: staging.SqIdle}}},
		{Actor: "B", Text: "Hello", Actions: []staging.Action{{Actor: "B", Verb: staging.SqBounce}, {Actor: "A", Verb: staging.SqIdle}}},
	}
}

func TestFromEventsFlattensActions(t *testing.T) {
	doc := FromEvents(sampleEvents())
	if len(doc.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(doc.Lines))
	}
	if got, want := doc.Lines[0].Actions, "A.sqBounce,B.sqIdle"; got != want {
		t.Fatalf("actions = %q, want %q", got, want)
	}
	if toks := doc.Lines[1].Tokens(); len(toks) != 2 || toks[0] != "B.sqBounce" {
		t.Fatalf("Tokens = %v", toks)
	}
}

func TestFromEventsKeepsVacantGoBackToken(t *testing.T) {
	ev := staging.Event{Actor: "A", Actions: []staging.Action{{Verb: staging.GoBack}, {Actor: "A", Verb: staging.GoFront}, {Actor: "A", Verb: staging.SqBounce}}}
	doc := FromEvents([]staging.Event{ev})
	if got, want := doc.Lines[0].Actions, ".goBack,A.goFront,A.sqBounce"; got != want {
		t.Fatalf("actions = %q, want %q", got, want)
	}
}

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FromEvents(sampleEvents()), PolicyEscape); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "{\n\t\"lines\": [\n\t\t{\n\t\t\t\"actor\": \"A\",") {
		t.Fatalf("unexpected layout:\n%s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Fatalf("expected trailing newline")
	}
	var back map[string][]map[string]string
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if back["lines"][1]["text"] != "Hello" {
		t.Fatalf("round trip lost text: %v", back)
	}
}

func TestEncodeEscapesQuotes(t *testing.T) {
	doc := Document{Lines: []Line{{Actor: "A", Actions: "A.sqBounce", Text: `She said "go" \ now <b>`}}}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, PolicyEscape); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(buf.String(), `She said \"go\" \\ now <b>`) {
		t.Fatalf("quotes not escaped as expected: %s", buf.String())
	}
	back, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Lines[0].Text != doc.Lines[0].Text {
		t.Fatalf("text changed: %q", back.Lines[0].Text)
	}
}

func TestStrictPolicyRejectsDelimiter(t *testing.T) {
	doc := Document{Lines: []Line{
		{Actor: "A", Actions: "A.sqBounce", Text: "fine"},
		{Actor: "A", Actions: "A.sqBounce", Text: `a "quote"`},
	}}
	var buf bytes.Buffer
	err := Encode(&buf, doc, PolicyStrict)
	var uce *UnescapedContentError
	if !errors.As(err, &uce) {
		t.Fatalf("expected UnescapedContentError, got %v", err)
	}
	if uce.Index != 1 || uce.Field != "text" {
		t.Fatalf("unexpected error detail: %+v", uce)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing must be written on rejection, got %q", buf.String())
	}
}

func TestStrictPolicyRejectsActor(t *testing.T) {
	doc := Document{Lines: []Line{{Actor: `Back\slash`, Actions: "", Text: "x"}}}
	var uce *UnescapedContentError
	if err := Check(doc, PolicyStrict); !errors.As(err, &uce) || uce.Field != "actor" {
		t.Fatalf("expected actor rejection, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("Strict"); err != nil || p != PolicyStrict {
		t.Fatalf("ParsePolicy(Strict) = %v, %v", p, err)
	}
	if p, err := ParsePolicy(""); err != nil || p != PolicyEscape {
		t.Fatalf("ParsePolicy('') = %v, %v", p, err)
	}
	if _, err := ParsePolicy("lenient"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestDecodeRequiresLines(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"other": 1}`)); !errors.Is(err, ErrNoLines) {
		t.Fatalf("expected ErrNoLines, got %v", err)
	}
	if _, err := Decode(strings.NewReader(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTokensKeepCommasInActorNames(t *testing.T) {
	ev := staging.Event{Actor: "Smith, J.", Text: "Hi", Actions: []staging.Action{
		{Actor: "Smith, J.", Verb: staging.SqBounce},
		{Actor: ",Lead", Verb: staging.SqIdle},
		{Verb: staging.GoBack},
		{Actor: "B", Verb: staging.SqIdle},
	}}
	doc := FromEvents([]staging.Event{ev})
	got := doc.Lines[0].Tokens()
	want := ev.Tokens()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Tokens = %q, want %q", got, want)
	}

	if got := (Line{Actions: "A,B.sqBounce,C.sqIdle"}).Tokens(); len(got) != 2 || got[0] != "A,B.sqBounce" {
		t.Fatalf("Tokens = %q", got)
	}
	if got := (Line{}).Tokens(); got != nil {
		t.Fatalf("empty actions Tokens = %q, want nil", got)
	}
}

func TestStrictPolicyRejectsInvalidUTF8(t *testing.T) {
	doc := Document{Lines: []Line{{Actor: "A", Actions: "A.sqBounce", Text: "x\xff"}}}
	var uce *UnescapedContentError
	if err := Check(doc, PolicyStrict); !errors.As(err, &uce) || uce.Field != "text" || uce.Index != 0 {
		t.Fatalf("expected text rejection, got %v", err)
	}
	data, err := Marshal(doc, PolicyEscape)
	if err != nil {
		t.Fatalf("escape policy: %v", err)
	}
	if !bytes.Contains(data, []byte(`x\ufffd`)) {
		t.Fatalf("escape policy output = %s", data)
	}
}
