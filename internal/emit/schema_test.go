/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package emit

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSchemaDescribesDocument(t *testing.T) {
	b, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if m["$schema"] != draft07 {
		t.Fatalf("$schema = %v", m["$schema"])
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("missing properties: %v", m)
	}
	if _, ok := props["lines"]; !ok {
		t.Fatalf("schema lacks lines property")
	}
}

func TestManifestConformsToSchema(t *testing.T) {
	data, err := Marshal(FromEvents(sampleEvents()), PolicyEscape)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := Validate(data); err != nil {
		t.Fatalf("encoded document should validate: %v", err)
	}
}

func TestValidateRejectsNonConformingDocuments(t *testing.T) {
	cases := map[string]string{
		"missing text":  `{"lines":[{"actor":"A","actions":"A.sqBounce"}]}`,
		"array actions": `{"lines":[{"actor":"A","actions":["A.sqBounce"],"text":"x"}]}`,
		"empty lines":   `{"lines":[]}`,
		"extra field":   `{"lines":[{"actor":"A","actions":"","text":"x","mood":"sad"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate([]byte(doc))
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if len(se.Problems) == 0 {
				t.Fatalf("SchemaError without problems")
			}
		})
	}
}
