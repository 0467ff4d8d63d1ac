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
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// draft07 is the meta-schema advertised by Schema; gojsonschema understands it.
const draft07 = "http://json-schema.org/draft-07/schema#"

var (
	schemaOnce  sync.Once
	schemaBytes []byte
	schemaErr   error
	compiled    *gojsonschema.Schema
)

// SchemaError lists the violations found by Validate.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "document does not match schema: " + strings.Join(e.Problems, "; ")
}

func buildSchema() {
	r := &jsonschema.Reflector{Anonymous: true, DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(&Document{})
	s.Version = draft07
	s.Title = "Staged dialogue document"
	if lines, ok := s.Properties.Get("lines"); ok {
		lines.MinItems = ptrUint64(1)
	}
	schemaBytes, schemaErr = json.MarshalIndent(s, "", "  ")
	if schemaErr != nil {
		return
	}
	compiled, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
}

func ptrUint64(v uint64) *uint64 { return &v }

// Schema returns the JSON Schema of Document, derived from the Go types.
func Schema() ([]byte, error) {
	schemaOnce.Do(buildSchema)
	if schemaErr != nil {
		return nil, fmt.Errorf("build schema: %w", schemaErr)
	}
	return append([]byte(nil), schemaBytes...), nil
}

// Validate checks encoded document bytes against Schema.
func Validate(data []byte) error {
	schemaOnce.Do(buildSchema)
	if schemaErr != nil {
		return fmt.Errorf("build schema: %w", schemaErr)
	}
	res, err := compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Problems = append(se.Problems, e.String())
	}
	return se
}
