package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// candidateSchema is the structural contract for caller-supplied candidate
// documents. Range and normalization rules live in Validate; this schema
// rejects shape errors (wrong types, non-string sequence elements) before
// decoding.
const candidateSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["model", "prompt", "output"],
  "properties": {
    "model": {"type": "string", "minLength": 1},
    "config": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
    },
    "prompt": {"type": "string", "minLength": 1},
    "context_sources": {"type": "array", "items": {"type": "string"}},
    "output": {"type": "string", "minLength": 1},
    "confidence": {"type": ["number", "null"]},
    "risk_flags": {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": false
}`

var compiledSchema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://decisiontrace.schemas.local/candidate.schema.json"
	if err := c.AddResource(url, strings.NewReader(candidateSchema)); err != nil {
		panic(fmt.Sprintf("candidate schema load failed: %v", err))
	}
	s, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("candidate schema compile failed: %v", err))
	}
	return s
}

// ParseCandidate decodes and validates a candidate document. Structural
// violations from the schema and semantic violations from Validate both
// surface as *ValidationError.
func ParseCandidate(data []byte) (Candidate, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return Candidate{}, &ValidationError{Fields: []string{"document: not valid JSON"}}
	}

	if err := compiledSchema.Validate(generic); err != nil {
		return Candidate{}, &ValidationError{Fields: schemaFields(err)}
	}

	var c Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return Candidate{}, &ValidationError{Fields: []string{"document: " + err.Error()}}
	}
	return Validate(c)
}

func schemaFields(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var fields []string
	for _, cause := range ve.Causes {
		fields = append(fields, schemaField(cause))
	}
	if len(fields) == 0 {
		fields = append(fields, schemaField(ve))
	}
	return fields
}

func schemaField(ve *jsonschema.ValidationError) string {
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		loc = "document"
	}
	return fmt.Sprintf("%s: %s", strings.ReplaceAll(loc, "/", "."), ve.Message)
}
