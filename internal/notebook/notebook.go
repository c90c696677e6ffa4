// Package notebook implements the Notebook Codec (spec §4.2/§4.3): parsing
// notebook JSON into a generic document, running the schema validator, and
// serializing canonical JSON on write.
//
// The validator is a minimal, embedded subset of the upstream nbformat v4
// schema (see spec §1 "out of scope": the authoritative schema is assumed
// to be an external library; this service only needs enough of it to
// reproduce the one documented failure mode — an unrecognized cell_type —
// and to keep the "metadata is always a dict" invariant).
package notebook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/smilyorg/contentsd/internal/apierror"
)

const schemaSource = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "notebook",
	"type": "object",
	"required": ["nbformat", "metadata", "cells"],
	"properties": {
		"nbformat": {"type": "integer", "minimum": 4},
		"metadata": {"type": "object"},
		"cells": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["cell_type", "metadata"],
				"properties": {
					"cell_type": {
						"enum": ["code", "markdown", "raw"]
					},
					"metadata": {"type": "object"}
				}
			}
		}
	}
}`

var compiled *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("notebook.json", strings.NewReader(schemaSource)); err != nil {
		panic(fmt.Sprintf("notebook: invalid embedded schema: %v", err))
	}
	s, err := compiler.Compile("notebook.json")
	if err != nil {
		panic(fmt.Sprintf("notebook: failed to compile embedded schema: %v", err))
	}
	compiled = s
}

// Document is the parsed notebook body: an arbitrary JSON object. Unknown
// fields are preserved verbatim since this service does not itself own the
// notebook format.
type Document map[string]interface{}

// Decode parses raw notebook JSON bytes. It does not run validation; call
// Validate separately so callers can choose to attach failures as a
// message instead of failing the read (Invariant 3).
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apierror.New(apierror.BadFormat, "invalid notebook JSON: %v", err)
	}
	ensureMetadata(doc)
	return doc, nil
}

// ensureMetadata guarantees doc["metadata"] is present and is a dict, per
// Invariant 3 ("content ... has a metadata dict -- even when validation
// fails").
func ensureMetadata(doc Document) {
	if m, ok := doc["metadata"]; !ok || m == nil {
		doc["metadata"] = map[string]interface{}{}
		return
	}
	if _, ok := doc["metadata"].(map[string]interface{}); !ok {
		doc["metadata"] = map[string]interface{}{}
	}
}

// Validate runs the embedded schema against doc and returns a
// human-readable failure message, or "" if the document is valid.
func Validate(doc Document) string {
	if err := compiled.Validate(map[string]interface{}(doc)); err != nil {
		return fmt.Sprintf("Notebook validation failed: %v", err)
	}
	return ""
}

// Encode serializes a document as canonical JSON for writing to disk.
func Encode(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return nil, apierror.Wrap(err, "failed to serialize notebook")
	}
	return data, nil
}
