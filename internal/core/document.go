package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Document is the tracked JSON object: an identifying key (email or workflow
// id) mapped to an ordered list of associated identifiers.
type Document map[string][]string

// ParseDocument decodes the stored document. Empty content yields an empty
// document so a freshly created file works without seeding.
func ParseDocument(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Render serializes the document with 4-space indentation and a trailing
// newline. Keys render in lexicographic order, so repeated renders of the
// same document are byte-identical and diffs stay readable.
func (d Document) Render() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return append(b, '\n'), nil
}

// Append adds id to the list under key unless it is already present.
func (d Document) Append(key, id string) {
	if slices.Contains(d[key], id) {
		return
	}
	d[key] = append(d[key], id)
}
