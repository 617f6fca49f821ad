// Package document converts the documents of one collection to and from
// the canonical artifact representation: a JSON array.
package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Document is one opaque record of a collection, kept as raw JSON.
type Document = json.RawMessage

// Serialize encodes docs as a JSON array. A nil or empty slice encodes as [].
// Each document is written with its bytes unchanged.
func Serialize(docs []Document) ([]byte, error) {
	size := 2
	for i, doc := range docs {
		if !json.Valid(doc) {
			return nil, fmt.Errorf("serialize documents: document %d is not valid JSON", i)
		}
		size += len(doc) + 1
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteByte('[')
	for i, doc := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(doc)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Deserialize decodes a JSON array of documents. An empty array yields a
// non-nil, zero-length slice.
func Deserialize(data []byte) ([]Document, error) {
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("deserialize documents: %w", err)
	}
	if docs == nil {
		return nil, errors.New("deserialize documents: expected a JSON array, got null")
	}
	return docs, nil
}
