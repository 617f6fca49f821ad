package document

import (
	"bytes"
	"testing"
)

func TestEmptyRoundTrip(t *testing.T) {
	for _, in := range [][]Document{nil, {}} {
		data, err := Serialize(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "[]" {
			t.Fatalf("unexpected encoding: %s", data)
		}
		docs, err := Deserialize(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs == nil || len(docs) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", docs)
		}
	}
}

func TestRoundTripPreservesDocuments(t *testing.T) {
	in := []Document{
		Document(`{"_id":"1","total":12.5,"tags":["a","b"]}`),
		Document(`{"_id":"2","nested":{"ok":true,"n":null}}`),
		Document(`"scalar"`),
	}
	data, err := Serialize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := Deserialize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d documents, got %d", len(in), len(out))
	}
	for i := range in {
		if !bytes.Equal(in[i], out[i]) {
			t.Fatalf("document %d mismatch: %s != %s", i, out[i], in[i])
		}
	}
}

func TestRoundTripKeepsDocumentBytes(t *testing.T) {
	in := []Document{
		Document(`{"a": 1,  "b" : [ 1, 2 ]}`),
		Document(`{"html":"<b>&</b>"}`),
		Document("{\n\t\"unicode\": \"\u00e9\"\n}"),
	}
	data, err := Serialize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Contains(data, []byte(`\u003c`)) {
		t.Fatalf("document was HTML-escaped: %s", data)
	}
	out, err := Deserialize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d documents, got %d", len(in), len(out))
	}
	for i := range in {
		if !bytes.Equal(in[i], out[i]) {
			t.Fatalf("document %d changed: %q != %q", i, out[i], in[i])
		}
	}
}

func TestSerializeRejectsInvalidDocument(t *testing.T) {
	for _, doc := range []Document{nil, Document(`{"a":`), Document(`not json`)} {
		if _, err := Serialize([]Document{Document(`{}`), doc}); err == nil {
			t.Fatalf("expected error for %q", doc)
		}
	}
}

func TestDeserializeRejectsNonArray(t *testing.T) {
	for _, in := range []string{`{"a":1}`, `null`, `not json`, ``} {
		if _, err := Deserialize([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
