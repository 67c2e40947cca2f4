package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/arond1/jotter/internal/apperr"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONCodecs(t *testing.T) {
	for _, codec := range []Codec{CodecPlain, CodecDeflate} {
		s := memRoot(t)
		in := doc{Name: "work", Count: 7}
		if err := s.SaveJSON("doc.json", in, codec); err != nil {
			t.Fatalf("SaveJSON(%d): %v", codec, err)
		}
		var out doc
		if err := s.LoadJSON("doc.json", &out, codec); err != nil {
			t.Fatalf("LoadJSON(%d): %v", codec, err)
		}
		if out != in {
			t.Errorf("codec %d: got %+v, want %+v", codec, out, in)
		}

		raw, _ := s.Read("doc.json")
		pretty := bytes.Contains(raw, []byte("\n    \"name\": \"work\""))
		if codec == CodecPlain && !pretty {
			t.Errorf("plain document is not pretty-printed: %s", raw)
		}
		if codec == CodecDeflate && json.Valid(raw) {
			t.Errorf("deflated document is stored as plain JSON")
		}
	}
}

func TestDeflateShrinksLargeDocuments(t *testing.T) {
	s := memRoot(t)
	in := map[string]doc{}
	for i := 0; i < 200; i++ {
		in[fmt.Sprintf("note-%03d.md", i)] = doc{Name: "work", Count: i}
	}
	if err := s.SaveJSON("plain.json", in, CodecPlain); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveJSON("packed.json", in, CodecDeflate); err != nil {
		t.Fatal(err)
	}
	plain, _ := s.Read("plain.json")
	packed, _ := s.Read("packed.json")
	if len(packed) >= len(plain) {
		t.Errorf("deflated size %d, plain size %d", len(packed), len(plain))
	}

	var out map[string]doc
	if err := s.LoadJSON("packed.json", &out, CodecDeflate); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(out) != len(in) || out["note-123.md"].Count != 123 {
		t.Errorf("round trip lost entries: %d", len(out))
	}
}

func TestLoadJSONMissing(t *testing.T) {
	s := memRoot(t)
	var out doc
	err := s.LoadJSON("nope.json", &out, CodecPlain)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("LoadJSON missing = %v, want ErrNotFound", err)
	}
}

func TestLoadJSONInvalid(t *testing.T) {
	s := memRoot(t)
	_ = s.Write("bad.json", []byte("{not json"))
	var out doc
	err := s.LoadJSON("bad.json", &out, CodecPlain)
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("LoadJSON invalid = %v, want decode error", err)
	}
}
