package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/flate"

	"github.com/arond1/jotter/internal/apperr"
)

// Codec selects how JSON documents are stored on disk.
type Codec int

const (
	// CodecPlain stores pretty-printed JSON.
	CodecPlain Codec = iota
	// CodecDeflate stores JSON compressed with raw DEFLATE (no gzip header).
	CodecDeflate
)

// LoadJSON reads the document at path and decodes it into v. A missing file
// yields an error matching apperr.ErrNotFound.
func (f *FS) LoadJSON(path string, v any, codec Codec) error {
	data, err := f.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: load %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	if codec == CodecDeflate {
		data, err = inflate(data)
		if err != nil {
			return fmt.Errorf("storage: inflate %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", path, err)
	}
	return nil
}

// SaveJSON encodes v and atomically replaces the document at path.
func (f *FS) SaveJSON(path string, v any, codec Codec) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", path, err)
	}
	if codec == CodecDeflate {
		data, err = deflate(data)
		if err != nil {
			return fmt.Errorf("storage: deflate %s: %w", path, err)
		}
	}
	return f.Write(path, data)
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
