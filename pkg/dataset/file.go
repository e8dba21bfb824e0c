package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Source provides item records from some backing store.
type Source interface {
	// Load reads all records.
	Load(ctx context.Context) ([]Record, error)

	// Close releases backing resources.
	Close(ctx context.Context) error
}

// ReadJSON decodes records from r.
//
// The input is either a bare JSON array of records or an object with a
// "records" array:
//
//	[{"id": 1, "labels": {...}, "values": {...}}, ...]
//	{"records": [...]}
//
// Each record must have an integer "id" and a "values" object mapping
// metric names to numbers. "labels" is optional. ReadJSON does not close r.
func ReadJSON(r io.Reader) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Records []Record `json:"records"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return wrapped.Records, nil
}

// FileSource loads records from a JSON file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading the JSON file at path. The file is
// not opened until Load.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the file.
func (s *FileSource) Load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return records, nil
}

// Close is a no-op for file sources.
func (s *FileSource) Close(ctx context.Context) error { return nil }

// Ensure FileSource implements Source.
var _ Source = (*FileSource)(nil)
