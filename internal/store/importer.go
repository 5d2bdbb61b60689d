package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/applytrak/applytrak/internal/schemas"
	"github.com/applytrak/applytrak/internal/types"
)

// ImportFile is the content of an import file: either a bare application array or an
// export envelope with optional goals.
type ImportFile struct {
	Version      string              `json:"version,omitempty"`
	ExportedAt   string              `json:"exportedAt,omitempty"`
	Applications []types.Application `json:"applications"`
	Goals        *types.Goals        `json:"goals,omitempty"`
}

// ParseImport validates data against the import schema and decodes it.
func ParseImport(data []byte) (*ImportFile, error) {
	if err := schemas.ValidateImport(data); err != nil {
		return nil, fmt.Errorf("invalid import file: %w", err)
	}

	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}

	file := &ImportFile{}
	if trimmed := bytes.TrimSpace(probe); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(data, &file.Applications); err != nil {
			return nil, fmt.Errorf("decode import file: %w", err)
		}
		return file, nil
	}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	return file, nil
}

// Export builds the export envelope of s.
func Export(s State, exportedAt string) ImportFile {
	goals := s.Goals
	return ImportFile{
		Version:      "1",
		ExportedAt:   exportedAt,
		Applications: s.Applications,
		Goals:        &goals,
	}
}
