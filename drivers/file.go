package drivers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource serves a history document that something else keeps writing to disk. The file is reread on every
// request.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) History() ([]byte, error) {
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%s: not a json object", f.Path)
	}
	return trimmed, nil
}
