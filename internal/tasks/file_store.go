package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const collectionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "descricao", "completa"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"descricao": {"type": "string"},
			"completa": {"type": "boolean"}
		}
	}
}`

var fileSchema = jsonschema.MustCompileString("lista-de-tarefas.schema.json", collectionSchema)

// FileStore keeps the collection in a single pretty-printed JSON file.
// A missing file reads as an empty collection.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) LoadAll(ctx context.Context) ([]Task, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Task{}, nil
	}
	if err != nil {
		return nil, s.fail("store_read_failed", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Task{}, nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, s.fail("store_parse_failed", err)
	}
	if err := fileSchema.Validate(doc); err != nil {
		return nil, s.fail("store_schema_invalid", err)
	}

	out := []Task{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, s.fail("store_parse_failed", err)
	}
	return out, nil
}

func (s *FileStore) SaveAll(ctx context.Context, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := encodeCollection(tasks)
	if err != nil {
		return s.fail("store_encode_failed", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.fail("store_write_failed", err)
	}
	tmp, err := os.CreateTemp(dir, ".tarefas-*.tmp")
	if err != nil {
		return s.fail("store_write_failed", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return s.fail("store_write_failed", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return s.fail("store_write_failed", err)
	}
	if err := tmp.Close(); err != nil {
		return s.fail("store_write_failed", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return s.fail("store_write_failed", err)
	}
	return nil
}

// encodeCollection writes the layout other tools produce for this file:
// two-space indent, no trailing newline, and no escaping beyond what JSON
// requires, so &, <, > and U+2028/U+2029 stay raw.
func encodeCollection(tasks []Task) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators undoes encoding/json's \u2028 and \u2029 escapes.
// Escape pairs are consumed whole so an escaped backslash followed by
// "u2028" is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			out = utf8.AppendRune(out, rune(0x2020+int(data[i+5]-'0')))
			i += 5
			continue
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

func (s *FileStore) fail(event string, err error) error {
	s.logger.Error(event, slog.String("path", s.path), slog.String("error", err.Error()))
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, s.path, err)
}
