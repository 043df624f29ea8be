package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTempFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src", "lista-de-tarefas.json")
	return NewFileStore(path, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := newTempFileStore(t)

	list, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestFileStore_SaveWritesPrettyJSON(t *testing.T) {
	s := newTempFileStore(t)
	ctx := context.Background()

	in := []Task{{ID: "1", Descricao: "Comprar leite", Completa: false}}
	if err := s.SaveAll(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "[\n  {\n    \"id\": \"1\",\n    \"descricao\": \"Comprar leite\",\n    \"completa\": false\n  }\n]"
	if string(data) != want {
		t.Fatalf("unexpected file contents:\n%s", data)
	}
}

func TestFileStore_RoundTripIsNoOp(t *testing.T) {
	s := newTempFileStore(t)
	ctx := context.Background()

	seed := []Task{
		{ID: "1", Descricao: "a", Completa: true},
		{ID: "2", Descricao: "b \"quoted\" ção", Completa: false},
	}
	if err := s.SaveAll(ctx, seed); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, _ := os.ReadFile(s.Path())

	list, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.SaveAll(ctx, list); err != nil {
		t.Fatalf("save again: %v", err)
	}
	after, _ := os.ReadFile(s.Path())

	if string(before) != string(after) {
		t.Fatalf("round trip changed file:\nbefore=%s\nafter=%s", before, after)
	}
}

func TestFileStore_RoundTripKeepsForeignFileBytes(t *testing.T) {
	cases := map[string]string{
		"html characters": "[\n  {\n    \"id\": \"1700000000000\",\n    \"descricao\": \"Pão & leite <2L>\",\n    \"completa\": false\n  }\n]",
		"line separators": "[\n  {\n    \"id\": \"1\",\n    \"descricao\": \"a\u2028b\u2029c \\\\u2028\",\n    \"completa\": true\n  }\n]",
		"empty":           "[]",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTempFileStore(t)
			ctx := context.Background()
			if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(s.Path(), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			list, err := s.LoadAll(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if err := s.SaveAll(ctx, list); err != nil {
				t.Fatalf("save: %v", err)
			}
			after, _ := os.ReadFile(s.Path())
			if string(after) != content {
				t.Fatalf("round trip changed file:\nbefore=%s\nafter=%s", content, after)
			}
		})
	}
}

func TestFileStore_EmptyCollectionIsArray(t *testing.T) {
	s := newTempFileStore(t)

	if err := s.SaveAll(context.Background(), nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != "[]" {
		t.Fatalf("expected [], got %s", data)
	}
}

func TestFileStore_CorruptFileIsUnavailable(t *testing.T) {
	cases := map[string]string{
		"malformed":   `[{"id": "1",`,
		"wrong shape": `{"id": "1"}`,
		"wrong types": `[{"id": "1", "descricao": 3, "completa": false}]`,
		"missing id":  `[{"descricao": "x", "completa": false}]`,
	}

	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTempFileStore(t)
			if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(s.Path(), []byte(contents), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := s.LoadAll(context.Background())
			if !errors.Is(err, ErrStoreUnavailable) {
				t.Fatalf("expected ErrStoreUnavailable, got %v", err)
			}
		})
	}
}

func TestFileStore_UnwritableDirIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(filepath.Join(blocker, "tarefas.json"), slog.New(slog.NewJSONHandler(io.Discard, nil)))

	err := s.SaveAll(context.Background(), []Task{{ID: "1", Descricao: "x"}})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
