package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrInvalidJSON      = errors.New("invalid JSON: body must be a JSON object")
	ErrInvalidDescricao = errors.New("descricao must be a non-empty string")
	ErrInvalidCompleta  = errors.New("completa must be a boolean")
)

// Input carries the fields a client sent. A nil pointer means the field was
// absent from the body.
type Input struct {
	Descricao *string
	Completa  *bool
}

// ParseInput decodes a create or update body. Field types are checked here;
// content rules live in validate.
func ParseInput(body []byte) (Input, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return Input{}, ErrInvalidJSON
	}

	var in Input
	if raw, ok := fields["descricao"]; ok {
		var s string
		if isNull(raw) || json.Unmarshal(raw, &s) != nil {
			return Input{}, ErrInvalidDescricao
		}
		in.Descricao = &s
	}
	if raw, ok := fields["completa"]; ok {
		var b bool
		if isNull(raw) || json.Unmarshal(raw, &b) != nil {
			return Input{}, ErrInvalidCompleta
		}
		in.Completa = &b
	}
	return in, nil
}

func validate(in Input, requireDescricao bool) error {
	if in.Descricao == nil {
		if requireDescricao {
			return ErrInvalidDescricao
		}
		return nil
	}
	if strings.TrimSpace(*in.Descricao) == "" {
		return ErrInvalidDescricao
	}
	return nil
}

// IsValidationError reports whether err should be answered with 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidJSON) ||
		errors.Is(err, ErrInvalidDescricao) ||
		errors.Is(err, ErrInvalidCompleta)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
