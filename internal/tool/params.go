package tool

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agent-memory/agent-memory/internal/domain/apperror"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func validate() *validator.Validate {
	validatorOnce.Do(func() { validatorInst = validator.New() })
	return validatorInst
}

// decodeParams unmarshals raw into a T, rejecting unknown fields, then
// runs struct-tag validation over it. Every handler's first line is a
// call to this so malformed or missing parameters fail uniformly as
// CodeMissingField/CodeWrongType before any repository is touched.
func decodeParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, apperror.New(apperror.CodeWrongType, "invalid parameters", "error", err.Error())
	}

	if err := validate().Struct(v); err != nil {
		return v, apperror.New(apperror.CodeMissingField, "parameter validation failed", "error", err.Error())
	}
	return v, nil
}
