package models

import (
	"bytes"
	"encoding/json"
)

type fieldState uint8

const (
	fieldAbsent fieldState = iota
	fieldSet
	fieldCleared
)

// Field is one optional column of a partial update. The zero value is absent,
// which leaves the stored value untouched. Set writes a value and Clear resets
// the column to its storage default.
type Field[T any] struct {
	state fieldState
	value T
}

func Set[T any](v T) Field[T] {
	return Field[T]{state: fieldSet, value: v}
}

func Clear[T any]() Field[T] {
	return Field[T]{state: fieldCleared}
}

func (f Field[T]) IsAbsent() bool { return f.state == fieldAbsent }
func (f Field[T]) IsSet() bool { return f.state == fieldSet }
func (f Field[T]) IsCleared() bool { return f.state == fieldCleared }

// IsZero reports absence so that `omitzero` drops untouched fields on encode.
func (f Field[T]) IsZero() bool { return f.state == fieldAbsent }

func (f Field[T]) Value() (T, bool) {
	return f.value, f.state == fieldSet
}

// UnmarshalJSON is only reached for keys present in the document, so a
// missing key stays absent and an explicit null becomes a clear.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		f.state, f.value = fieldCleared, zero
		return nil
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.state, f.value = fieldSet, v
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != fieldSet {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
