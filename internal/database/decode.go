package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

type DecodeFailure string

const (
	DecodeMissing        DecodeFailure = "missing value"
	DecodeParseFailure   DecodeFailure = "parse failure"
	DecodeWrongContainer DecodeFailure = "wrong container type"
	DecodeWrongElement   DecodeFailure = "wrong element type"
)

// IDList is the outcome of decoding a stored id array. IDs is never nil; when
// Failure is set it is empty and Detail says what was wrong with the raw text.
type IDList struct {
	IDs     []string
	Failure DecodeFailure
	Detail  string
}

func (r IDList) OK() bool {
	return r.Failure == ""
}

func failed(reason DecodeFailure, detail string) IDList {
	return IDList{IDs: []string{}, Failure: reason, Detail: detail}
}

// DecodeIDs parses a stored JSON array of string ids without ever failing.
func DecodeIDs(raw sql.NullString) IDList {
	if !raw.Valid {
		return failed(DecodeMissing, "column is NULL")
	}

	var v any
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return failed(DecodeParseFailure, err.Error())
	}

	items, ok := v.([]any)
	if !ok {
		return failed(DecodeWrongContainer, fmt.Sprintf("got %T", v))
	}

	ids := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return failed(DecodeWrongElement, fmt.Sprintf("element %d is %T", i, item))
		}
		ids = append(ids, s)
	}

	return IDList{IDs: ids}
}
