package sqlutil

import (
	"database/sql"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and sql.Null* types

// ToSqlString converts a Go string to sql.NullString, treating "" as NULL
func ToSqlString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

// FromSqlString converts sql.NullString to a Go string with a default
func FromSqlString(val sql.NullString, defaultVal string) string {
	if val.Valid {
		return val.String
	}
	return defaultVal
}

// ToNullJSON encodes v into a nullable jsonb value, NULL for a nil pointer
func ToNullJSON[T any](v *T) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{Valid: false}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

// FromNullJSON decodes a nullable jsonb value, nil for NULL
func FromNullJSON[T any](val pqtype.NullRawMessage) (*T, error) {
	if !val.Valid {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(val.RawMessage, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
