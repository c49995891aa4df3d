package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// jsonString renders v for storage in a TEXT column. Nil and empty values
// store as the empty string so absent data round-trips as absent.
func jsonString(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(b)
	if s == "null" || s == "[]" || s == "{}" {
		return ""
	}
	return s
}

// jsonScan decodes a TEXT column into out, leaving out untouched for empty
// columns.
func jsonScan(s sql.NullString, out any) {
	if !s.Valid || s.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(s.String), out)
}

func nullStringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullFloatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func nullTimePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func nullStringValue(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}

func nullInt64Value(n sql.NullInt64) int64 {
	if !n.Valid {
		return 0
	}
	return n.Int64
}

func nullFloatValue(n sql.NullFloat64) float64 {
	if !n.Valid {
		return 0
	}
	return n.Float64
}

func nullIntValue(n sql.NullInt64) int {
	if !n.Valid {
		return 0
	}
	return int(n.Int64)
}
