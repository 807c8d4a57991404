package domain

import (
	"database/sql"
	"strconv"
)

func itoa(n int) string { return strconv.Itoa(n) }

// ftoa formats with the shortest representation that round-trips.
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// NullString returns a valid sql.NullString for s.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
