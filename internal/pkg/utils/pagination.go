package utils

import (
	"net/http"
	"strconv"
)

// DefaultLimit is the default number of ledger rows returned by list endpoints
const DefaultLimit = 50

// MaxLimit is the maximum number of ledger rows returned by list endpoints
const MaxLimit = 500

// ParseLimit reads the limit query parameter, clamped to [1, MaxLimit]
func ParseLimit(r *http.Request) int {
	limit := parseIntQuery(r.URL.Query().Get("limit"), DefaultLimit)

	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

// ParseInt64Query reads an optional int64 query parameter; zero when absent or malformed
func ParseInt64Query(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseBoolQuery reads an optional boolean query parameter
func ParseBoolQuery(r *http.Request, key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func parseIntQuery(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
