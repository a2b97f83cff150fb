package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
)

func queryError(key, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": key})
}

// optionalQuery parses key with parse, returning nil when the parameter is absent or blank.
func optionalQuery[T any](r *http.Request, key, kind string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, queryError(key, "query parameter must be "+kind)
	}
	return &value, nil
}

// ParseQueryInt returns defaultVal when key is absent and rejects values outside [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	value, err := optionalQuery(r, key, "numeric", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case value == nil:
		return defaultVal, nil
	case *value < min || *value > max:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return *value, nil
}

func ParseQueryFloat(r *http.Request, key string) (*float64, error) {
	return optionalQuery(r, key, "numeric", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func ParseQueryDecimal(r *http.Request, key string) (*decimal.Decimal, error) {
	return optionalQuery(r, key, "a decimal", decimal.NewFromString)
}

func ParseQueryBool(r *http.Request, key string) (*bool, error) {
	return optionalQuery(r, key, "a boolean", strconv.ParseBool)
}

// ParseQueryTime accepts RFC3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func ParseQueryTime(r *http.Request, key string) (*time.Time, error) {
	return optionalQuery(r, key, "a date", func(s string) (time.Time, error) {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC(), nil
		}
		return time.Parse(time.DateOnly, s)
	})
}

func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	return optionalQuery(r, key, "a uuid", uuid.Parse)
}

// ParseQueryList splits comma separated and repeated values, dropping blanks.
func ParseQueryList(r *http.Request, key string) []string {
	var out []string
	for _, value := range r.URL.Query()[key] {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// PathUUID parses a chi URL parameter.
func PathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err != nil {
		return uuid.Nil, queryError(key, "invalid "+key)
	}
	return id, nil
}
