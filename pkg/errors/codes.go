package errors

import "net/http"

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata drives how a code is rendered in the response envelope.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized:      {http.StatusUnauthorized, false, "not authorized for this resource", false, true},
	CodeForbidden:         {http.StatusForbidden, false, "access denied", false, true},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", false, true},
	CodeConflict:          {http.StatusConflict, false, "conflict detected", false, true},
	CodeInvalidTransition: {http.StatusBadRequest, false, "status transition not allowed", true, true},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true, false},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// sqlStateCodes classifies Postgres SQLSTATEs that reach the service layer.
var sqlStateCodes = map[string]Code{
	"23505": CodeConflict,   // unique_violation
	"40001": CodeConflict,   // serialization_failure
	"40P01": CodeConflict,   // deadlock_detected
	"23503": CodeValidation, // foreign_key_violation
	"23514": CodeValidation, // check_violation
	"22P02": CodeValidation, // invalid_text_representation
	"57014": CodeDependency, // query_canceled
	"53300": CodeDependency, // too_many_connections
}
