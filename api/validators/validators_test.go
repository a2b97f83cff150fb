package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
)

type sampleBody struct {
	Name  string  `json:"name" validate:"required"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be a valid email", details["email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	var body sampleBody
	assert.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsEmptyOversizedAndTrailing(t *testing.T) {
	var body sampleBody

	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	big := `{"name":"` + strings.Repeat("x", int(MaxBodyBytes)) + `"}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), &body)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`)), &body)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

type statusBody struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
}

func TestEnumTag(t *testing.T) {
	assert.NoError(t, Struct(statusBody{Status: enums.OrderStatusPending}))

	err := Struct(statusBody{Status: "TELEPORTED"})
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "is not a recognised value", details["status"])
}

func TestDecodeJSONBodyStripping(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"name":"a","yard_id":"x","crew_id":"y"}`))
	var body sampleBody
	stripped, err := DecodeJSONBodyStripping(req, &body, func(key string) bool {
		return key == "yard_id" || key == "crew_id"
	})
	require.NoError(t, err)
	assert.Equal(t, "a", body.Name)
	assert.Equal(t, []string{"crew_id", "yard_id"}, stripped)
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=2&lat=37.5&hasPhotos=true&from=2026-03-01&status=PENDING,ASSIGNED&status=COMPLETED&min=10.50", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	lat, err := ParseQueryFloat(req, "lat")
	require.NoError(t, err)
	assert.Equal(t, 37.5, *lat)

	missing, err := ParseQueryFloat(req, "lng")
	require.NoError(t, err)
	assert.Nil(t, missing)

	hasPhotos, err := ParseQueryBool(req, "hasPhotos")
	require.NoError(t, err)
	assert.True(t, *hasPhotos)

	from, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *from)

	min, err := ParseQueryDecimal(req, "min")
	require.NoError(t, err)
	assert.Equal(t, "10.5", min.String())

	assert.Equal(t, []string{"PENDING", "ASSIGNED", "COMPLETED"}, ParseQueryList(req, "status"))
}

func TestParseQueryRejectsMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=0&lat=north&from=yesterday&yard=abc", nil)

	_, err := ParseQueryInt(req, "page", 1, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = ParseQueryFloat(req, "lat")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = ParseQueryTime(req, "from")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = ParseQueryUUID(req, "yard")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestPathUUID(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	_, err := PathUUID(req, "orderId")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abcdef", SanitizeString("  abcdef ", 0))
	assert.Equal(t, "cañe", SanitizeString("cañería", 4))
	assert.Equal(t, "ab", SanitizeString("ab cd", 3))
}
