package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

type statusBody struct {
	Status string  `json:"status" validate:"required,oneof=pending preparing"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=5"`
}

type checkoutBody struct {
	Shipping types.ShippingInfo `json:"shipping"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"shipped","note":"too long"}`))
	var body statusBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be one of [pending preparing]", details["status"])
	require.Equal(t, "must be at most 5", details["note"])
}

func TestDecodeJSONBodyNestedFieldNames(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"shipping":{"full_name":"An","phone":"1","address_line":"x","city":"Hanoi"}}`))
	var body checkoutBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]string)
	require.Contains(t, details, "shipping.phone")
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{"status":"pending","extra":1}`, `{"status":"pending"}{"status":"pending"}`, ``, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body statusBody
		err := DecodeJSONBody(req, &body)
		require.Error(t, err, raw)
		require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), raw)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?limit=10&success=true&from=2026-01-02&min=150&bad=x", nil)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 10, limit)

	success, err := ParseQueryBool(req, "success")
	require.NoError(t, err)
	require.True(t, *success)

	from, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	require.Equal(t, 2, from.Day())

	minCents, err := ParseQueryInt64(req, "min")
	require.NoError(t, err)
	require.EqualValues(t, 150, *minCents)

	missing, err := ParseQueryBool(req, "absent")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = ParseQueryBool(req, "bad")
	require.Error(t, err)
	_, err = ParseQueryTime(req, "bad")
	require.Error(t, err)
	_, err = ParseQueryUUID(req, "bad")
	require.Error(t, err)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=1000", nil))
	require.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	_, err := ParseUUIDParam(req, "orderId")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = ParseUUIDParam(req, "productId")
	require.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "áo", SanitizeString("  áo thun ", 2))
	require.Equal(t, "abc", SanitizeString(" abc ", 0))
}

func TestDecodeJSONBodyDescribesDecodeFailures(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":42}`))
	var body statusBody
	err := DecodeJSONBody(req, &body)
	require.Equal(t, map[string]string{"status": "must be string"}, pkgerrors.As(err).Details())

	big := `{"status":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	err = DecodeJSONBody(req, &body)
	require.ErrorContains(t, err, "exceeds")
}

func TestSanitizeStringDropsControlCharacters(t *testing.T) {
	t.Parallel()

	require.Equal(t, "giao giờ hành chính", SanitizeString("giao giờ\x00 hành chính\x07 ", 0))
	require.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 100))
}
