package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMetadataTable(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "operation not allowed in current state", DetailsAllowed: true},
		CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}

	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorText(t *testing.T) {
	plain := Newf(CodeStateConflict, "cannot move order from %s to %s", "shipped", "preparing")
	require.Equal(t, "STATE_CONFLICT: cannot move order from shipped to preparing", plain.Error())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "save order")
	require.Equal(t, "CONFLICT: save order: boom", wrapped.Error())
	require.ErrorIs(t, wrapped, cause)

	var missing *Error
	require.Equal(t, CodeInternal, missing.Code())
	require.Empty(t, missing.Error())
	require.Nil(t, missing.WithDetails("ignored"))
}

func TestDetailsAreAttachedInPlace(t *testing.T) {
	err := New(CodeValidation, "missing sku")
	if err.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	same := err.WithDetails(map[string]string{"field": "sku"})
	if same != err {
		t.Fatalf("WithDetails should return the receiver")
	}
	require.Equal(t, map[string]string{"field": "sku"}, err.Details())
}

func TestAsAndIsWalkTheChain(t *testing.T) {
	inner := New(CodeStateConflict, "already shipped")
	outer := fmt.Errorf("attempt 2: %w", inner)

	require.Same(t, inner, As(outer))
	require.Nil(t, As(nil))
	require.Nil(t, As(stdErrors.New("plain")))

	require.True(t, Is(outer, CodeStateConflict))
	require.False(t, Is(outer, CodeConflict))
	require.False(t, Is(nil, CodeInternal))
}

func TestLookupClassifiesRepositoryErrors(t *testing.T) {
	require.NoError(t, Lookup(nil, "order"))

	notFound := Lookup(fmt.Errorf("find: %w", gorm.ErrRecordNotFound), "order")
	require.True(t, Is(notFound, CodeNotFound))
	require.Equal(t, "order not found", As(notFound).Message())

	typed := New(CodeForbidden, "not yours")
	if err := Lookup(typed, "order"); err != typed {
		t.Fatalf("typed errors should pass through, got %v", err)
	}

	raw := stdErrors.New("connection refused")
	err := Lookup(raw, "product")
	require.True(t, Is(err, CodeDependency))
	require.ErrorIs(t, err, raw)
}

func TestIsRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":        {nil, false},
		"untyped":    {stdErrors.New("io timeout"), true},
		"dependency": {New(CodeDependency, "db down"), true},
		"validation": {New(CodeValidation, "bad"), false},
		"wrapped":    {fmt.Errorf("outer: %w", New(CodeStateConflict, "shipped")), false},
	}
	for name, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", name, got, tc.want)
		}
	}
}
