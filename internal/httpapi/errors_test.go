package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/records"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &account.OpError{Op: "get", Kind: account.ErrNotFound, Err: records.ErrNotFound}, http.StatusNotFound},
		{"validation", &account.OpError{Op: "update", Kind: account.ErrValidationFailed}, http.StatusBadRequest},
		{"credential", &account.OpError{Op: "change password", Kind: account.ErrInvalidCredential}, http.StatusBadRequest},
		{"upstream", &account.OpError{Op: "clear profile image", Kind: account.ErrUpstreamAssetFailure}, http.StatusServiceUnavailable},
		{"duplicate", &account.OpError{Op: "create", Kind: account.ErrValidationFailed, Err: records.ErrDuplicateValue}, http.StatusConflict},
		{"version conflict", fmt.Errorf("save: %w", records.ErrConcurrentModification), http.StatusConflict},
		{"partial cascade", &account.OpError{Op: "delete", Step: "photos", Kind: account.ErrPartialCascade}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestParseToken(t *testing.T) {
	secret := []byte("k")

	tok, err := IssueToken(secret, "user-1", time.Hour)
	require.NoError(t, err)
	claims, err := ParseToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)

	_, err = ParseToken(secret, "not-a-token")
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Sub: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(secret, unsigned)
	assert.Error(t, err, "unsigned tokens are rejected")

	empty, err := IssueToken(secret, "", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(secret, empty)
	assert.Error(t, err, "tokens without a subject are rejected")
}

func TestDecodeDataURI(t *testing.T) {
	data, err := decodeDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = decodeDataURI("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = decodeDataURI("data:image/png,hello")
	assert.Error(t, err)
}
