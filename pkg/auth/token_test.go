package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "shop", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: userID, Role: enums.RoleShipper})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, " "+token+" ")
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID || claims.Role != enums.RoleShipper {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Issuer != cfg.Issuer || claims.ID == "" || claims.Subject != userID.String() {
		t.Fatalf("registered claims not populated: %+v", claims.RegisteredClaims)
	}
}

func TestMintRejectsSystemRoleAndMissingUser(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleSystem})
	require.ErrorContains(t, err, "not accepted")

	_, err = MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{Role: enums.RoleUser})
	require.ErrorContains(t, err, "user_id")

	bad := testJWTConfig()
	bad.ExpirationMinutes = 0
	_, err = MintAccessToken(bad, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.Error(t, err)
}

func TestParseRejectsExpiredAndForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, expired)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	token, err := MintAccessToken(other, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestParseHonoursLeeway(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpirationMinutes = 1
	token, err := MintAccessToken(cfg, time.Now().Add(-80*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, ErrExpired)

	cfg.Leeway = time.Minute
	_, err = ParseAccessToken(cfg, token)
	require.NoError(t, err)
}

func TestParseRejectsTamperedClaims(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	sign := func(c AccessTokenClaims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return s
	}
	base := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	_, err := ParseAccessToken(cfg, sign(base, jwt.SigningMethodHS256, []byte(cfg.Secret)))
	require.ErrorIs(t, err, ErrSubjectMismatch)

	system := base
	system.Subject = ""
	system.Role = enums.RoleSystem
	_, err = ParseAccessToken(cfg, sign(system, jwt.SigningMethodHS256, []byte(cfg.Secret)))
	require.ErrorContains(t, err, "not accepted")

	other := base
	other.Subject = ""
	_, err = ParseAccessToken(cfg, sign(other, jwt.SigningMethodHS512, []byte(cfg.Secret)))
	require.Error(t, err)

	_, err = ParseAccessToken(cfg, sign(other, jwt.SigningMethodHS256, []byte("wrong")))
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	noExp := other
	noExp.ExpiresAt = nil
	_, err = ParseAccessToken(cfg, sign(noExp, jwt.SigningMethodHS256, []byte(cfg.Secret)))
	if err == nil || !strings.Contains(err.Error(), "exp") {
		t.Fatalf("expected missing exp to fail, got %v", err)
	}
}
