package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/cart-service/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "cart-service",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, "user-42")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Fatalf("expected subject user-42, got %s", claims.UserID())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), "user-42")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseAccessTokenRejectsExpiredAndForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	stale, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), "user-42")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, stale); err == nil {
		t.Fatalf("expected expiry error")
	}

	foreign := cfg
	foreign.Issuer = "someone-else"
	token, err := MintAccessToken(foreign, time.Now(), "user-42")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected issuer error")
	}
}

func TestParseAccessTokenRequiresSubject(t *testing.T) {
	cfg := testJWTConfig()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil || !strings.Contains(err.Error(), "subject") {
		t.Fatalf("expected missing subject error, got %v", err)
	}
}

func TestMintAccessTokenValidatesConfig(t *testing.T) {
	if _, err := MintAccessToken(config.JWTConfig{}, time.Now(), "u"); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), " "); err == nil {
		t.Fatalf("expected missing user error")
	}
}
