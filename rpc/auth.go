package rpc

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// withAdminAuth gates the parameter and pause methods behind a bearer JWT
// signed with the node's admin secret. A node started without a secret
// refuses admin calls outright.
func (s *Server) withAdminAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next func(http.ResponseWriter, *RPCRequest) string) string {
	if err := s.verifyAdminToken(r); err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
		return "unauthorized"
	}
	return next(w, req)
}

func (s *Server) verifyAdminToken(r *http.Request) error {
	if s.cfg.AdminJWTSecret == "" {
		return fmt.Errorf("admin methods disabled: no admin secret configured")
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return fmt.Errorf("missing Authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("authorization must use the Bearer scheme")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.AdminJWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("token missing expiry")
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("token expired")
	}
	return nil
}

// MintAdminToken issues a short-lived HS256 token for the admin methods.
// It backs the operator tooling and the test harness.
func MintAdminToken(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("admin secret required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"sub": "stakevault-admin",
	})
	return token.SignedString([]byte(secret))
}
