package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// Claims defines the identity carried by a signed session cookie
type Claims struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	UnitID   *string `json:"unitId"`
	IsActive bool    `json:"isActive"`
	jwt.RegisteredClaims
}

// TokenManager verifies HS256 session cookies issued by the main application.
type TokenManager struct {
	secretKey  []byte
	cookieName string
	tokenTTL   time.Duration
}

var _ ports.SessionVerifier = (*TokenManager)(nil)

func NewTokenManager(secret, cookieName string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secretKey:  []byte(secret),
		cookieName: cookieName,
		tokenTTL:   ttl,
	}
}

// GenerateToken signs a session token for identity. The relay never hands
// these out; it exists for tooling and tests.
func (tm *TokenManager) GenerateToken(identity domain.Identity) (string, error) {
	claims := &Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     string(identity.Role),
		UnitID:   identity.UnitID,
		IsActive: identity.IsActive,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.tokenTTL)),
			Subject:   identity.UserID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Verify extracts the session cookie from cookieHeader and validates it.
func (tm *TokenManager) Verify(_ context.Context, cookieHeader string) (*domain.Identity, error) {
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSessionRejected, err)
	}

	var tokenString string
	for _, c := range cookies {
		if c.Name == tm.cookieName {
			tokenString = c.Value
			break
		}
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: cookie %s not present", apperrors.ErrSessionRejected, tm.cookieName)
	}

	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSessionRejected, err)
	}

	return &domain.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     domain.Role(claims.Role),
		UnitID:   claims.UnitID,
		IsActive: claims.IsActive,
	}, nil
}
