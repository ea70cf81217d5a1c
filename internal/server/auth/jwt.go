// Package auth provides the credential primitives consumed by the account
// service: HS256 session tokens and one-way password digests.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenValidity is the session token lifetime.
const DefaultTokenValidity = 24 * time.Hour

// Claims carries the account identity embedded in a session token.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id"`
	Handle    string `json:"handle"`
	Email     string `json:"email"`
}

// Signer issues and verifies session tokens with one HMAC secret.
type Signer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewSigner(secret string, validity time.Duration) *Signer {
	if validity <= 0 {
		validity = DefaultTokenValidity
	}
	return &Signer{secret: []byte(secret), validity: validity, now: time.Now}
}

// Sign returns a token for the account identity, valid for the signer's
// validity window.
func (s *Signer) Sign(accountID, handle, email string) (string, error) {
	return GenerateToken(Claims{AccountID: accountID, Handle: handle, Email: email}, s.secret, s.validity, s.now())
}

// Parse verifies token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	return ParseToken(token, s.secret)
}

func GenerateToken(claims Claims, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Handle,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates signature and expiry. Expired tokens yield
// common.ErrTokenExpired, anything else unusable common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, errors.Join(common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
