package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the identity carried inside a JWT: who the caller
// is and which establishment they belong to. The core never validates
// credentials itself; it only trusts tokens minted by the identity tier.
type CustomClaims struct {
	UserID          string `json:"user_id"`
	EstablishmentID string `json:"establishment_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies identity tokens with an HMAC secret
// loaded from configuration.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret []byte, duration time.Duration) *TokenManager {
	return &TokenManager{secret: secret, duration: duration}
}

// Generate creates a signed JWT for a specific user of one establishment.
func (m *TokenManager) Generate(userID, establishmentID string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:          userID,
		EstablishmentID: establishmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "studyrooms",
		},
	}

	// HS256: HMAC with SHA256, same scheme the rest of the platform uses.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates the signature and expiration of a JWT string.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
