package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenExpiry is the duration for which access tokens are valid.
const AccessTokenExpiry = 12 * time.Hour

// Claims represents JWT claims. The subject carries the account ID.
type Claims struct {
	Role      Role   `json:"role"`
	HolderRef string `json:"holder_ref,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts validated claims into the caller identity.
func (c *Claims) Identity() (Identity, error) {
	accountID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, errors.New("invalid subject")
	}
	if !c.Role.Valid() {
		return Identity{}, errors.New("invalid role")
	}
	return Identity{AccountID: accountID, Role: c.Role, HolderRef: c.HolderRef}, nil
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// Secret returns the signing key, for middleware configuration.
func (s *JWTService) Secret() []byte {
	return s.secret
}

// Issue signs an access token for the identity. Credential checks happen
// upstream; this is used by the seed tool and tests.
func (s *JWTService) Issue(id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = AccessTokenExpiry
	}
	now := time.Now()
	claims := &Claims{
		Role:      id.Role,
		HolderRef: id.HolderRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AccountID.String(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
