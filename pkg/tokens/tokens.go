package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTypeAccess is the token_type claim carried by access tokens.
	TokenTypeAccess = "access"

	// RefreshSecretBytes is the entropy of a refresh secret before hex
	// encoding. Unguessability is the secret's only security property.
	RefreshSecretBytes = 64

	// DefaultAccessTokenExpiry is the lifetime of minted access tokens.
	DefaultAccessTokenExpiry = 15 * time.Minute
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Minter produces signed access tokens and opaque refresh secrets.
// All methods are stateless.
type Minter struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// NewMinter creates a Minter. A zero expiry falls back to
// DefaultAccessTokenExpiry.
func NewMinter(secret, issuer, audience string, expiry time.Duration) *Minter {
	if expiry <= 0 {
		expiry = DefaultAccessTokenExpiry
	}
	return &Minter{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		Expiry:   expiry,
	}
}

// MintAccessToken creates a short-lived signed access token for the user.
func (m *Minter) MintAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			Issuer:    m.Issuer,
			Subject:   userID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{m.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(m.Secret))
	if err != nil {
		slog.Error("Failed to sign access token", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// ParseAccessToken parses and validates an access token string, returning
// its claims.
func (m *Minter) ParseAccessToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}

// NewRefreshSecret generates an opaque random refresh secret,
// hex-encoded. The raw value is returned exactly once to the caller at
// session creation; only its hash is ever persisted.
func NewRefreshSecret() (string, error) {
	buf := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the SHA-256 hex digest of a refresh secret. The
// digest is deterministic and unsalted: the store indexes sessions by it,
// and the secret's entropy is what makes the digest unguessable.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
