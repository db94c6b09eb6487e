package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid. Clients are expected to
// re-login through the REST API when the token expires.
const TokenTTL = 24 * time.Hour

const tokenIssuer = "voxcity"

// Package-level signing key. A random key is generated at startup so tokens
// do not survive a restart; deployments that need stable tokens must call
// SetJWTSecret with a key from configuration.
var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

func init() {
	jwtSecret = make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		// Fallback key only for development environments without entropy
		jwtSecret = []byte("voxcity-dev-secret-change-in-production!")
	}
}

// Claims represents JWT claims issued by this server.
type Claims struct {
	PlayerID uint64 `json:"player_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed HS256 token for the given user.
func GenerateJWT(user *User) (string, error) {
	token, _, err := GenerateJWTWithExpiry(user)
	return token, err
}

// GenerateJWTWithExpiry creates a signed token and also reports its expiry
// as a Unix timestamp, which login responses expose to clients.
func GenerateJWTWithExpiry(user *User) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(TokenTTL)
	claims := &Claims{
		PlayerID: user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(currentSecret())
	if err != nil {
		return "", 0, err
	}
	return signed, expiresAt.Unix(), nil
}

// ParseClaims verifies the token signature, expiry and issuer, and returns
// the embedded claims.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return currentSecret(), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateJWT checks token validity and returns associated user info.
// Invalid tokens yield the zero triple.
func ValidateJWT(tokenString string) (playerID uint64, isValid bool, isAdmin bool) {
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return 0, false, false
	}
	return claims.PlayerID, true, claims.IsAdmin
}

// GenerateSecureSecret generates a new base64-encoded 32-byte secret,
// suitable for SetJWTSecret.
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SetJWTSecret replaces the signing key with a base64-encoded one from
// configuration. Tokens signed with the previous key stop validating.
func SetJWTSecret(secret string) error {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return err
	}
	if len(decoded) < 32 {
		return errors.New("secret key must be at least 32 bytes")
	}
	secretMu.Lock()
	jwtSecret = decoded
	secretMu.Unlock()
	return nil
}

func currentSecret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return jwtSecret
}
