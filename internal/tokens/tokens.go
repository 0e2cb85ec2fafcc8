package tokens

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL is fixed; callers cannot stretch an access token's life.
const AccessTokenTTL = 20 * time.Minute

// SecretBytes is the entropy of refresh and csrf tokens.
const SecretBytes = 128

var (
	ErrSigning      = errors.New("access token signing failed")
	ErrInvalidToken = errors.New("invalid access token")
)

// Claims is the payload of an access token.
type Claims struct {
	UserID        string `json:"userID"`
	CsrfTokenHash string `json:"csrfTokenHash"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens with an RSA private key and verifies them with
// the matching public key. Services that only verify carry no private key.
type Issuer struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	now     func() time.Time
}

func NewIssuer(private *rsa.PrivateKey, public *rsa.PublicKey) *Issuer {
	if public == nil && private != nil {
		public = &private.PublicKey
	}
	return &Issuer{private: private, public: public, now: time.Now}
}

// NewIssuerFromPEM parses PEM key material. privatePEM may be empty for
// verify-only services.
func NewIssuerFromPEM(privatePEM, publicPEM string) (*Issuer, error) {
	var priv *rsa.PrivateKey
	var pub *rsa.PublicKey
	var err error
	if privatePEM != "" {
		priv, err = jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
	}
	if publicPEM != "" {
		pub, err = jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
	}
	if priv == nil && pub == nil {
		return nil, errors.New("no key material")
	}
	return NewIssuer(priv, pub), nil
}

// IssueAccessToken signs {userID, csrfTokenHash} with a 20 minute expiry.
func (i *Issuer) IssueAccessToken(userID, csrfTokenHash string) (string, error) {
	if i == nil || i.private == nil {
		return "", ErrSigning
	}
	now := i.now()
	claims := Claims{
		UserID:        userID,
		CsrfTokenHash: csrfTokenHash,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.private)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// VerifyAccessToken accepts RS256 only; "none", HMAC and every other
// algorithm in the header are rejected.
func (i *Issuer) VerifyAccessToken(raw string) (*Claims, error) {
	if i == nil || i.public == nil || raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.public, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateOpaqueSecret returns SecretBytes of crypto/rand entropy, base64url encoded.
func GenerateOpaqueSecret() (string, error) {
	b := make([]byte, SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash is the one-way digest used for session keys and csrf binding.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
