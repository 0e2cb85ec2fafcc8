package tokens

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer(newKey(t), nil)

	raw, err := iss.IssueAccessToken("user-1", "abc123")
	require.NoError(t, err)

	claims, err := iss.VerifyAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "abc123", claims.CsrfTokenHash)
	require.WithinDuration(t, time.Now().Add(AccessTokenTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerifyRejectsFlippedSignature(t *testing.T) {
	iss := NewIssuer(newKey(t), nil)
	raw, err := iss.IssueAccessToken("user-1", "h")
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = iss.VerifyAccessToken(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := NewIssuer(newKey(t), nil)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	raw, err := iss.IssueAccessToken("user-1", "h")
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.VerifyAccessToken(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	key := newKey(t)
	iss := NewIssuer(key, nil)
	claims := Claims{UserID: "u", CsrfTokenHash: "h", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}

	// HS256 keyed with the public key bytes: classic algorithm confusion.
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(pubPEM)
	require.NoError(t, err)
	_, err = iss.VerifyAccessToken(hs)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.VerifyAccessToken(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := NewIssuer(newKey(t), nil)
	verifier := NewIssuer(nil, &newKey(t).PublicKey)
	raw, err := signer.IssueAccessToken("u", "h")
	require.NoError(t, err)
	_, err = verifier.VerifyAccessToken(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueWithoutPrivateKey(t *testing.T) {
	verifyOnly := NewIssuer(nil, &newKey(t).PublicKey)
	_, err := verifyOnly.IssueAccessToken("u", "h")
	require.ErrorIs(t, err, ErrSigning)
}

func TestNewIssuerFromPEM(t *testing.T) {
	key := newKey(t)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	signer, err := NewIssuerFromPEM(string(privPEM), "")
	require.NoError(t, err)
	verifier, err := NewIssuerFromPEM("", string(pubPEM))
	require.NoError(t, err)

	raw, err := signer.IssueAccessToken("u", "h")
	require.NoError(t, err)
	c, err := verifier.VerifyAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, "u", c.UserID)

	_, err = NewIssuerFromPEM("", "")
	require.Error(t, err)
	_, err = NewIssuerFromPEM("garbage", "")
	require.Error(t, err)
}

func TestGenerateOpaqueSecretAndHash(t *testing.T) {
	a, err := GenerateOpaqueSecret()
	require.NoError(t, err)
	b, err := GenerateOpaqueSecret()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	// 128 bytes, unpadded base64url
	require.Len(t, a, 171)
	require.NotContains(t, a, "=")

	require.Len(t, Hash(a), 64)
	require.Equal(t, Hash(a), Hash(a))
	require.NotEqual(t, Hash(a), Hash(b))
}
