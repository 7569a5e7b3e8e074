package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the callback signature token.
const SignatureHeader = "X-Task-Signature"

// signatureTTL bounds how long a signed callback stays verifiable,
// covering the sink's full retry window with slack.
const signatureTTL = 5 * time.Minute

// ErrInvalidSignature is returned when a callback signature is missing,
// malformed, expired, or does not match the body.
var ErrInvalidSignature = errors.New("invalid callback signature")

// signatureClaims binds the token to one specific request body.
type signatureClaims struct {
	BodyDigest string `json:"body_digest"`
	jwt.RegisteredClaims
}

// SignBody produces an HS256 token over the SHA-256 digest of the
// request body. The receiver recomputes the digest before trusting the
// callback.
func SignBody(secret []byte, body []byte) (string, error) {
	digest := sha256.Sum256(body)
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signatureClaims{
		BodyDigest: hex.EncodeToString(digest[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(signatureTTL)),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback body: %w", err)
	}
	return signed, nil
}

// VerifyBody checks the token against the received body. Any mismatch
// (wrong secret, tampered body, expired token) yields
// ErrInvalidSignature.
func VerifyBody(secret []byte, tokenString string, body []byte) error {
	if tokenString == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}

	var claims signatureClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest := sha256.Sum256(body)
	if claims.BodyDigest != hex.EncodeToString(digest[:]) {
		return fmt.Errorf("%w: body digest mismatch", ErrInvalidSignature)
	}
	return nil
}
