package mpesa

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// DeriveToken encrypts apiKey under the gateway's RSA public key and returns the
// base64 ciphertext used as the bearer token. publicKey is the base64 DER
// (SubjectPublicKeyInfo) string issued in the developer portal.
//
// PKCS#1 v1.5 padding is randomized, so two calls never return the same token.
func DeriveToken(apiKey, publicKey string) (string, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKey))
	if err != nil {
		return "", &DerivationError{Err: fmt.Errorf("decode public key: %w", err)}
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return "", &DerivationError{Err: fmt.Errorf("parse public key: %w", err)}
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return "", &DerivationError{Err: fmt.Errorf("public key is %T, want RSA", parsed)}
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, key, []byte(apiKey))
	if err != nil {
		return "", &DerivationError{Err: fmt.Errorf("encrypt api key: %w", err)}
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
