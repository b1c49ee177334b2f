// Package keys generates and exposes organization-scoped signing key pairs.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strconv"

	gojose "github.com/go-jose/go-jose/v4"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
)

const (
	rsaBits = 2048

	// AlgorithmRS256 tags keys intended for org-scoped RS256 signing.
	AlgorithmRS256 = "RS256"
)

// NewRSAPair generates a fresh RSA-2048 key pair, PEM-encoded for storage.
func NewRSAPair() (domain.KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("generate rsa key: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("marshal private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("marshal public key: %w", err)
	}

	return domain.KeyPair{
		Algorithm:  AlgorithmRS256,
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})),
	}, nil
}

// JWKS builds the public JSON Web Key Set view of stored organization keys.
// Private key material never leaves the store.
func JWKS(orgKeys domain.OrganizationKeys) (gojose.JSONWebKeySet, error) {
	block, _ := pem.Decode([]byte(orgKeys.PublicKey))
	if block == nil {
		return gojose.JSONWebKeySet{}, fmt.Errorf("decode public key pem: no block")
	}
	public, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return gojose.JSONWebKeySet{}, fmt.Errorf("parse public key: %w", err)
	}

	jwk := gojose.JSONWebKey{
		Key:       public,
		KeyID:     strconv.FormatInt(orgKeys.ID, 10),
		Use:       "sig",
		Algorithm: orgKeys.Algorithm,
	}
	return gojose.JSONWebKeySet{Keys: []gojose.JSONWebKey{jwk}}, nil
}
