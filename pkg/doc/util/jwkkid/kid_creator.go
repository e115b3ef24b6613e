/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwkkid derives key IDs from JWK thumbprints (RFC 7638).
package jwkkid

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
)

const (
	ed25519ThumbprintTemplate   = `{"crv":"Ed25519","kty":"OKP","x":"%s"}`
	secp256k1ThumbprintTemplate = `{"crv":"secp256k1","kty":"EC","x":"%s","y":"%s"}`

	secp256k1CoordinateSize = 32
)

var errInvalidKeyType = errors.New("key type is not supported")

// CreateKID creates a KID value from the SHA-256 thumbprint of the public part of key.
// returns:
//   - base64 raw (no padding) URL encoded KID
//   - error in case of error
func CreateKID(key *jwk.JWK) (string, error) {
	if key == nil || key.Key == nil {
		return "", errors.New("createKID: empty key")
	}

	pub, err := key.PublicJWK()
	if err != nil {
		return "", fmt.Errorf("createKID: %w", err)
	}

	switch k := pub.Key.(type) {
	case ed25519.PublicKey:
		// go-jose JWK thumbprint of Ed25519 has a bug, build it manually.
		return createED25519KID(k)
	case *ecdsa.PublicKey:
		if pub.CurveName() == "secp256k1" {
			return createSecp256k1KID(k), nil
		}
	}

	tp, err := pub.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("createKID: %w: %v", errInvalidKeyType, err)
	}

	return base64.RawURLEncoding.EncodeToString(tp), nil
}

func createED25519KID(keyBytes []byte) (string, error) {
	lenKey := len(keyBytes)

	if lenKey > ed25519.PublicKeySize {
		return "", errors.New("createED25519KID: invalid Ed25519 key")
	}

	pad := make([]byte, ed25519.PublicKeySize-lenKey)
	ed25519RawKey := append(pad, keyBytes...)

	j := fmt.Sprintf(ed25519ThumbprintTemplate, base64.RawURLEncoding.EncodeToString(ed25519RawKey))

	return base64.RawURLEncoding.EncodeToString(sha256Sum(j)), nil
}

func createSecp256k1KID(key *ecdsa.PublicKey) string {
	x := padded(key.X.Bytes(), secp256k1CoordinateSize)
	y := padded(key.Y.Bytes(), secp256k1CoordinateSize)

	j := fmt.Sprintf(secp256k1ThumbprintTemplate,
		base64.RawURLEncoding.EncodeToString(x), base64.RawURLEncoding.EncodeToString(y))

	return base64.RawURLEncoding.EncodeToString(sha256Sum(j))
}

func padded(b []byte, size int) []byte {
	dest := make([]byte, size)
	copy(dest[size-len(b):], b)

	return dest
}

func sha256Sum(j string) []byte {
	h := sha256.Sum256([]byte(j))

	return h[:]
}
