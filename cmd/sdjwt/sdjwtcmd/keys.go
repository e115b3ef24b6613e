/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdjwtcmd

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec"

	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
)

// oidSecp256k1 is the named curve OID of secp256k1 (SEC 2).
var oidSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}

// ecPrivateKey is the SEC1 EC private key structure (RFC 5915).
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// loadPrivateKey reads a PEM encoded PKCS#8, SEC1 or PKCS#1 private key.
func loadPrivateKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("read private key: no PEM data in %s", path)
	}

	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}

	return key, nil
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}

		return signer, nil
	}

	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	// x509 does not know secp256k1.
	var ecKey ecPrivateKey

	if _, err := asn1.Unmarshal(der, &ecKey); err == nil && ecKey.NamedCurveOID.Equal(oidSecp256k1) {
		privKey, _ := btcec.PrivKeyFromBytes(btcec.S256(), ecKey.PrivateKey)

		return privKey.ToECDSA(), nil
	}

	return nil, errors.New("unsupported private key format, expected PKCS#8, SEC1 or PKCS#1")
}

// loadPublicJWK reads a public key from a PEM file (PKIX public key or any supported private key)
// or from a JSON Web Key file.
func loadPublicJWK(path string) (*jwk.JWK, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		key := &jwk.JWK{}

		if err = key.UnmarshalJSON(trimmed); err != nil {
			return nil, fmt.Errorf("read public key %s: %w", path, err)
		}

		return key.PublicJWK()
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("read public key: no PEM data in %s", path)
	}

	var pubKey interface{}

	if block.Type == "PUBLIC KEY" {
		pubKey, err = x509.ParsePKIXPublicKey(block.Bytes)
	} else {
		var signer crypto.Signer

		signer, err = parsePrivateKey(block.Bytes)
		if err == nil {
			pubKey = signer.Public()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", path, err)
	}

	return jwk.JWKFromKey(pubKey)
}
