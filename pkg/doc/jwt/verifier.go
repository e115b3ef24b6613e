/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
)

// NewVerifierFromJWK creates a signature verifier for the public key carried by j.
// The verifier accepts exactly one algorithm, the one implied by the key type and curve.
func NewVerifierFromJWK(j *jwk.JWK) (jose.SignatureVerifier, error) {
	if j == nil || j.Key == nil {
		return nil, errors.New("public key is not defined")
	}

	pub, err := j.PublicJWK()
	if err != nil {
		return nil, err
	}

	return NewVerifierFromKey(pub.Key)
}

// NewVerifierFromKey creates a signature verifier for an ed25519, ECDSA or RSA public key.
func NewVerifierFromKey(pubKey interface{}) (jose.SignatureVerifier, error) {
	var (
		alg      string
		verifier jose.SignatureVerifier
	)

	switch key := pubKey.(type) {
	case ed25519.PublicKey:
		v, err := NewEd25519Verifier(key)
		if err != nil {
			return nil, err
		}

		alg, verifier = jose.AlgorithmEdDSA, v
	case *ecdsa.PublicKey:
		v, err := NewECDSAVerifier(key)
		if err != nil {
			return nil, err
		}

		alg, verifier = v.curve.alg, v
	case *rsa.PublicKey:
		alg, verifier = jose.AlgorithmRS256, NewRS256Verifier(key)
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pubKey)
	}

	return jose.NewCompositeAlgSigVerifier(jose.AlgSignatureVerifier{
		Alg:      alg,
		Verifier: verifier,
	}), nil
}

// NewSignerFromKey creates a JWS signer for an ed25519, ECDSA or RSA private key.
// headers are added to the protected headers of every token signed with it (e.g. "kid").
func NewSignerFromKey(privKey interface{}, headers map[string]interface{}) (jose.Signer, error) {
	switch key := privKey.(type) {
	case ed25519.PrivateKey:
		return NewEd25519Signer(key, headers), nil
	case *ecdsa.PrivateKey:
		return NewECDSASigner(key, headers)
	case *rsa.PrivateKey:
		return NewRS256Signer(key, headers), nil
	default:
		return nil, fmt.Errorf("unsupported private key type %T", privKey)
	}
}
