/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/stretchr/testify/require"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
)

type testClaims struct {
	Issuer string `json:"iss"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
}

func TestNewSignedAndParse(t *testing.T) {
	ecKey := func(c elliptic.Curve) crypto.Signer {
		k, err := ecdsa.GenerateKey(c, rand.Reader)
		require.NoError(t, err)

		return k
	}

	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	k1Key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)

	tests := []struct {
		name string
		key  crypto.Signer
		alg  string
	}{
		{"EdDSA", edKey, jose.AlgorithmEdDSA},
		{"ES256", ecKey(elliptic.P256()), jose.AlgorithmES256},
		{"ES384", ecKey(elliptic.P384()), jose.AlgorithmES384},
		{"ES512", ecKey(elliptic.P521()), jose.AlgorithmES512},
		{"ES256K", k1Key.ToECDSA(), jose.AlgorithmES256K},
		{"RS256", rsaKey, jose.AlgorithmRS256},
	}

	for _, tc := range tests {
		t.Run("success - "+tc.name, func(t *testing.T) {
			r := require.New(t)

			signer, err := NewSignerFromKey(tc.key, map[string]interface{}{jose.HeaderKeyID: "key-1"})
			r.NoError(err)

			token, err := NewSigned(&testClaims{Issuer: "issuer", Name: "Albert", Age: 42},
				jose.Headers{jose.HeaderType: TypeJWT}, signer)
			r.NoError(err)

			compact, err := token.Serialize()
			r.NoError(err)
			r.True(IsJWS(compact))

			pubJWK, err := jwk.JWKFromKey(tc.key.Public())
			r.NoError(err)

			verifier, err := NewVerifierFromJWK(pubJWK)
			r.NoError(err)

			parsed, err := Parse(compact, WithSignatureVerifier(verifier))
			r.NoError(err)
			r.Equal(tc.alg, parsed.LookupStringHeader(jose.HeaderAlgorithm))
			r.Equal("key-1", parsed.LookupStringHeader(jose.HeaderKeyID))
			r.Equal(TypeJWT, parsed.LookupStringHeader(jose.HeaderType))
			r.Equal(json.Number("42"), parsed.Payload["age"])

			var claims testClaims
			r.NoError(parsed.DecodeClaims(&claims))
			r.Equal("Albert", claims.Name)

			serialized, err := parsed.Serialize()
			r.NoError(err)
			r.Equal(compact, serialized)
		})
	}

	t.Run("error - wrong key", func(t *testing.T) {
		r := require.New(t)

		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		token, err := NewSigned(map[string]interface{}{"iss": "issuer"}, nil, NewEd25519Signer(edKey, nil))
		r.NoError(err)

		compact, err := token.Serialize()
		r.NoError(err)

		verifier, err := NewVerifierFromKey(otherPub)
		r.NoError(err)

		_, err = Parse(compact, WithSignatureVerifier(verifier))
		r.ErrorIs(err, jose.ErrInvalidSignature)

		rsaVerifier, err := NewVerifierFromKey(&rsaKey.PublicKey)
		r.NoError(err)

		_, err = Parse(compact, WithSignatureVerifier(rsaVerifier))
		r.ErrorIs(err, jose.ErrInvalidSignature)
		r.ErrorContains(err, "no verifier found for EdDSA algorithm")
	})

	t.Run("error - unsecured JWT", func(t *testing.T) {
		compact := encodeSegment(`{"alg":"none"}`) + "." + encodeSegment(`{"iss":"issuer"}`) + "."

		verifier, err := NewVerifierFromKey(edKey.Public())
		require.NoError(t, err)

		_, err = Parse(compact, WithSignatureVerifier(verifier))
		require.ErrorIs(t, err, jose.ErrInvalidSignature)
		require.ErrorContains(t, err, "unsecured JWT is not supported")
	})

	t.Run("error - nested JWT", func(t *testing.T) {
		token, err := NewSigned(map[string]interface{}{"iss": "issuer"},
			jose.Headers{jose.HeaderContentType: TypeJWT}, NewEd25519Signer(edKey, nil))
		require.NoError(t, err)

		compact, err := token.Serialize()
		require.NoError(t, err)

		verifier, err := NewVerifierFromKey(edKey.Public())
		require.NoError(t, err)

		_, err = Parse(compact, WithSignatureVerifier(verifier))
		require.ErrorContains(t, err, "nested JWT is not supported")
	})

	t.Run("error - invalid typ header", func(t *testing.T) {
		token, err := NewSigned(map[string]interface{}{"iss": "issuer"},
			jose.Headers{jose.HeaderType: 1}, NewEd25519Signer(edKey, nil))
		require.NoError(t, err)

		compact, err := token.Serialize()
		require.NoError(t, err)

		verifier, err := NewVerifierFromKey(edKey.Public())
		require.NoError(t, err)

		_, err = Parse(compact, WithSignatureVerifier(verifier))
		require.ErrorContains(t, err, "invalid typ header format")
	})

	t.Run("error - no verifier", func(t *testing.T) {
		_, err := Parse(encodeSegment(`{"alg":"EdDSA"}`) + "." + encodeSegment(`{}`) + ".c2ln")
		require.EqualError(t, err, "signature verifier is required")
	})

	t.Run("error - not a compact JWS", func(t *testing.T) {
		_, err := Parse("not a token")
		require.EqualError(t, err, "JWT of compacted JWS form is supported only")
	})

	t.Run("error - serialize without JWS", func(t *testing.T) {
		_, err := (&JSONWebToken{}).Serialize()
		require.EqualError(t, err, "JWS serialization is supported only")
	})
}

func TestPayloadToMap(t *testing.T) {
	t.Run("success - struct, bytes and string", func(t *testing.T) {
		r := require.New(t)

		m, err := PayloadToMap(&testClaims{Name: "Albert", Age: 7})
		r.NoError(err)
		r.Equal("Albert", m["name"])
		r.Equal(json.Number("7"), m["age"])

		m, err = PayloadToMap([]byte(`{"a":1.5}`))
		r.NoError(err)
		r.Equal(json.Number("1.5"), m["a"])

		m, err = PayloadToMap(`{"b":true}`)
		r.NoError(err)
		r.Equal(true, m["b"])
	})

	t.Run("success - map is returned as is", func(t *testing.T) {
		in := map[string]interface{}{"a": 1}

		m, err := PayloadToMap(in)
		require.NoError(t, err)
		require.Equal(t, in, m)
	})

	t.Run("error - no claims", func(t *testing.T) {
		_, err := PayloadToMap(nil)
		require.EqualError(t, err, "claims are not defined")

		var nilMap map[string]interface{}

		_, err = PayloadToMap(nilMap)
		require.EqualError(t, err, "claims are not defined")
	})

	t.Run("error - not an object", func(t *testing.T) {
		_, err := PayloadToMap("[1,2]")
		require.ErrorContains(t, err, "convert to map")

		_, err = PayloadToMap("null")
		require.EqualError(t, err, "convert to map: payload is not a JSON object")
	})

	t.Run("error - unmarshallable", func(t *testing.T) {
		_, err := PayloadToMap(func() {})
		require.ErrorContains(t, err, "marshal interface")
	})
}

func TestIsJWS(t *testing.T) {
	require.True(t, IsJWS(encodeSegment(`{"alg":"EdDSA"}`)+"."+encodeSegment(`{}`)+".c2ln"))
	require.False(t, IsJWS(encodeSegment(`{"alg":"EdDSA"}`)+"."+encodeSegment(`{}`)+"."))
	require.False(t, IsJWS("a.b.c"))
	require.False(t, IsJWS("a.b"))
}

func TestKeys(t *testing.T) {
	t.Run("error - unsupported keys", func(t *testing.T) {
		_, err := NewSignerFromKey("key", nil)
		require.EqualError(t, err, "unsupported private key type string")

		_, err = NewVerifierFromKey("key")
		require.EqualError(t, err, "unsupported public key type string")

		_, err = NewVerifierFromJWK(nil)
		require.EqualError(t, err, "public key is not defined")

		_, err = NewEd25519Verifier(ed25519.PublicKey{1, 2})
		require.EqualError(t, err, "bad ed25519 public key length")
	})

	t.Run("error - ECDSA signature size", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		verifier, err := NewECDSAVerifier(&key.PublicKey)
		require.NoError(t, err)

		err = verifier.Verify(jose.Headers{jose.HeaderAlgorithm: jose.AlgorithmES256}, nil, []byte("input"), []byte{1})
		require.EqualError(t, err, "ecdsa: invalid signature size")

		err = verifier.Verify(jose.Headers{jose.HeaderAlgorithm: jose.AlgorithmES384}, nil, []byte("input"), []byte{1})
		require.EqualError(t, err, "alg is not ES256")

		err = verifier.Verify(jose.Headers{}, nil, []byte("input"), []byte{1})
		require.EqualError(t, err, "alg is not defined")
	})

	t.Run("error - unsupported curve", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
		require.NoError(t, err)

		_, err = NewECDSASigner(key, nil)
		require.EqualError(t, err, "unsupported elliptic curve P-224")
	})
}

func encodeSegment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
