/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwk wraps go-jose JSON Web Keys with the curves go-jose does not know about (secp256k1).
package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/go-jose/go-jose/v3"
)

const (
	ecKty  = "EC"
	okpKty = "OKP"
	rsaKty = "RSA"

	p256Crv      = "P-256"
	p384Crv      = "P-384"
	p521Crv      = "P-521"
	ed25519Crv   = "Ed25519"
	secp256k1Crv = "secp256k1"

	secp256k1Alg  = "ES256K"
	secp256k1Size = 32
)

// ErrInvalidKey is returned when passed JWK is invalid.
var ErrInvalidKey = errors.New("invalid JWK")

// JWK (JSON Web Key) is a JSON data structure that represents a cryptographic key.
type JWK struct {
	jose.JSONWebKey

	Kty string
	Crv string
}

// jsonWebKey is the raw JSON form used for curves go-jose cannot decode.
type jsonWebKey struct {
	Use string `json:"use,omitempty"`
	Kty string `json:"kty,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	Alg string `json:"alg,omitempty"`

	X *byteBuffer `json:"x,omitempty"`
	Y *byteBuffer `json:"y,omitempty"`
	D *byteBuffer `json:"d,omitempty"`
}

// JWKFromKey creates a JWK from an opaque key struct.
// It's e.g. *ecdsa.PublicKey, *ecdsa.PrivateKey, ed25519.PublicKey, ed25519.PrivateKey or *rsa.PublicKey.
func JWKFromKey(opaqueKey interface{}) (*JWK, error) {
	key := &JWK{
		JSONWebKey: jose.JSONWebKey{
			Key: opaqueKey,
		},
	}

	// marshal/unmarshal to get all JWK's fields other than Key filled.
	keyBytes, err := key.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("create JWK: %w", err)
	}

	err = key.UnmarshalJSON(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create JWK: %w", err)
	}

	return key, nil
}

// UnmarshalJSON reads a key from its JSON representation.
func (j *JWK) UnmarshalJSON(jwkBytes []byte) error {
	var key jsonWebKey

	if err := json.Unmarshal(jwkBytes, &key); err != nil {
		return fmt.Errorf("%w: unable to read JWK: %v", ErrInvalidKey, err)
	}

	if key.Kty == ecKty && key.Crv == secp256k1Crv {
		parsed, err := unmarshalSecp256k1(&key)
		if err != nil {
			return fmt.Errorf("%w: unable to read secp256k1 JWK: %v", ErrInvalidKey, err)
		}

		*j = *parsed

		return nil
	}

	var joseJWK jose.JSONWebKey

	if err := joseJWK.UnmarshalJSON(jwkBytes); err != nil {
		return fmt.Errorf("%w: unable to read jose JWK: %v", ErrInvalidKey, err)
	}

	j.JSONWebKey = joseJWK
	j.Kty = key.Kty
	j.Crv = key.Crv

	return nil
}

// MarshalJSON serializes the given key to its JSON representation.
func (j JWK) MarshalJSON() ([]byte, error) {
	if isSecp256k1(j.Key) {
		return marshalSecp256k1(&j)
	}

	return j.JSONWebKey.MarshalJSON()
}

// PublicJWK returns the public part of the key. A public key is returned as is.
func (j *JWK) PublicJWK() (*JWK, error) {
	switch key := j.Key.(type) {
	case *ecdsa.PublicKey, ed25519.PublicKey, *rsa.PublicKey:
		return j, nil
	case *ecdsa.PrivateKey:
		return j.withKey(&key.PublicKey), nil
	case ed25519.PrivateKey:
		pub, ok := key.Public().(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidKey)
		}

		return j.withKey(pub), nil
	case *rsa.PrivateKey:
		return j.withKey(&key.PublicKey), nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, j.Key)
	}
}

// KeyType returns the kty value of the key, deriving it from the key material when unset.
func (j *JWK) KeyType() string {
	if j.Kty != "" {
		return j.Kty
	}

	switch j.Key.(type) {
	case *ecdsa.PublicKey, *ecdsa.PrivateKey:
		return ecKty
	case ed25519.PublicKey, ed25519.PrivateKey:
		return okpKty
	case *rsa.PublicKey, *rsa.PrivateKey:
		return rsaKty
	}

	return ""
}

func (j *JWK) withKey(key interface{}) *JWK {
	pub := *j
	pub.Key = key

	return &pub
}

// CurveName returns the JWK crv name of an elliptic curve key, deriving it from the key material when unset.
func (j *JWK) CurveName() string {
	if j.Crv != "" {
		return j.Crv
	}

	switch key := j.Key.(type) {
	case *ecdsa.PublicKey:
		return curveName(key)
	case *ecdsa.PrivateKey:
		return curveName(&key.PublicKey)
	case ed25519.PublicKey, ed25519.PrivateKey:
		return ed25519Crv
	}

	return ""
}

func curveName(key *ecdsa.PublicKey) string {
	if key.Curve == btcec.S256() {
		return secp256k1Crv
	}

	switch key.Curve.Params().Name {
	case "P-256":
		return p256Crv
	case "P-384":
		return p384Crv
	case "P-521":
		return p521Crv
	}

	return ""
}

func isSecp256k1(key interface{}) bool {
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		return k.Curve == btcec.S256()
	case *ecdsa.PrivateKey:
		return k.Curve == btcec.S256()
	default:
		return false
	}
}

func unmarshalSecp256k1(key *jsonWebKey) (*JWK, error) {
	if key.X == nil || key.Y == nil {
		return nil, errors.New("missing x or y coordinate")
	}

	curve := btcec.S256()

	if len(key.X.data) != secp256k1Size || len(key.Y.data) != secp256k1Size {
		return nil, errors.New("invalid coordinate size")
	}

	x := new(big.Int).SetBytes(key.X.data)
	y := new(big.Int).SetBytes(key.Y.data)

	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("point is not on the secp256k1 curve")
	}

	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}

	var opaque interface{} = pub

	if key.D != nil {
		opaque = &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(key.D.data)}
	}

	return &JWK{
		JSONWebKey: jose.JSONWebKey{
			Key:       opaque,
			KeyID:     key.Kid,
			Algorithm: key.Alg,
			Use:       key.Use,
		},
		Kty: ecKty,
		Crv: secp256k1Crv,
	}, nil
}

func marshalSecp256k1(j *JWK) ([]byte, error) {
	var (
		pub *ecdsa.PublicKey
		d   *byteBuffer
	)

	switch k := j.Key.(type) {
	case *ecdsa.PublicKey:
		pub = k
	case *ecdsa.PrivateKey:
		pub = &k.PublicKey
		d = newFixedSizeBuffer(k.D.Bytes(), secp256k1Size)
	}

	alg := j.Algorithm
	if alg == "" {
		alg = secp256k1Alg
	}

	return json.Marshal(&jsonWebKey{
		Use: j.Use,
		Kty: ecKty,
		Kid: j.KeyID,
		Crv: secp256k1Crv,
		Alg: alg,
		X:   newFixedSizeBuffer(pub.X.Bytes(), secp256k1Size),
		Y:   newFixedSizeBuffer(pub.Y.Bytes(), secp256k1Size),
		D:   d,
	})
}

// byteBuffer is a base64url (no padding) encoded byte string.
type byteBuffer struct {
	data []byte
}

func newFixedSizeBuffer(data []byte, length int) *byteBuffer {
	paddedData := make([]byte, length-len(data))

	return &byteBuffer{data: append(paddedData, data...)}
}

func (b *byteBuffer) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(b.data))
}

func (b *byteBuffer) UnmarshalJSON(data []byte) error {
	var encoded string

	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}

	if encoded == "" {
		return nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}

	b.data = decoded

	return nil
}
