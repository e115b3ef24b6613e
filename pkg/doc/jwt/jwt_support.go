/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256" // registers crypto.SHA256
	_ "crypto/sha512" // registers crypto.SHA384 and crypto.SHA512
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
)

const (
	p256KeySize      = 32
	p384KeySize      = 48
	p521KeySize      = 66
	secp256k1KeySize = 32
)

// JoseED25519Signer is a Jose compliant signer.
type JoseED25519Signer struct {
	privKey ed25519.PrivateKey
	headers map[string]interface{}
}

// Sign data.
func (s JoseED25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.privKey, data), nil
}

// Headers returns the signer's headers map.
func (s JoseED25519Signer) Headers() jose.Headers {
	return s.headers
}

// NewEd25519Signer returns a Jose compliant signer that can be passed as a signer to jwt.NewSigned().
func NewEd25519Signer(privKey ed25519.PrivateKey, headers map[string]interface{}) *JoseED25519Signer {
	return &JoseED25519Signer{
		privKey: privKey,
		headers: prepareJWSHeaders(headers, jose.AlgorithmEdDSA),
	}
}

// JoseEd25519Verifier is a Jose compliant verifier.
type JoseEd25519Verifier struct {
	pubKey ed25519.PublicKey
}

// Verify signingInput against signature. it validates that joseHeaders contains EdDSA alg for this implementation.
func (v JoseEd25519Verifier) Verify(joseHeaders jose.Headers, _, signingInput, signature []byte) error {
	if err := checkAlg(joseHeaders, jose.AlgorithmEdDSA); err != nil {
		return err
	}

	if ok := ed25519.Verify(v.pubKey, signingInput, signature); !ok {
		return errors.New("signature doesn't match")
	}

	return nil
}

// NewEd25519Verifier returns a Jose compliant verifier that can be passed as a verifier option to jwt.Parse().
func NewEd25519Verifier(pubKey ed25519.PublicKey) (*JoseEd25519Verifier, error) {
	if l := len(pubKey); l != ed25519.PublicKeySize {
		return nil, errors.New("bad ed25519 public key length")
	}

	return &JoseEd25519Verifier{pubKey: pubKey}, nil
}

// ellipticCurve describes the JWS parameters of an ECDSA curve.
type ellipticCurve struct {
	alg     string
	keySize int
	hash    crypto.Hash
}

func ecdsaCurveParams(key *ecdsa.PublicKey) (*ellipticCurve, error) {
	if key.Curve == btcec.S256() {
		return &ellipticCurve{alg: jose.AlgorithmES256K, keySize: secp256k1KeySize, hash: crypto.SHA256}, nil
	}

	switch key.Curve.Params().Name {
	case "P-256":
		return &ellipticCurve{alg: jose.AlgorithmES256, keySize: p256KeySize, hash: crypto.SHA256}, nil
	case "P-384":
		return &ellipticCurve{alg: jose.AlgorithmES384, keySize: p384KeySize, hash: crypto.SHA384}, nil
	case "P-521":
		return &ellipticCurve{alg: jose.AlgorithmES512, keySize: p521KeySize, hash: crypto.SHA512}, nil
	default:
		return nil, fmt.Errorf("unsupported elliptic curve %s", key.Curve.Params().Name)
	}
}

// ECDSASigner is a Jose compliant signer producing fixed size R||S signatures (RFC 7518 section 3.4).
type ECDSASigner struct {
	privKey *ecdsa.PrivateKey
	curve   *ellipticCurve
	headers map[string]interface{}
}

// NewECDSASigner returns a Jose compliant signer. The JWS algorithm is derived from the key curve:
// ES256 (P-256), ES384 (P-384), ES512 (P-521) or ES256K (secp256k1).
func NewECDSASigner(privKey *ecdsa.PrivateKey, headers map[string]interface{}) (*ECDSASigner, error) {
	curve, err := ecdsaCurveParams(&privKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return &ECDSASigner{
		privKey: privKey,
		curve:   curve,
		headers: prepareJWSHeaders(headers, curve.alg),
	}, nil
}

// Sign data.
func (s ECDSASigner) Sign(data []byte) ([]byte, error) {
	hasher := s.curve.hash.New()

	_, err := hasher.Write(data)
	if err != nil {
		return nil, err
	}

	r, sig, err := ecdsa.Sign(rand.Reader, s.privKey, hasher.Sum(nil))
	if err != nil {
		return nil, err
	}

	copyPadded := func(source []byte, size int) []byte {
		dest := make([]byte, size)
		copy(dest[size-len(source):], source)

		return dest
	}

	return append(copyPadded(r.Bytes(), s.curve.keySize), copyPadded(sig.Bytes(), s.curve.keySize)...), nil
}

// Headers returns the signer's headers map.
func (s ECDSASigner) Headers() jose.Headers {
	return s.headers
}

// ECDSAVerifier is a Jose compliant verifier of fixed size R||S signatures.
type ECDSAVerifier struct {
	pubKey *ecdsa.PublicKey
	curve  *ellipticCurve
}

// NewECDSAVerifier returns a Jose compliant verifier that can be passed as a verifier option to jwt.Parse().
func NewECDSAVerifier(pubKey *ecdsa.PublicKey) (*ECDSAVerifier, error) {
	curve, err := ecdsaCurveParams(pubKey)
	if err != nil {
		return nil, err
	}

	return &ECDSAVerifier{pubKey: pubKey, curve: curve}, nil
}

// Verify signingInput against the signature. It also validates that joseHeaders includes the curve's alg.
func (v ECDSAVerifier) Verify(joseHeaders jose.Headers, _, signingInput, signature []byte) error {
	if err := checkAlg(joseHeaders, v.curve.alg); err != nil {
		return err
	}

	if len(signature) != 2*v.curve.keySize {
		return errors.New("ecdsa: invalid signature size")
	}

	hasher := v.curve.hash.New()

	_, err := hasher.Write(signingInput)
	if err != nil {
		return errors.New("ecdsa: hash error")
	}

	r := new(big.Int).SetBytes(signature[:v.curve.keySize])
	s := new(big.Int).SetBytes(signature[v.curve.keySize:])

	if !ecdsa.Verify(v.pubKey, hasher.Sum(nil), r, s) {
		return errors.New("ecdsa: invalid signature")
	}

	return nil
}

// RS256Signer is a Jose compliant signer.
type RS256Signer struct {
	privKey *rsa.PrivateKey
	headers map[string]interface{}
}

// NewRS256Signer returns a Jose compliant signer that can be passed as a signer to jwt.NewSigned().
func NewRS256Signer(privKey *rsa.PrivateKey, headers map[string]interface{}) *RS256Signer {
	return &RS256Signer{
		privKey: privKey,
		headers: prepareJWSHeaders(headers, jose.AlgorithmRS256),
	}
}

// Sign data.
func (s RS256Signer) Sign(data []byte) ([]byte, error) {
	hash := crypto.SHA256.New()

	_, err := hash.Write(data)
	if err != nil {
		return nil, err
	}

	hashed := hash.Sum(nil)

	return rsa.SignPKCS1v15(rand.Reader, s.privKey, crypto.SHA256, hashed)
}

// Headers returns the signer's headers map.
func (s RS256Signer) Headers() jose.Headers {
	return s.headers
}

// RS256Verifier is a Jose compliant verifier.
type RS256Verifier struct {
	pubKey *rsa.PublicKey
}

// NewRS256Verifier returns a Jose compliant verifier that can be passed as a verifier option to jwt.Parse().
func NewRS256Verifier(pubKey *rsa.PublicKey) *RS256Verifier {
	return &RS256Verifier{pubKey: pubKey}
}

// Verify signingInput against the signature. It also validates that joseHeaders includes the right alg.
func (v RS256Verifier) Verify(joseHeaders jose.Headers, _, signingInput, signature []byte) error {
	if err := checkAlg(joseHeaders, jose.AlgorithmRS256); err != nil {
		return err
	}

	hash := crypto.SHA256.New()

	_, err := hash.Write(signingInput)
	if err != nil {
		return err
	}

	hashed := hash.Sum(nil)

	return rsa.VerifyPKCS1v15(v.pubKey, crypto.SHA256, hashed, signature)
}

func checkAlg(joseHeaders jose.Headers, expected string) error {
	alg, ok := joseHeaders.Algorithm()
	if !ok {
		return errors.New("alg is not defined")
	}

	if alg != expected {
		return fmt.Errorf("alg is not %s", expected)
	}

	return nil
}

func prepareJWSHeaders(headers map[string]interface{}, alg string) map[string]interface{} {
	newHeaders := make(map[string]interface{})

	for k, v := range headers {
		newHeaders[k] = v
	}

	newHeaders[jose.HeaderAlgorithm] = alg

	return newHeaders
}
