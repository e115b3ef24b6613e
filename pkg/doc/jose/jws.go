/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	jwsPartsCount    = 3
	jwsHeaderPart    = 0
	jwsPayloadPart   = 1
	jwsSignaturePart = 2
)

var (
	// ErrInvalidSignature is returned when a JWS signature cannot be verified.
	ErrInvalidSignature = errors.New("invalid JWS signature")

	errNotAMap = errors.New("expected value to be a map")
)

// Signer defines JWS Signer interface. It makes signing of data and provides custom JWS headers relevant to the signer.
type Signer interface {
	// Sign signs.
	Sign(data []byte) ([]byte, error)
	// Headers provides JWS headers. "alg" header must be provided (see https://tools.ietf.org/html/rfc7515#section-4.1)
	Headers() Headers
}

// SignatureVerifier makes verification of JSON Web Signature.
type SignatureVerifier interface {
	// Verify verifies JWS based on the signing input.
	Verify(joseHeaders Headers, payload, signingInput, signature []byte) error
}

// SignatureVerifierFunc is a function wrapper for SignatureVerifier.
type SignatureVerifierFunc func(joseHeaders Headers, payload, signingInput, signature []byte) error

// Verify verifies JWS signature.
func (s SignatureVerifierFunc) Verify(joseHeaders Headers, payload, signingInput, signature []byte) error {
	return s(joseHeaders, payload, signingInput, signature)
}

// JSONWebSignature defines JSON Web Signature (https://tools.ietf.org/html/rfc7515)
type JSONWebSignature struct {
	ProtectedHeaders Headers

	Payload []byte

	encodedHeaders string
	signature      []byte
}

// NewJWS creates JSON Web Signature. Signer headers are merged into the protected headers,
// the signer's "alg" always wins.
func NewJWS(protectedHeaders Headers, payload []byte, signer Signer) (*JSONWebSignature, error) {
	headers := mergeHeaders(protectedHeaders, signer.Headers())

	if _, ok := headers.Algorithm(); !ok {
		return nil, errors.New("alg JWS header is not defined")
	}

	headersBytes, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("serialize JWS headers: %w", err)
	}

	jws := &JSONWebSignature{
		ProtectedHeaders: headers,
		Payload:          payload,
		encodedHeaders:   base64.RawURLEncoding.EncodeToString(headersBytes),
	}

	signature, err := signer.Sign([]byte(jws.signingInput()))
	if err != nil {
		return nil, fmt.Errorf("sign JWS: %w", err)
	}

	jws.signature = signature

	return jws, nil
}

// SerializeCompact makes JWS Compact Serialization (https://tools.ietf.org/html/rfc7515#section-7.1)
func (s *JSONWebSignature) SerializeCompact() (string, error) {
	if s.encodedHeaders == "" {
		return "", errors.New("JWS has no protected headers")
	}

	return s.signingInput() + "." + base64.RawURLEncoding.EncodeToString(s.signature), nil
}

// Signature returns the raw signature bytes.
func (s *JSONWebSignature) Signature() []byte {
	return s.signature
}

func (s *JSONWebSignature) signingInput() string {
	return s.encodedHeaders + "." + base64.RawURLEncoding.EncodeToString(s.Payload)
}

// ParseJWS parses a compact JWS and verifies its signature with the given verifier.
// Structural problems are returned as plain errors, verification failures wrap ErrInvalidSignature.
func ParseJWS(jws string, verifier SignatureVerifier) (*JSONWebSignature, error) {
	if verifier == nil {
		return nil, errors.New("signature verifier is not defined")
	}

	parts := strings.Split(jws, ".")
	if len(parts) != jwsPartsCount {
		return nil, errors.New("invalid JWS compact format")
	}

	headersBytes, err := base64.RawURLEncoding.DecodeString(parts[jwsHeaderPart])
	if err != nil {
		return nil, fmt.Errorf("decode base64 header: %w", err)
	}

	var headers Headers

	if err = json.Unmarshal(headersBytes, &headers); err != nil {
		return nil, fmt.Errorf("unmarshal JSON headers: %w", err)
	}

	if _, ok := headers.Algorithm(); !ok {
		return nil, errors.New("alg JWS header is not defined")
	}

	if _, ok := headers[HeaderCritical]; ok {
		return nil, errors.New("crit JWS header is not supported")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[jwsPayloadPart])
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[jwsSignaturePart])
	if err != nil {
		return nil, fmt.Errorf("decode base64 signature: %w", err)
	}

	signingInput := parts[jwsHeaderPart] + "." + parts[jwsPayloadPart]

	if err = verifier.Verify(headers, payload, []byte(signingInput), signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &JSONWebSignature{
		ProtectedHeaders: headers,
		Payload:          payload,
		encodedHeaders:   parts[jwsHeaderPart],
		signature:        signature,
	}, nil
}

// IsCompactJWS checks if JWS is in compact serialization form.
func IsCompactJWS(s string) bool {
	parts := strings.Split(s, ".")

	return len(parts) == jwsPartsCount && parts[jwsHeaderPart] != "" && parts[jwsPayloadPart] != ""
}

func mergeHeaders(h1, h2 Headers) Headers {
	h := make(Headers, len(h1)+len(h2))

	for k, v := range h1 {
		h[k] = v
	}

	for k, v := range h2 {
		if _, exists := h[k]; exists && k != HeaderAlgorithm {
			continue
		}

		h[k] = v
	}

	return h
}
