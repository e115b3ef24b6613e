/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jose implements the compact JSON Web Signature plumbing used by the JWT and SD-JWT packages.
package jose

import (
	"encoding/json"

	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
)

// IANA registered JOSE headers (https://tools.ietf.org/html/rfc7515#section-4.1)
const (
	// HeaderAlgorithm identifies the cryptographic algorithm used to secure the JWS.
	HeaderAlgorithm = "alg" // string

	// HeaderJSONWebKey is the public key that corresponds to the key used to digitally sign the JWS.
	HeaderJSONWebKey = "jwk" // JSON

	// HeaderKeyID is a hint indicating which key was used to secure the JWS.
	HeaderKeyID = "kid" // string

	// HeaderType is used by JWS applications to declare the media type of this complete JWS.
	HeaderType = "typ" // string

	// HeaderContentType is used by JWS applications to declare the media type of the secured content.
	HeaderContentType = "cty" // string

	// HeaderCritical indicates that extensions to this JWS header specification and/or JWA are being used
	// that MUST be understood and processed.
	HeaderCritical = "crit" // array
)

// JWS signature algorithms (https://www.rfc-editor.org/rfc/rfc7518#section-3.1, RFC 8037, RFC 8812).
const (
	AlgorithmEdDSA  = "EdDSA"
	AlgorithmES256  = "ES256"
	AlgorithmES384  = "ES384"
	AlgorithmES512  = "ES512"
	AlgorithmES256K = "ES256K"
	AlgorithmRS256  = "RS256"

	// AlgorithmNone is the algorithm of unsecured JWS. It is never accepted by a verifier.
	AlgorithmNone = "none"
)

// Headers represents JOSE headers.
type Headers map[string]interface{}

// KeyID gets Key ID from JOSE headers.
func (h Headers) KeyID() (string, bool) {
	return h.stringValue(HeaderKeyID)
}

// Algorithm gets Algorithm from JOSE headers.
func (h Headers) Algorithm() (string, bool) {
	return h.stringValue(HeaderAlgorithm)
}

// Type gets content encryption type from JOSE headers.
func (h Headers) Type() (string, bool) {
	return h.stringValue(HeaderType)
}

// ContentType gets the payload content type from JOSE headers.
func (h Headers) ContentType() (string, bool) {
	return h.stringValue(HeaderContentType)
}

func (h Headers) stringValue(key string) (string, bool) {
	raw, ok := h[key]
	if !ok {
		return "", false
	}

	str, ok := raw.(string)

	return str, ok
}

// JWK gets JWK from JOSE headers.
func (h Headers) JWK() (*jwk.JWK, bool) {
	jwkRaw, ok := h[HeaderJSONWebKey]
	if !ok {
		return nil, false
	}

	var jwkKey jwk.JWK

	err := convertMapToValue(jwkRaw, &jwkKey)
	if err != nil {
		return nil, false
	}

	return &jwkKey, true
}

func convertMapToValue(vOriginToBeMap, vDest interface{}) error {
	if _, ok := vOriginToBeMap.(map[string]interface{}); !ok {
		return errNotAMap
	}

	mBytes, err := json.Marshal(vOriginToBeMap)
	if err != nil {
		return err
	}

	return json.Unmarshal(mBytes, vDest)
}
