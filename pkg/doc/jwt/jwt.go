/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwt implements compact JSON Web Tokens secured with pluggable JWS signers and verifiers.
package jwt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
)

// TypeJWT defines JWT type.
const TypeJWT = "JWT"

// Claims defines JSON Web Token Claims (https://tools.ietf.org/html/rfc7519#section-4)
type Claims jwt.Claims

// parseOpts holds options for the JWT parsing.
type parseOpts struct {
	sigVerifier jose.SignatureVerifier
}

// ParseOpt is the JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithSignatureVerifier option is for definition of the JWT signature verifier.
func WithSignatureVerifier(signatureVerifier jose.SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// JSONWebToken defines JSON Web Token (https://tools.ietf.org/html/rfc7519)
type JSONWebToken struct {
	Headers jose.Headers

	Payload map[string]interface{}

	jws *jose.JSONWebSignature
}

// Parse parses input JWT in serialized form into JSON Web Token.
// Only compact JWS is supported, unsecured ("alg":"none") tokens are rejected.
// Signature failures wrap jose.ErrInvalidSignature.
func Parse(jwtSerialized string, opts ...ParseOpt) (*JSONWebToken, error) {
	if !jose.IsCompactJWS(jwtSerialized) {
		return nil, errors.New("JWT of compacted JWS form is supported only")
	}

	pOpts := &parseOpts{}

	for _, opt := range opts {
		opt(pOpts)
	}

	if pOpts.sigVerifier == nil {
		return nil, errors.New("signature verifier is required")
	}

	jws, err := jose.ParseJWS(jwtSerialized, rejectUnsecured(pOpts.sigVerifier))
	if err != nil {
		return nil, fmt.Errorf("parse JWT from compact JWS: %w", err)
	}

	return mapJWSToJWT(jws)
}

func rejectUnsecured(v jose.SignatureVerifier) jose.SignatureVerifier {
	return jose.SignatureVerifierFunc(func(joseHeaders jose.Headers, payload, signingInput, signature []byte) error {
		if alg, _ := joseHeaders.Algorithm(); alg == jose.AlgorithmNone {
			return errors.New("unsecured JWT is not supported")
		}

		return v.Verify(joseHeaders, payload, signingInput, signature)
	})
}

func mapJWSToJWT(jws *jose.JSONWebSignature) (*JSONWebToken, error) {
	headers := jws.ProtectedHeaders

	if err := checkHeaders(headers); err != nil {
		return nil, fmt.Errorf("check JWT headers: %w", err)
	}

	claims, err := PayloadToMap(jws.Payload)
	if err != nil {
		return nil, fmt.Errorf("read JWT claims from JWS payload: %w", err)
	}

	return &JSONWebToken{
		Headers: headers,
		Payload: claims,
		jws:     jws,
	}, nil
}

// DecodeClaims fills input c with claims of a token.
func (j *JSONWebToken) DecodeClaims(c interface{}) error {
	pBytes, err := json.Marshal(j.Payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(pBytes, c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *JSONWebToken) LookupStringHeader(name string) string {
	if headerValue, ok := j.Headers[name]; ok {
		if headerStrValue, ok := headerValue.(string); ok {
			return headerStrValue
		}
	}

	return ""
}

// Serialize makes (compact) serialization of token.
func (j *JSONWebToken) Serialize() (string, error) {
	if j.jws == nil {
		return "", errors.New("JWS serialization is supported only")
	}

	return j.jws.SerializeCompact()
}

// NewSigned creates new signed JSON Web Token based on input claims.
func NewSigned(claims interface{}, headers jose.Headers, signer jose.Signer) (*JSONWebToken, error) {
	payloadMap, err := PayloadToMap(claims)
	if err != nil {
		return nil, fmt.Errorf("unmarshallable claims: %w", err)
	}

	payloadBytes, err := json.Marshal(payloadMap)
	if err != nil {
		return nil, fmt.Errorf("marshal JWT claims: %w", err)
	}

	// JWS compact serialization uses only protected headers (https://tools.ietf.org/html/rfc7515#section-3.1).
	jws, err := jose.NewJWS(headers, payloadBytes, signer)
	if err != nil {
		return nil, fmt.Errorf("create JWS: %w", err)
	}

	return &JSONWebToken{
		Headers: jws.ProtectedHeaders,
		Payload: payloadMap,
		jws:     jws,
	}, nil
}

// IsJWS checks if JWT is a JWS of valid structure.
func IsJWS(s string) bool {
	parts := strings.Split(s, ".")

	return len(parts) == 3 &&
		isValidJSON(parts[0]) &&
		isValidJSON(parts[1]) &&
		parts[2] != ""
}

func isValidJSON(s string) bool {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}

	var j map[string]interface{}
	err = json.Unmarshal(b, &j)

	return err == nil
}

func checkHeaders(headers map[string]interface{}) error {
	if _, ok := headers[jose.HeaderAlgorithm]; !ok {
		return errors.New("alg header is not defined")
	}

	if typ, ok := headers[jose.HeaderType]; ok {
		if _, ok := typ.(string); !ok {
			return errors.New("invalid typ header format")
		}
	}

	cty, ok := headers[jose.HeaderContentType]
	if ok && cty == TypeJWT { // https://tools.ietf.org/html/rfc7519#section-5.2
		return errors.New("nested JWT is not supported")
	}

	return nil
}

// PayloadToMap transforms interface to map. Numbers are kept as encoding/json Number so that claim values
// coming from the payload and from disclosures share one representation.
func PayloadToMap(i interface{}) (map[string]interface{}, error) {
	if m, ok := i.(map[string]interface{}); ok && m != nil {
		return m, nil
	}

	if i == nil || reflect.ValueOf(i).Kind() == reflect.Map && reflect.ValueOf(i).IsNil() {
		return nil, errors.New("claims are not defined")
	}

	var (
		b   []byte
		err error
	)

	switch cv := i.(type) {
	case []byte:
		b = cv
	case string:
		b = []byte(cv)
	default:
		b, err = json.Marshal(i)
		if err != nil {
			return nil, fmt.Errorf("marshal interface[%T]: %w", i, err)
		}
	}

	var m map[string]interface{}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	if err := d.Decode(&m); err != nil {
		return nil, fmt.Errorf("convert to map: %w", err)
	}

	if m == nil {
		return nil, errors.New("convert to map: payload is not a JSON object")
	}

	return m, nil
}
