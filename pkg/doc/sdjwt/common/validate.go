/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"golang.org/x/exp/slices"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/util/maphelpers"
)

// DefaultSigningAlgorithms are accepted for issuer and holder signatures unless configured otherwise.
//
//nolint:gochecknoglobals
var DefaultSigningAlgorithms = []string{
	jose.AlgorithmEdDSA,
	jose.AlgorithmES256,
	jose.AlgorithmES384,
	jose.AlgorithmES256K,
	jose.AlgorithmRS256,
}

// ParseSignedJWT verifies the signature of a compact JWT. Only the listed algorithms are accepted, never "none".
// Signature failures wrap ErrSignatureInvalid, any other problem wraps ErrEnvelopeMalformed.
func ParseSignedJWT(compact string, verifier jose.SignatureVerifier, algorithms []string) (*afgjwt.JSONWebToken, error) {
	if verifier == nil {
		return nil, errors.New("signature verifier is required")
	}

	allowList := jose.SignatureVerifierFunc(func(joseHeaders jose.Headers, payload, signingInput, signature []byte) error {
		alg, _ := joseHeaders.Algorithm()
		if alg == jose.AlgorithmNone || !slices.Contains(algorithms, alg) {
			return fmt.Errorf("alg '%s' is not in the allowed list", alg)
		}

		return verifier.Verify(joseHeaders, payload, signingInput, signature)
	})

	token, err := afgjwt.Parse(compact, afgjwt.WithSignatureVerifier(allowList))
	if err != nil {
		if errors.Is(err, jose.ErrInvalidSignature) {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}

		return nil, fmt.Errorf("%w: %v", ErrEnvelopeMalformed, err)
	}

	return token, nil
}

// VerifyTyp checks the typ header of token.
func VerifyTyp(token *afgjwt.JSONWebToken, expected string) error {
	typ, ok := token.Headers.Type()
	if !ok {
		return fmt.Errorf("%w: missing typ header, expected '%s'", ErrUnexpectedTokenType, expected)
	}

	if typ != expected {
		return fmt.Errorf("%w: typ '%s', expected '%s'", ErrUnexpectedTokenType, typ, expected)
	}

	return nil
}

// TimeClaims are the registered claims checked against the current time.
type TimeClaims struct {
	Issuer    string           `json:"iss,omitempty"`
	Subject   string           `json:"sub,omitempty"`
	Expiry    *jwt.NumericDate `json:"exp,omitempty"`
	NotBefore *jwt.NumericDate `json:"nbf,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
}

// GetTimeClaims decodes iss, sub, exp, nbf and iat from a JWT payload.
func GetTimeClaims(payload map[string]interface{}) (*TimeClaims, error) {
	var claims TimeClaims

	in := make(map[string]interface{}, len(claims.keys()))

	for _, k := range claims.keys() {
		if v, ok := payload[k]; ok {
			in[k] = v
		}
	}

	if err := maphelpers.DecodeJSONMap(in, &claims); err != nil {
		return nil, fmt.Errorf("%w: decode registered claims: %v", ErrEnvelopeMalformed, err)
	}

	return &claims, nil
}

func (c *TimeClaims) keys() []string {
	return []string{"iss", "sub", "exp", "nbf", "iat"}
}

// Validate fails with ErrExpired when exp is in the past or nbf/iat are in the future, beyond leeway.
func (c *TimeClaims) Validate(now time.Time, leeway time.Duration) error {
	claims := jwt.Claims{
		Expiry:    c.Expiry,
		NotBefore: c.NotBefore,
		IssuedAt:  c.IssuedAt,
	}

	if err := claims.ValidateWithLeeway(jwt.Expected{Time: now}, leeway); err != nil {
		return fmt.Errorf("%w: %v", ErrExpired, err)
	}

	return nil
}
