/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/emotionlink/sdjwt/pkg/doc/util/maphelpers"
)

// KeyBindingClaims is the payload of a key binding JWT.
type KeyBindingClaims struct {
	Nonce    string           `json:"nonce"`
	Audience jwt.Audience     `json:"aud"`
	IssuedAt *jwt.NumericDate `json:"iat"`
	Expiry   *jwt.NumericDate `json:"exp,omitempty"`
	SDHash   string           `json:"sd_hash"`
}

// ComputeSDHash digests the issuer-signed JWT and the presented disclosures exactly as they appear
// in the combined format, with the trailing separator always present.
func ComputeSDHash(hasher *Hasher, issuerJWT string, disclosures []string) string {
	return hasher.Digest(joinWithoutKeyBinding(issuerJWT, disclosures))
}

// NewKeyBindingClaims creates key binding claims for the presented disclosures. iat is now plus skew.
func NewKeyBindingClaims(hasher *Hasher, issuerJWT string, disclosures []string,
	nonce, audience string, skew time.Duration) *KeyBindingClaims {
	return &KeyBindingClaims{
		Nonce:    nonce,
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(time.Now().Add(skew)),
		SDHash:   ComputeSDHash(hasher, issuerJWT, disclosures),
	}
}

// ParseKeyBindingClaims decodes a key binding JWT payload. aud may be a string or an array of strings.
func ParseKeyBindingClaims(payload map[string]interface{}) (*KeyBindingClaims, error) {
	var claims KeyBindingClaims

	if err := maphelpers.DecodeJSONMap(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: decode key binding claims: %v", ErrEnvelopeMalformed, err)
	}

	return &claims, nil
}
