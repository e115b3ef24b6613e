/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package common holds the SD-JWT data model shared by the Issuer, the Holder and the Verifier:
disclosures, digests, the combined format envelope, key binding claims and the decoder that
reconstructs disclosed claims.
*/
package common

import (
	"encoding/json"
	"fmt"

	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
)

// Reserved names of the SD-JWT format.
const (
	// CombinedFormatSeparator separates the SD-JWT, its disclosures and the key binding JWT.
	CombinedFormatSeparator = "~"

	SDAlgorithmKey        = "_sd_alg"
	SDKey                 = "_sd"
	ArrayElementDigestKey = "..."
	CNFKey                = "cnf"
	JWKKey                = "jwk"

	// MediaTypeSDJWT is the typ header of issuer-signed SD-JWT credentials.
	MediaTypeSDJWT = "vc+sd-jwt"
	// MediaTypeKeyBindingJWT is the typ header of key binding JWTs.
	MediaTypeKeyBindingJWT = "kb+jwt"
)

// IsReservedClaimName reports whether name may not be used by a disclosed object member.
func IsReservedClaimName(name string) bool {
	return name == SDKey || name == SDAlgorithmKey || name == ArrayElementDigestKey
}

// GetHasherFromClaims returns the hasher named by the _sd_alg claim, or the sha-256 hasher when the claim is absent.
func GetHasherFromClaims(claims map[string]interface{}) (*Hasher, error) {
	obj, ok := claims[SDAlgorithmKey]
	if !ok {
		return DefaultHasher(), nil
	}

	alg, ok := obj.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string, got %T", ErrDigestAlgorithmUnsupported, SDAlgorithmKey, obj)
	}

	return GetHasher(alg)
}

// GetHolderJWK returns the holder public key from the cnf.jwk claim.
func GetHolderJWK(claims map[string]interface{}) (*jwk.JWK, error) {
	cnfObj, ok := claims[CNFKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s claim is not present", ErrMissingHolderKey, CNFKey)
	}

	cnf, ok := cnfObj.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", ErrMissingHolderKey, CNFKey)
	}

	jwkObj, ok := cnf[JWKKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is not present", ErrMissingHolderKey, CNFKey, JWKKey)
	}

	jwkBytes, err := json.Marshal(jwkObj)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s.%s: %v", ErrMissingHolderKey, CNFKey, JWKKey, err)
	}

	var key jwk.JWK

	if err = json.Unmarshal(jwkBytes, &key); err != nil {
		return nil, fmt.Errorf("%w: unmarshal %s.%s: %v", ErrMissingHolderKey, CNFKey, JWKKey, err)
	}

	if !key.IsPublic() {
		return nil, fmt.Errorf("%w: %s.%s must be a public key", ErrMissingHolderKey, CNFKey, JWKKey)
	}

	return &key, nil
}

// getDigests returns the _sd digests of an object, nil when the object has none.
func getDigests(obj map[string]interface{}) ([]string, error) {
	sdObj, ok := obj[SDKey]
	if !ok {
		return nil, nil
	}

	entries, ok := sdObj.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s type[%T] is not an array", ErrEnvelopeMalformed, SDKey, sdObj)
	}

	digests := make([]string, 0, len(entries))

	for _, e := range entries {
		digest, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s item type[%T] is not a string", ErrEnvelopeMalformed, SDKey, e)
		}

		digests = append(digests, digest)
	}

	return digests, nil
}

// getArrayElementDigest returns d when v is an {"...": d} array element placeholder.
func getArrayElementDigest(v interface{}) (string, bool, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return "", false, nil
	}

	digestObj, ok := obj[ArrayElementDigestKey]
	if !ok {
		return "", false, nil
	}

	if len(obj) != 1 {
		return "", false, fmt.Errorf("%w: array element placeholder must only contain '%s'",
			ErrEnvelopeMalformed, ArrayElementDigestKey)
	}

	digest, ok := digestObj.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: array element digest type[%T] is not a string",
			ErrEnvelopeMalformed, digestObj)
	}

	return digest, true, nil
}
