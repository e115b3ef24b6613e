/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import "errors"

// Failures of issuance, presentation and verification. Callers classify them with errors.Is,
// the wrapping error carries the digest, path or expected/actual values involved.
var (
	// ErrInvalidPointer is returned when a JSON pointer does not reference a concealable member or element.
	ErrInvalidPointer = errors.New("invalid pointer")
	// ErrReservedClaimName is returned when input claims use _sd, _sd_alg or "..." as a member name.
	ErrReservedClaimName = errors.New("reserved claim name")
	// ErrMalformedDisclosure is returned for disclosures that cannot be decoded or do not fit their slot.
	ErrMalformedDisclosure = errors.New("malformed disclosure")
	// ErrDigestAlgorithmUnsupported is returned when _sd_alg names an unknown hash algorithm.
	ErrDigestAlgorithmUnsupported = errors.New("digest algorithm unsupported")
	// ErrUnusedDisclosure is returned when a supplied disclosure matches no digest of the SD-JWT.
	ErrUnusedDisclosure = errors.New("unused disclosure")
	// ErrDuplicateDigestResolution is returned when a digest would be resolved more than once.
	ErrDuplicateDigestResolution = errors.New("duplicate digest resolution")
	// ErrSignatureInvalid is returned when the SD-JWT or the key binding JWT fails signature verification.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrUnexpectedTokenType is returned when the typ header differs from the expected media type.
	ErrUnexpectedTokenType = errors.New("unexpected token type")
	// ErrExpired is returned when exp is in the past, or nbf/iat are in the future.
	ErrExpired = errors.New("token expired")
	// ErrMissingHolderKey is returned when cnf.jwk is absent or not a valid public key.
	ErrMissingHolderKey = errors.New("missing holder key")
	// ErrSDHashMismatch is returned when sd_hash does not cover the presented SD-JWT and disclosures.
	ErrSDHashMismatch = errors.New("sd_hash mismatch")
	// ErrAudienceMismatch is returned when the key binding aud differs from the expected audience.
	ErrAudienceMismatch = errors.New("audience mismatch")
	// ErrNonceMismatch is returned when the key binding nonce differs from the expected nonce.
	ErrNonceMismatch = errors.New("nonce mismatch")
	// ErrEnvelopeMalformed is returned for compact serializations that cannot be split into their parts.
	ErrEnvelopeMalformed = errors.New("malformed SD-JWT envelope")
	// ErrClaimsSchemaViolation is returned when claims do not validate against the issuer's JSON schema.
	ErrClaimsSchemaViolation = errors.New("claims schema violation")
)
