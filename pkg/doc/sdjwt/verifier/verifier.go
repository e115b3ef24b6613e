/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package verifier enables the Verifier: An entity that requests, checks and
extracts the claims from an SD-JWT and respective Disclosures.
*/
package verifier

import (
	"errors"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/emotionlink/sdjwt/pkg/common/log"
	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
)

var logger = log.New("sdjwt/verifier")

// parseOpts holds options for verifying the combined format for presentation.
type parseOpts struct {
	sigVerifier             jose.SignatureVerifier
	issuerSigningAlgorithms []string
	holderSigningAlgorithms []string
	expectedTyp             string
	expectedAudience        string
	expectedNonce           string
	leeway                  time.Duration
	now                     func() time.Time
}

// ParseOpt is the SD-JWT presentation parser option.
type ParseOpt func(opts *parseOpts)

// WithSignatureVerifier option is for definition of the issuer signature verifier.
func WithSignatureVerifier(signatureVerifier jose.SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// WithIssuerSigningAlgorithms option is for defining secure signing algorithms (for issuer).
func WithIssuerSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.issuerSigningAlgorithms = algorithms
	}
}

// WithHolderSigningAlgorithms option is for defining secure signing algorithms (for holder).
func WithHolderSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.holderSigningAlgorithms = algorithms
	}
}

// WithExpectedTypHeader sets the typ header of the issuer-signed JWT, vc+sd-jwt by default.
func WithExpectedTypHeader(typ string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedTyp = typ
	}
}

// WithExpectedAudience sets the aud the key binding JWT must carry. It is required.
func WithExpectedAudience(audience string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedAudience = audience
	}
}

// WithExpectedNonce sets the nonce the key binding JWT must carry.
func WithExpectedNonce(nonce string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedNonce = nonce
	}
}

// WithLeeway is an option for claims time(s) validation of both JWTs.
func WithLeeway(duration time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.leeway = duration
	}
}

// WithCurrentTime overrides the clock used for time validation.
func WithCurrentTime(now time.Time) ParseOpt {
	return func(opts *parseOpts) {
		opts.now = func() time.Time { return now }
	}
}

// VerificationResult is the outcome of a successful verification.
type VerificationResult struct {
	// Claims are the issuer claims with every presented disclosure resolved.
	Claims    map[string]interface{}
	Issuer    string
	Subject   string
	HolderKey *jwk.JWK
	// KeyBinding is the payload of the verified key binding JWT.
	KeyBinding *common.KeyBindingClaims
}

// Parse parses combined format for presentation and returns verified claims.
// The Verifier has to verify that all disclosed claim values were part of the original, Issuer-signed SD-JWT.
//
// At a high level, the Verifier:
//   - receives the Combined Format for Presentation from the Holder and verifies the signature of the SD-JWT using the
//     Issuer's public key,
//   - verifies the Key Binding JWT using the public key included in the SD-JWT,
//   - checks that sd_hash covers the SD-JWT and exactly the presented Disclosures,
//   - calculates the digests over the Holder-Selected Disclosures and verifies that each digest
//     is contained in the SD-JWT.
//
// The Verifier will not, however, learn any claim values not disclosed in the Disclosures.
// Steps run in a fixed order, the first failing step rejects the presentation.
func Parse(combinedFormatForPresentation string, opts ...ParseOpt) (*VerificationResult, error) {
	pOpts := &parseOpts{
		issuerSigningAlgorithms: common.DefaultSigningAlgorithms,
		holderSigningAlgorithms: common.DefaultSigningAlgorithms,
		expectedTyp:             common.MediaTypeSDJWT,
		leeway:                  jwt.DefaultLeeway,
		now:                     time.Now,
	}

	for _, opt := range opts {
		opt(pOpts)
	}

	if pOpts.sigVerifier == nil {
		return nil, errors.New("issuer signature verifier is required")
	}

	if pOpts.expectedAudience == "" {
		return nil, errors.New("expected audience is required")
	}

	cfp, err := common.ParseSDJWT(combinedFormatForPresentation)
	if err != nil {
		return nil, err
	}

	v := &verification{opts: pOpts, cfp: cfp, now: pOpts.now()}

	if err = v.run(); err != nil {
		return nil, err
	}

	return &VerificationResult{
		Claims:     v.claims,
		Issuer:     v.timeClaims.Issuer,
		Subject:    v.timeClaims.Subject,
		HolderKey:  v.holderKey,
		KeyBinding: v.keyBinding,
	}, nil
}
