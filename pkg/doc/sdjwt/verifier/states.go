/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"fmt"
	"time"

	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
)

type state int

const (
	stateStart state = iota
	stateIssuerSigVerified
	stateTypOK
	stateNotExpired
	stateHolderKeyExtracted
	stateBindingSigVerified
	stateBindingTypOK
	stateSDHashMatches
	stateAudienceOK
	stateBindingNotExpired
	stateClaimsDecoded
)

//nolint:gochecknoglobals
var stateNames = map[state]string{
	stateStart:              "Start",
	stateIssuerSigVerified:  "IssuerSigVerified",
	stateTypOK:              "TypOk",
	stateNotExpired:         "NotExpired",
	stateHolderKeyExtracted: "HolderKeyExtracted",
	stateBindingSigVerified: "BindingSigVerified",
	stateBindingTypOK:       "BindingTypOk",
	stateSDHashMatches:      "SdHashMatches",
	stateAudienceOK:         "AudienceOk",
	stateBindingNotExpired:  "BindingNotExpired",
	stateClaimsDecoded:      "ClaimsDecoded",
}

func (s state) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

type transition struct {
	from, to state
	step     func(v *verification) error
}

// transitions is the verification protocol. Each step may only run from the state its predecessor reached.
//
//nolint:gochecknoglobals
var transitions = []transition{
	{stateStart, stateIssuerSigVerified, (*verification).verifyIssuerSignature},
	{stateIssuerSigVerified, stateTypOK, (*verification).verifyIssuerTyp},
	{stateTypOK, stateNotExpired, (*verification).verifyIssuerTime},
	{stateNotExpired, stateHolderKeyExtracted, (*verification).extractHolderKey},
	{stateHolderKeyExtracted, stateBindingSigVerified, (*verification).verifyBindingSignature},
	{stateBindingSigVerified, stateBindingTypOK, (*verification).verifyBindingTyp},
	{stateBindingTypOK, stateSDHashMatches, (*verification).verifySDHash},
	{stateSDHashMatches, stateAudienceOK, (*verification).verifyAudience},
	{stateAudienceOK, stateBindingNotExpired, (*verification).verifyBindingTime},
	{stateBindingNotExpired, stateClaimsDecoded, (*verification).decodeClaims},
}

// verification carries what each step established for the steps after it.
type verification struct {
	opts *parseOpts
	cfp  *common.SDJWT
	now  time.Time

	state state

	issuerJWT  *afgjwt.JSONWebToken
	timeClaims *common.TimeClaims
	holderKey  *jwk.JWK
	bindingJWT *afgjwt.JSONWebToken
	keyBinding *common.KeyBindingClaims
	claims     map[string]interface{}
}

func (v *verification) run() error {
	v.state = stateStart

	for _, t := range transitions {
		if t.from != v.state {
			return fmt.Errorf("verification step %s -> %s cannot run in state %s", t.from, t.to, v.state)
		}

		if err := t.step(v); err != nil {
			logger.Debugf("presentation rejected in state %s: %s", v.state, err)

			return err
		}

		logger.Debugf("verification %s -> %s", v.state, t.to)

		v.state = t.to
	}

	return nil
}

func (v *verification) verifyIssuerSignature() error {
	token, err := common.ParseSignedJWT(v.cfp.JWTSerialized, v.opts.sigVerifier, v.opts.issuerSigningAlgorithms)
	if err != nil {
		return fmt.Errorf("issuer-signed JWT: %w", err)
	}

	v.issuerJWT = token

	return nil
}

func (v *verification) verifyIssuerTyp() error {
	if v.opts.expectedTyp == "" {
		return nil
	}

	return common.VerifyTyp(v.issuerJWT, v.opts.expectedTyp)
}

func (v *verification) verifyIssuerTime() error {
	timeClaims, err := common.GetTimeClaims(v.issuerJWT.Payload)
	if err != nil {
		return err
	}

	if err = timeClaims.Validate(v.now, v.opts.leeway); err != nil {
		return fmt.Errorf("issuer-signed JWT: %w", err)
	}

	v.timeClaims = timeClaims

	return nil
}

func (v *verification) extractHolderKey() error {
	holderKey, err := common.GetHolderJWK(v.issuerJWT.Payload)
	if err != nil {
		return err
	}

	v.holderKey = holderKey

	return nil
}

func (v *verification) verifyBindingSignature() error {
	if v.cfp.KeyBindingJWT == "" {
		return fmt.Errorf("%w: key binding JWT is missing", common.ErrSignatureInvalid)
	}

	holderVerifier, err := afgjwt.NewVerifierFromJWK(v.holderKey)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrMissingHolderKey, err)
	}

	token, err := common.ParseSignedJWT(v.cfp.KeyBindingJWT, holderVerifier, v.opts.holderSigningAlgorithms)
	if err != nil {
		return fmt.Errorf("key binding JWT: %w", err)
	}

	v.bindingJWT = token

	return nil
}

func (v *verification) verifyBindingTyp() error {
	return common.VerifyTyp(v.bindingJWT, common.MediaTypeKeyBindingJWT)
}

func (v *verification) verifySDHash() error {
	hasher, err := common.GetHasherFromClaims(v.issuerJWT.Payload)
	if err != nil {
		return err
	}

	keyBinding, err := common.ParseKeyBindingClaims(v.bindingJWT.Payload)
	if err != nil {
		return err
	}

	expected := common.ComputeSDHash(hasher, v.cfp.JWTSerialized, v.cfp.Disclosures)
	if keyBinding.SDHash != expected {
		return fmt.Errorf("%w: sd_hash '%s', computed '%s'", common.ErrSDHashMismatch, keyBinding.SDHash, expected)
	}

	v.keyBinding = keyBinding

	return nil
}

func (v *verification) verifyAudience() error {
	aud := v.keyBinding.Audience

	if len(aud) != 1 || aud[0] != v.opts.expectedAudience {
		return fmt.Errorf("%w: aud %q, expected '%s'",
			common.ErrAudienceMismatch, []string(aud), v.opts.expectedAudience)
	}

	if v.opts.expectedNonce != "" && v.keyBinding.Nonce != v.opts.expectedNonce {
		return fmt.Errorf("%w: nonce '%s', expected '%s'",
			common.ErrNonceMismatch, v.keyBinding.Nonce, v.opts.expectedNonce)
	}

	return nil
}

func (v *verification) verifyBindingTime() error {
	if v.keyBinding.IssuedAt == nil {
		return fmt.Errorf("%w: key binding JWT has no iat", common.ErrEnvelopeMalformed)
	}

	timeClaims := &common.TimeClaims{
		IssuedAt: v.keyBinding.IssuedAt,
		Expiry:   v.keyBinding.Expiry,
	}

	if err := timeClaims.Validate(v.now, v.opts.leeway); err != nil {
		return fmt.Errorf("key binding JWT: %w", err)
	}

	return nil
}

func (v *verification) decodeClaims() error {
	claims, err := common.DecodeClaims(v.issuerJWT.Payload, v.cfp.Disclosures)
	if err != nil {
		return err
	}

	v.claims = claims

	return nil
}
