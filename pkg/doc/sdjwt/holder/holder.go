/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package holder enables the Holder: an entity that receives SD-JWTs from the Issuer and has control over them.
package holder

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/emotionlink/sdjwt/pkg/common/log"
	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
)

var logger = log.New("sdjwt/holder")

// Claim is a disclosable claim of an SD-JWT.
type Claim struct {
	// Disclosure is the base64url encoded disclosure, as it appears in the combined format.
	Disclosure string
	Digest     string
	// Name is empty for array elements.
	Name  string
	Value interface{}
	// Path is the JSON pointer of the claim in the decoded claim set.
	Path string

	parent *Claim
}

// parseOpts holds options for parsing the combined format for issuance.
type parseOpts struct {
	sigVerifier       jose.SignatureVerifier
	signingAlgorithms []string
	leeway            time.Duration
	expectedTyp       string
}

// ParseOpt is the SD-JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithSignatureVerifier option is for definition of the issuer signature verifier.
func WithSignatureVerifier(signatureVerifier jose.SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// WithIssuerSigningAlgorithms option is for defining secure signing algorithms (for holder verification).
func WithIssuerSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.signingAlgorithms = algorithms
	}
}

// WithLeewayForClaimsValidation is an option for claims time(s) validation.
func WithLeewayForClaimsValidation(duration time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.leeway = duration
	}
}

// WithExpectedTypHeader is an option for JWT typ header validation, vc+sd-jwt by default.
// An empty typ disables the check.
func WithExpectedTypHeader(typ string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedTyp = typ
	}
}

// Parse parses issuer SD-JWT and returns claims that can be selected.
// The Holder MUST perform the following (or equivalent) steps when receiving a Combined Format for Issuance:
//
//   - Separate the SD-JWT and the Disclosures in the Combined Format for Issuance.
//
//   - Hash all the Disclosures separately.
//
//   - Find the places in the SD-JWT where the digests of the Disclosures are included.
//
//   - If any of the digests cannot be found in the SD-JWT, the Holder MUST reject the SD-JWT.
//
//   - Decode Disclosures and obtain plaintext of the claim values.
func Parse(combinedFormatForIssuance string, opts ...ParseOpt) ([]*Claim, error) {
	pOpts := &parseOpts{
		signingAlgorithms: common.DefaultSigningAlgorithms,
		leeway:            jwt.DefaultLeeway,
		expectedTyp:       common.MediaTypeSDJWT,
	}

	for _, opt := range opts {
		opt(pOpts)
	}

	cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
	if err != nil {
		return nil, err
	}

	if cfi.KeyBindingJWT != "" {
		return nil, fmt.Errorf("%w: combined format for issuance must not carry a key binding JWT",
			common.ErrEnvelopeMalformed)
	}

	signedJWT, err := common.ParseSignedJWT(cfi.JWTSerialized, pOpts.sigVerifier, pOpts.signingAlgorithms)
	if err != nil {
		return nil, err
	}

	if pOpts.expectedTyp != "" {
		if err = common.VerifyTyp(signedJWT, pOpts.expectedTyp); err != nil {
			return nil, err
		}
	}

	timeClaims, err := common.GetTimeClaims(signedJWT.Payload)
	if err != nil {
		return nil, err
	}

	if err = timeClaims.Validate(time.Now(), pOpts.leeway); err != nil {
		return nil, err
	}

	// every disclosure must resolve to a digest of the issuer-signed JWT.
	if _, err = common.DecodeClaims(signedJWT.Payload, cfi.Disclosures); err != nil {
		return nil, err
	}

	return getClaims(signedJWT.Payload, cfi.Disclosures)
}

func getClaims(payload map[string]interface{}, disclosures []string) ([]*Claim, error) {
	hasher, err := common.GetHasherFromClaims(payload)
	if err != nil {
		return nil, err
	}

	idx := &claimIndex{byDigest: make(map[string]*common.Disclosure, len(disclosures))}

	for _, encoded := range disclosures {
		d, e := common.ParseDisclosure(hasher, encoded)
		if e != nil {
			return nil, e
		}

		idx.byDigest[d.Digest] = d
	}

	idx.walkObject(payload, "", nil)

	logger.Debugf("holder parsed %d disclosable claim(s)", len(idx.claims))

	return idx.claims, nil
}

// claimIndex walks a redacted claim set and records where each disclosure lands.
type claimIndex struct {
	byDigest map[string]*common.Disclosure
	claims   []*Claim
}

func (idx *claimIndex) walkObject(obj map[string]interface{}, path string, parent *Claim) {
	names := maps.Keys(obj)
	slices.Sort(names)

	for _, k := range names {
		if k == common.SDKey || (path == "" && k == common.SDAlgorithmKey) {
			continue
		}

		idx.walkValue(obj[k], path+"/"+escape(k), parent)
	}

	sd, _ := obj[common.SDKey].([]interface{}) //nolint:errcheck

	for _, v := range sd {
		digest, _ := v.(string) //nolint:errcheck

		d, ok := idx.byDigest[digest]
		if !ok {
			continue
		}

		claim := idx.add(d, path+"/"+escape(d.Name), parent)
		idx.walkValue(d.Value, claim.Path, claim)
	}
}

func (idx *claimIndex) walkArray(arr []interface{}, path string, parent *Claim) {
	pos := 0

	for _, v := range arr {
		digest, isDigest := arrayElementDigest(v)
		if !isDigest {
			idx.walkValue(v, path+"/"+strconv.Itoa(pos), parent)
			pos++

			continue
		}

		d, ok := idx.byDigest[digest]
		if !ok {
			continue
		}

		claim := idx.add(d, path+"/"+strconv.Itoa(pos), parent)
		idx.walkValue(d.Value, claim.Path, claim)
		pos++
	}
}

func (idx *claimIndex) walkValue(v interface{}, path string, parent *Claim) {
	switch value := v.(type) {
	case map[string]interface{}:
		idx.walkObject(value, path, parent)
	case []interface{}:
		idx.walkArray(value, path, parent)
	}
}

func (idx *claimIndex) add(d *common.Disclosure, path string, parent *Claim) *Claim {
	claim := &Claim{
		Disclosure: d.Encoded,
		Digest:     d.Digest,
		Name:       d.Name,
		Value:      d.Value,
		Path:       path,
		parent:     parent,
	}

	idx.claims = append(idx.claims, claim)

	return claim
}

func arrayElementDigest(v interface{}) (string, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return "", false
	}

	digest, ok := obj[common.ArrayElementDigestKey].(string)

	return digest, ok
}

func escape(token string) string {
	out := make([]rune, 0, len(token))

	for _, c := range token {
		switch c {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, c)
		}
	}

	return string(out)
}

// SelectDisclosures returns the disclosures of the claims matching names, either by claim name or by
// JSON pointer. Disclosures of enclosing concealed claims are included, since a nested claim can only
// be disclosed together with its parents. The result follows the order of claims.
func SelectDisclosures(claims []*Claim, names []string) ([]string, error) {
	selected := make(map[*Claim]bool)

	for _, name := range names {
		found := false

		for _, c := range claims {
			if c.Path != name && (c.Name == "" || c.Name != name) {
				continue
			}

			found = true

			for p := c; p != nil; p = p.parent {
				selected[p] = true
			}
		}

		if !found {
			return nil, fmt.Errorf("disclosure '%s' not found", name)
		}
	}

	disclosures := make([]string, 0, len(selected))

	for _, c := range claims {
		if selected[c] {
			disclosures = append(disclosures, c.Disclosure)
		}
	}

	return disclosures, nil
}

// BindingPayload represents the holder chosen part of the key binding payload.
type BindingPayload struct {
	Nonce    string
	Audience string
	// IssuedAt defaults to now.
	IssuedAt *jwt.NumericDate
	Expiry   *jwt.NumericDate
}

// BindingInfo defines holder binding payload and signer.
type BindingInfo struct {
	Payload BindingPayload
	Signer  jose.Signer
	Headers jose.Headers
}

// options holds options for creating the combined format for presentation.
type options struct {
	holderBindingInfo *BindingInfo
}

// Option is a holder option.
type Option func(opts *options)

// WithHolderBinding option to set optional holder binding.
func WithHolderBinding(info *BindingInfo) Option {
	return func(opts *options) {
		opts.holderBindingInfo = info
	}
}

// CreatePresentation is a convenience method to assemble combined format for presentation
// using selected disclosures and optional holder binding.
// This call assumes that combinedFormatForIssuance has already been parsed and verified using Parse() function.
//
// For presentation to a Verifier, the Holder MUST perform the following (or equivalent) steps:
//   - Decide which Disclosures to release to the Verifier, obtaining proper End-User consent if necessary.
//   - If Holder Binding is required, create a Key Binding JWT over exactly the released Disclosures.
//   - Create the Combined Format for Presentation from selected Disclosures and Key Binding JWT (if applicable).
func CreatePresentation(combinedFormatForIssuance string, claimsToDisclose []string, opts ...Option) (string, error) {
	hOpts := &options{}

	for _, opt := range opts {
		opt(hOpts)
	}

	cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
	if err != nil {
		return "", err
	}

	if cfi.KeyBindingJWT != "" {
		return "", fmt.Errorf("%w: combined format for issuance must not carry a key binding JWT",
			common.ErrEnvelopeMalformed)
	}

	var selected []string

	for _, d := range claimsToDisclose {
		if !slices.Contains(cfi.Disclosures, d) {
			return "", fmt.Errorf("disclosure '%s' not found", d)
		}

		if slices.Contains(selected, d) {
			return "", fmt.Errorf("%w: disclosure '%s' selected more than once",
				common.ErrDuplicateDigestResolution, d)
		}

		selected = append(selected, d)
	}

	cfp := common.SDJWT{
		JWTSerialized: cfi.JWTSerialized,
		Disclosures:   selected,
	}

	if hOpts.holderBindingInfo != nil {
		cfp.KeyBindingJWT, err = CreateKeyBindingJWT(cfi.JWTSerialized, selected, hOpts.holderBindingInfo)
		if err != nil {
			return "", fmt.Errorf("failed to create holder binding: %w", err)
		}
	}

	return cfp.Presentation(), nil
}

// CreateKeyBindingJWT signs a key binding JWT whose sd_hash covers issuerJWT and exactly the given
// disclosures, in that order. The digest algorithm is the issuer's _sd_alg.
func CreateKeyBindingJWT(issuerJWT string, disclosures []string, info *BindingInfo) (string, error) {
	if info == nil || info.Signer == nil {
		return "", errors.New("binding info with a signer is required")
	}

	// the holder has verified the issuer signature in Parse, the payload is only read for _sd_alg.
	issuerToken, err := afgjwt.Parse(issuerJWT, afgjwt.WithSignatureVerifier(&NoopSignatureVerifier{}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEnvelopeMalformed, err)
	}

	hasher, err := common.GetHasherFromClaims(issuerToken.Payload)
	if err != nil {
		return "", err
	}

	claims := common.NewKeyBindingClaims(hasher, issuerJWT, disclosures, info.Payload.Nonce, info.Payload.Audience, 0)

	if info.Payload.IssuedAt != nil {
		claims.IssuedAt = info.Payload.IssuedAt
	}

	claims.Expiry = info.Payload.Expiry

	headers := jose.Headers{}

	for k, v := range info.Headers {
		headers[k] = v
	}

	headers[jose.HeaderType] = common.MediaTypeKeyBindingJWT

	kbJWT, err := afgjwt.NewSigned(claims, headers, info.Signer)
	if err != nil {
		return "", err
	}

	return kbJWT.Serialize()
}

// NoopSignatureVerifier is no-op signature verifier (signature will not get checked).
type NoopSignatureVerifier struct{}

// Verify implements jose.SignatureVerifier. It accepts every signature.
func (sv *NoopSignatureVerifier) Verify(_ jose.Headers, _, _, _ []byte) error {
	return nil
}
