/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package issuer enables the Issuer: an entity that creates SD-JWTs.

An SD-JWT is a digitally signed document containing digests over the claim values that the Holder can
selectively disclose. The Issuer hands the SD-JWT to the Holder together with all disclosures, in the
combined format <SD-JWT>~<Disclosure 1>~...~<Disclosure N>~.
*/
package issuer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/emotionlink/sdjwt/pkg/common/log"
	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
)

var logger = log.New("sdjwt/issuer")

// registeredClaims are set from options and are never concealed by default.
//
//nolint:gochecknoglobals
var registeredClaims = []string{"iss", "sub", "aud", "iat", "nbf", "exp", "jti", "vct", common.CNFKey}

// newOpts holds options for creating new SD-JWT.
type newOpts struct {
	Subject  string
	Audience string
	JTI      string
	VCT      string

	Expiry    *jwt.NumericDate
	NotBefore *jwt.NumericDate
	IssuedAt  *jwt.NumericDate

	HolderPublicKey *jwk.JWK

	HashAlg string

	jsonMarshal common.MarshalFunc
	getSalt     func() (string, error)

	decoyDigests    int
	selectiveClaims []string
	claimsSchema    []byte
}

// NewOpt is the SD-JWT New option.
type NewOpt func(opts *newOpts)

// WithJSONMarshaller is option is for marshalling disclosure.
func WithJSONMarshaller(jsonMarshal func(v interface{}) ([]byte, error)) NewOpt {
	return func(opts *newOpts) {
		opts.jsonMarshal = jsonMarshal
	}
}

// WithSaltFnc is an option for generating disclosure salts.
func WithSaltFnc(fnc func() (string, error)) NewOpt {
	return func(opts *newOpts) {
		opts.getSalt = fnc
	}
}

// WithIssuedAt is an option for SD-JWT payload.
func WithIssuedAt(issuedAt *jwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.IssuedAt = issuedAt
	}
}

// WithExpiry is an option for SD-JWT payload.
func WithExpiry(expiry *jwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.Expiry = expiry
	}
}

// WithNotBefore is an option for SD-JWT payload.
func WithNotBefore(notBefore *jwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.NotBefore = notBefore
	}
}

// WithSubject is an option for SD-JWT payload.
func WithSubject(subject string) NewOpt {
	return func(opts *newOpts) {
		opts.Subject = subject
	}
}

// WithAudience is an option for SD-JWT payload.
func WithAudience(audience string) NewOpt {
	return func(opts *newOpts) {
		opts.Audience = audience
	}
}

// WithJTI is an option for SD-JWT payload.
func WithJTI(jti string) NewOpt {
	return func(opts *newOpts) {
		opts.JTI = jti
	}
}

// WithVCT sets the credential type claim.
func WithVCT(vct string) NewOpt {
	return func(opts *newOpts) {
		opts.VCT = vct
	}
}

// WithHolderPublicKey binds the SD-JWT to the holder key (cnf.jwk).
func WithHolderPublicKey(jwk *jwk.JWK) NewOpt {
	return func(opts *newOpts) {
		opts.HolderPublicKey = jwk
	}
}

// WithHashAlgorithm is an option for hashing disclosures, an _sd_alg name such as "sha-384".
func WithHashAlgorithm(alg string) NewOpt {
	return func(opts *newOpts) {
		opts.HashAlg = alg
	}
}

// WithDecoyDigests adds n decoy digests next to the real ones at every level holding concealed claims.
func WithDecoyDigests(n int) NewOpt {
	return func(opts *newOpts) {
		opts.decoyDigests = n
	}
}

// WithSelectiveClaims lists the JSON pointers (RFC 6901) of the claims to conceal.
// Without it every top-level claim except the registered ones is concealed.
func WithSelectiveClaims(pointers ...string) NewOpt {
	return func(opts *newOpts) {
		opts.selectiveClaims = append(opts.selectiveClaims, pointers...)
	}
}

// WithClaimsSchema validates the plain claims against a JSON schema before encoding.
func WithClaimsSchema(schema []byte) NewOpt {
	return func(opts *newOpts) {
		opts.claimsSchema = schema
	}
}

// New creates new signed Selective Disclosure JWT based on input claims.
func New(issuer string, claims interface{}, headers jose.Headers,
	signer jose.Signer, opts ...NewOpt) (*SelectiveDisclosureJWT, error) {
	nOpts := &newOpts{
		jsonMarshal: json.Marshal,
		getSalt:     common.GenerateSalt,
		HashAlg:     common.DefaultSDAlg,
	}

	for _, opt := range opts {
		opt(nOpts)
	}

	if signer == nil {
		return nil, errors.New("signer is not defined")
	}

	hasher, err := common.GetHasher(nOpts.HashAlg)
	if err != nil {
		return nil, err
	}

	claimsMap, err := afgjwt.PayloadToMap(claims)
	if err != nil {
		return nil, fmt.Errorf("convert payload to map: %w", err)
	}

	if err = validateClaims(claimsMap, nOpts.claimsSchema); err != nil {
		return nil, err
	}

	encoder, err := NewEncoder(claimsMap,
		WithEncoderHasher(hasher),
		WithEncoderSaltFnc(nOpts.getSalt),
		WithEncoderJSONMarshaller(nOpts.jsonMarshal))
	if err != nil {
		return nil, err
	}

	pointers := nOpts.selectiveClaims
	if len(pointers) == 0 {
		pointers = defaultPointers(claimsMap)
	}

	if err = conceal(encoder, pointers, nOpts.decoyDigests); err != nil {
		return nil, err
	}

	encoder.AddSDAlgProperty()

	payload, err := addRegisteredClaims(encoder.Object(), issuer, nOpts)
	if err != nil {
		return nil, err
	}

	signedJWT, err := afgjwt.NewSigned(payload, prepareHeaders(headers), signer)
	if err != nil {
		return nil, fmt.Errorf("create SD-JWT: %w", err)
	}

	logger.Debugf("issued SD-JWT with %d disclosure(s), %s digests", len(encoder.Disclosures()), hasher.Name())

	return &SelectiveDisclosureJWT{Disclosures: encoder.Disclosures(), SignedJWT: signedJWT}, nil
}

func validateClaims(claims map[string]interface{}, schema []byte) error {
	if err := checkReservedNames(claims, ""); err != nil {
		return err
	}

	if len(schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(claims))
	if err != nil {
		return fmt.Errorf("validate claims schema: %w", err)
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))

		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("%w: %s", common.ErrClaimsSchemaViolation, strings.Join(violations, "; "))
	}

	return nil
}

func defaultPointers(claims map[string]interface{}) []string {
	names := maps.Keys(claims)
	slices.Sort(names)

	pointers := make([]string, 0, len(names))

	for _, name := range names {
		if !slices.Contains(registeredClaims, name) {
			pointers = append(pointers, formatPointer([]string{name}))
		}
	}

	return pointers
}

// conceal processes the deepest pointers first so that nested disclosures end up inside their parents.
// Decoys go to every container that received a digest, before that container is concealed itself.
func conceal(encoder *Encoder, pointers []string, decoys int) error {
	type target struct {
		pointer string
		tokens  []string
	}

	targets := make([]target, 0, len(pointers))

	for _, p := range pointers {
		tokens, err := parsePointer(p)
		if err != nil {
			return err
		}

		targets = append(targets, target{pointer: p, tokens: tokens})
	}

	slices.SortStableFunc(targets, func(a, b target) int {
		return len(b.tokens) - len(a.tokens)
	})

	for len(targets) > 0 {
		depth := len(targets[0].tokens)

		var parents []string

		for len(targets) > 0 && len(targets[0].tokens) == depth {
			t := targets[0]
			targets = targets[1:]

			if _, err := encoder.Conceal(t.pointer); err != nil {
				return err
			}

			parent := formatPointer(t.tokens[:len(t.tokens)-1])
			if !slices.Contains(parents, parent) {
				parents = append(parents, parent)
			}
		}

		for _, p := range parents {
			if err := encoder.AddDecoys(p, decoys); err != nil {
				return fmt.Errorf("add decoys: %w", err)
			}
		}
	}

	return nil
}

func addRegisteredClaims(payload map[string]interface{}, issuer string, nOpts *newOpts) (map[string]interface{}, error) {
	stringClaims := map[string]string{
		"iss": issuer,
		"sub": nOpts.Subject,
		"aud": nOpts.Audience,
		"jti": nOpts.JTI,
		"vct": nOpts.VCT,
	}

	for name, value := range stringClaims {
		if value != "" {
			payload[name] = value
		}
	}

	dateClaims := map[string]*jwt.NumericDate{
		"iat": nOpts.IssuedAt,
		"nbf": nOpts.NotBefore,
		"exp": nOpts.Expiry,
	}

	for name, value := range dateClaims {
		if value != nil {
			payload[name] = json.Number(fmt.Sprint(int64(*value)))
		}
	}

	if nOpts.HolderPublicKey != nil {
		holderJWK, err := nOpts.HolderPublicKey.PublicJWK()
		if err != nil {
			return nil, fmt.Errorf("holder public key: %w", err)
		}

		jwkMap, err := afgjwt.PayloadToMap(holderJWK)
		if err != nil {
			return nil, fmt.Errorf("holder public key: %w", err)
		}

		payload[common.CNFKey] = map[string]interface{}{common.JWKKey: jwkMap}
	}

	return payload, nil
}

func prepareHeaders(headers jose.Headers) jose.Headers {
	h := jose.Headers{jose.HeaderType: common.MediaTypeSDJWT}

	for k, v := range headers {
		h[k] = v
	}

	return h
}

// SelectiveDisclosureJWT defines Selective Disclosure JSON Web Token (https://tools.ietf.org/html/rfc7519)
type SelectiveDisclosureJWT struct {
	SignedJWT   *afgjwt.JSONWebToken
	Disclosures []*common.Disclosure
}

// DecodeClaims fills input c with claims of a token.
func (j *SelectiveDisclosureJWT) DecodeClaims(c interface{}) error {
	return j.SignedJWT.DecodeClaims(c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *SelectiveDisclosureJWT) LookupStringHeader(name string) string {
	return j.SignedJWT.LookupStringHeader(name)
}

// Serialize makes the combined format for issuance, <SD-JWT>~<Disclosure 1>~...~<Disclosure N>~.
// Disclosures are emitted in random order so that their position tells nothing about the claims.
func (j *SelectiveDisclosureJWT) Serialize() (string, error) {
	if j.SignedJWT == nil {
		return "", errors.New("JWS serialization is supported only")
	}

	signedJWT, err := j.SignedJWT.Serialize()
	if err != nil {
		return "", err
	}

	disclosures := make([]string, 0, len(j.Disclosures))

	for _, d := range j.Disclosures {
		disclosures = append(disclosures, d.Encoded)
	}

	if err = shuffle(len(disclosures), func(i, k int) {
		disclosures[i], disclosures[k] = disclosures[k], disclosures[i]
	}); err != nil {
		return "", err
	}

	cf := common.SDJWT{
		JWTSerialized: signedJWT,
		Disclosures:   disclosures,
	}

	return cf.Presentation(), nil
}
