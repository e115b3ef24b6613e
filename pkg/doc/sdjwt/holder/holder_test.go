/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
	afjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/issuer"
)

const (
	testIssuer = "https://example.com/issuer"

	// digest qqvcqnczAMgYx7EykI6wwtspyvyvK790ge7MBbQ-Nus, issued by nobody in these tests.
	additionalDisclosure = `WyIzanFjYjY3ejl3a3MwOHp3aUs3RXlRIiwgImdpdmVuX25hbWUiLCAiSm9obiJd`
)

func TestParse(t *testing.T) {
	r := require.New(t)

	combinedFormatForIssuance, verifier := issueTestVC(t, nil)

	t.Run("success", func(t *testing.T) {
		claims, err := Parse(combinedFormatForIssuance, WithSignatureVerifier(verifier))
		r.NoError(err)
		r.Len(claims, 5)

		byPath := make(map[string]*Claim)

		for _, c := range claims {
			byPath[c.Path] = c
		}

		r.Equal("John", byPath["/given_name"].Value)
		r.Equal("Doe", byPath["/family_name"].Value)

		r.Equal("street_address", byPath["/address/street_address"].Name)
		r.Equal(byPath["/address"], byPath["/address/street_address"].parent)
		r.Nil(byPath["/address"].parent)

		r.Empty(byPath["/nationalities/1"].Name)
		r.Equal("DE", byPath["/nationalities/1"].Value)

		cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
		r.NoError(err)

		for _, c := range claims {
			r.Contains(cfi.Disclosures, c.Disclosure)
		}
	})

	t.Run("success - typ check disabled", func(t *testing.T) {
		vc, v := issueTestVC(t, jose.Headers{jose.HeaderType: "JWT"})

		claims, err := Parse(vc, WithSignatureVerifier(v), WithExpectedTypHeader(""))
		r.NoError(err)
		r.Len(claims, 5)
	})

	t.Run("success - no disclosures", func(t *testing.T) {
		cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
		r.NoError(err)

		claims, err := Parse(cfi.JWTSerialized+common.CombinedFormatSeparator, WithSignatureVerifier(verifier))
		r.NoError(err)
		r.Empty(claims)
	})

	t.Run("error - additional disclosure", func(t *testing.T) {
		claims, err := Parse(combinedFormatForIssuance+additionalDisclosure+common.CombinedFormatSeparator,
			WithSignatureVerifier(verifier))
		r.ErrorIs(err, common.ErrUnusedDisclosure)
		r.Nil(claims)
	})

	t.Run("error - signature", func(t *testing.T) {
		_, otherVerifier := issueTestVC(t, nil)

		_, err := Parse(combinedFormatForIssuance, WithSignatureVerifier(otherVerifier))
		r.ErrorIs(err, common.ErrSignatureInvalid)
	})

	t.Run("error - signing algorithm not allowed", func(t *testing.T) {
		_, err := Parse(combinedFormatForIssuance, WithSignatureVerifier(verifier),
			WithIssuerSigningAlgorithms([]string{jose.AlgorithmES256}))
		r.ErrorIs(err, common.ErrSignatureInvalid)
	})

	t.Run("error - no signature verifier", func(t *testing.T) {
		_, err := Parse(combinedFormatForIssuance)
		r.ErrorContains(err, "signature verifier is required")
	})

	t.Run("error - unexpected typ header", func(t *testing.T) {
		vc, v := issueTestVC(t, jose.Headers{jose.HeaderType: "JWT"})

		_, err := Parse(vc, WithSignatureVerifier(v))
		r.ErrorIs(err, common.ErrUnexpectedTokenType)
	})

	t.Run("error - expired", func(t *testing.T) {
		vc, v := issueTestVC(t, nil, issuer.WithExpiry(jwt.NewNumericDate(time.Now().Add(-time.Hour))))

		_, err := Parse(vc, WithSignatureVerifier(v))
		r.ErrorIs(err, common.ErrExpired)

		_, err = Parse(vc, WithSignatureVerifier(v), WithLeewayForClaimsValidation(2*time.Hour))
		r.NoError(err)
	})

	t.Run("error - key binding supplied", func(t *testing.T) {
		cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
		r.NoError(err)

		_, err = Parse(combinedFormatForIssuance+cfi.JWTSerialized, WithSignatureVerifier(verifier))
		r.ErrorIs(err, common.ErrEnvelopeMalformed)
	})

	t.Run("error - malformed envelope", func(t *testing.T) {
		_, err := Parse("not an SD-JWT", WithSignatureVerifier(verifier))
		r.ErrorIs(err, common.ErrEnvelopeMalformed)
	})
}

func TestSelectDisclosures(t *testing.T) {
	combinedFormatForIssuance, verifier := issueTestVC(t, nil)

	claims, err := Parse(combinedFormatForIssuance, WithSignatureVerifier(verifier))
	require.NoError(t, err)

	disclosureOf := func(path string) string {
		for _, c := range claims {
			if c.Path == path {
				return c.Disclosure
			}
		}

		return ""
	}

	t.Run("success - by name", func(t *testing.T) {
		r := require.New(t)

		disclosures, err := SelectDisclosures(claims, []string{"given_name"})
		r.NoError(err)
		r.Equal([]string{disclosureOf("/given_name")}, disclosures)
	})

	t.Run("success - nested claim brings its parent", func(t *testing.T) {
		r := require.New(t)

		disclosures, err := SelectDisclosures(claims, []string{"street_address"})
		r.NoError(err)
		r.Len(disclosures, 2)
		r.Contains(disclosures, disclosureOf("/address"))
		r.Contains(disclosures, disclosureOf("/address/street_address"))
	})

	t.Run("success - by path", func(t *testing.T) {
		r := require.New(t)

		disclosures, err := SelectDisclosures(claims, []string{"/nationalities/1", "family_name"})
		r.NoError(err)
		r.Len(disclosures, 2)
		r.Contains(disclosures, disclosureOf("/nationalities/1"))
		r.Contains(disclosures, disclosureOf("/family_name"))
	})

	t.Run("success - nothing selected", func(t *testing.T) {
		disclosures, err := SelectDisclosures(claims, nil)
		require.NoError(t, err)
		require.Empty(t, disclosures)
	})

	t.Run("error - not found", func(t *testing.T) {
		disclosures, err := SelectDisclosures(claims, []string{"non_existent"})
		require.ErrorContains(t, err, "disclosure 'non_existent' not found")
		require.Nil(t, disclosures)
	})
}

func TestCreatePresentation(t *testing.T) {
	r := require.New(t)

	combinedFormatForIssuance, _ := issueTestVC(t, nil)

	cfi, e := common.ParseSDJWT(combinedFormatForIssuance)
	r.NoError(e)

	claimsToDisclose := []string{cfi.Disclosures[0], cfi.Disclosures[2]}

	holderPubKey, holderPrivKey, e := ed25519.GenerateKey(rand.Reader)
	r.NoError(e)

	t.Run("success", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, claimsToDisclose)
		r.NoError(err)
		r.Equal(cfi.JWTSerialized+"~"+cfi.Disclosures[0]+"~"+cfi.Disclosures[2]+"~", combinedFormatForPresentation)
	})

	t.Run("success - no disclosures", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, nil)
		r.NoError(err)
		r.Equal(cfi.JWTSerialized+common.CombinedFormatSeparator, combinedFormatForPresentation)
	})

	t.Run("success - with holder binding", func(t *testing.T) {
		issuedAt := jwt.NewNumericDate(time.Now().Add(-time.Minute))
		expiry := jwt.NewNumericDate(time.Now().Add(time.Hour))

		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, claimsToDisclose,
			WithHolderBinding(&BindingInfo{
				Payload: BindingPayload{
					Audience: "https://example.com/verifier",
					Nonce:    "nonce",
					IssuedAt: issuedAt,
					Expiry:   expiry,
				},
				Signer:  afjwt.NewEd25519Signer(holderPrivKey, nil),
				Headers: jose.Headers{jose.HeaderKeyID: "holder-key"},
			}))
		r.NoError(err)

		cfp, err := common.ParseSDJWT(combinedFormatForPresentation)
		r.NoError(err)
		r.Equal(claimsToDisclose, cfp.Disclosures)
		r.NotEmpty(cfp.KeyBindingJWT)

		holderVerifier, err := afjwt.NewEd25519Verifier(holderPubKey)
		r.NoError(err)

		kbJWT, err := afjwt.Parse(cfp.KeyBindingJWT, afjwt.WithSignatureVerifier(holderVerifier))
		r.NoError(err)
		r.Equal(common.MediaTypeKeyBindingJWT, kbJWT.LookupStringHeader(jose.HeaderType))
		r.Equal("holder-key", kbJWT.LookupStringHeader(jose.HeaderKeyID))

		kb, err := common.ParseKeyBindingClaims(kbJWT.Payload)
		r.NoError(err)
		r.Equal("nonce", kb.Nonce)
		r.Equal(jwt.Audience{"https://example.com/verifier"}, kb.Audience)
		r.Equal(*issuedAt, *kb.IssuedAt)
		r.Equal(*expiry, *kb.Expiry)
		r.Equal(common.ComputeSDHash(common.DefaultHasher(), cfi.JWTSerialized, claimsToDisclose), kb.SDHash)
	})

	t.Run("error - failed to create holder binding due to signing error", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance, claimsToDisclose,
			WithHolderBinding(&BindingInfo{
				Payload: BindingPayload{},
				Signer:  &mockSigner{Err: errors.New("signing error")},
			}))
		r.ErrorContains(err, "failed to create holder binding")
		r.ErrorContains(err, "signing error")
		r.Empty(combinedFormatForPresentation)
	})

	t.Run("error - disclosure not found", func(t *testing.T) {
		combinedFormatForPresentation, err := CreatePresentation(combinedFormatForIssuance,
			[]string{"non_existent"})
		r.ErrorContains(err, "disclosure 'non_existent' not found")
		r.Empty(combinedFormatForPresentation)
	})

	t.Run("error - disclosure selected twice", func(t *testing.T) {
		_, err := CreatePresentation(combinedFormatForIssuance, []string{cfi.Disclosures[0], cfi.Disclosures[0]})
		r.ErrorIs(err, common.ErrDuplicateDigestResolution)
	})

	t.Run("error - key binding already present", func(t *testing.T) {
		_, err := CreatePresentation(combinedFormatForIssuance+cfi.JWTSerialized, nil)
		r.ErrorIs(err, common.ErrEnvelopeMalformed)
	})

	t.Run("error - malformed envelope", func(t *testing.T) {
		_, err := CreatePresentation("abc", nil)
		r.ErrorIs(err, common.ErrEnvelopeMalformed)
	})
}

func TestCreateKeyBindingJWT(t *testing.T) {
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer := afjwt.NewEd25519Signer(privKey, nil)

	t.Run("success - digest algorithm of the issuer", func(t *testing.T) {
		r := require.New(t)

		issuerJWT := signTestJWT(t, signer, map[string]interface{}{common.SDAlgorithmKey: common.SHA384})

		kbJWT, err := CreateKeyBindingJWT(issuerJWT, nil, &BindingInfo{Signer: signer})
		r.NoError(err)

		token, err := afjwt.Parse(kbJWT, afjwt.WithSignatureVerifier(&NoopSignatureVerifier{}))
		r.NoError(err)

		kb, err := common.ParseKeyBindingClaims(token.Payload)
		r.NoError(err)
		r.NotNil(kb.IssuedAt)
		r.Nil(kb.Expiry)

		hasher, err := common.GetHasher(common.SHA384)
		r.NoError(err)
		r.Equal(hasher.Digest(issuerJWT+common.CombinedFormatSeparator), kb.SDHash)
	})

	t.Run("error - no signer", func(t *testing.T) {
		_, err := CreateKeyBindingJWT("a.b.c", nil, &BindingInfo{})
		require.Error(t, err)

		_, err = CreateKeyBindingJWT("a.b.c", nil, nil)
		require.Error(t, err)
	})

	t.Run("error - issuer JWT is not a JWT", func(t *testing.T) {
		_, err := CreateKeyBindingJWT("not a JWT", nil, &BindingInfo{Signer: signer})
		require.ErrorIs(t, err, common.ErrEnvelopeMalformed)
	})

	t.Run("error - unsupported digest algorithm", func(t *testing.T) {
		issuerJWT := signTestJWT(t, signer, map[string]interface{}{common.SDAlgorithmKey: "md5"})

		_, err := CreateKeyBindingJWT(issuerJWT, nil, &BindingInfo{Signer: signer})
		require.ErrorIs(t, err, common.ErrDigestAlgorithmUnsupported)
	})
}

func issueTestVC(t *testing.T, headers jose.Headers, opts ...issuer.NewOpt) (string, jose.SignatureVerifier) {
	t.Helper()

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	opts = append([]issuer.NewOpt{issuer.WithSelectiveClaims(
		"/address/street_address", "/address", "/nationalities/1", "/given_name", "/family_name",
	)}, opts...)

	token, err := issuer.New(testIssuer, createComplexClaims(), headers, afjwt.NewEd25519Signer(privKey, nil), opts...)
	require.NoError(t, err)

	combinedFormatForIssuance, err := token.Serialize()
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(combinedFormatForIssuance, common.CombinedFormatSeparator))

	verifier, err := afjwt.NewVerifierFromKey(pubKey)
	require.NoError(t, err)

	return combinedFormatForIssuance, verifier
}

func signTestJWT(t *testing.T, signer jose.Signer, claims map[string]interface{}) string {
	t.Helper()

	token, err := afjwt.NewSigned(claims, nil, signer)
	require.NoError(t, err)

	serialized, err := token.Serialize()
	require.NoError(t, err)

	return serialized
}

type mockSigner struct {
	Err error
}

func (m *mockSigner) Sign(_ []byte) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	return nil, nil
}

func (m *mockSigner) Headers() jose.Headers {
	return jose.Headers{jose.HeaderAlgorithm: jose.AlgorithmEdDSA}
}

func createComplexClaims() map[string]interface{} {
	return map[string]interface{}{
		"sub":           "john_doe_42",
		"given_name":    "John",
		"family_name":   "Doe",
		"email":         "johndoe@example.com",
		"nationalities": []interface{}{"US", "DE"},
		"address": map[string]interface{}{
			"street_address": "123 Main St",
			"locality":       "Anytown",
			"country":        "US",
		},
	}
}
