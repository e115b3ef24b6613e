/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"

	afjose "github.com/emotionlink/sdjwt/pkg/doc/jose"
	"github.com/emotionlink/sdjwt/pkg/doc/jose/jwk"
	afjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
)

const (
	issuer                 = "https://example.com/issuer"
	expectedHashWithSpaces = "qqvcqnczAMgYx7EykI6wwtspyvyvK790ge7MBbQ-Nus"
	sampleSalt             = "3jqcb67z9wks08zwiK7EyQ"
)

func TestNew(t *testing.T) {
	claims := createClaims()

	t.Run("success - EdDSA, interoperable with go-jose", func(t *testing.T) {
		r := require.New(t)

		pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		token, err := New(issuer, claims, nil, afjwt.NewEd25519Signer(privKey, nil),
			WithJSONMarshaller(jsonMarshalWithSpace),
			WithSaltFnc(func() (string, error) {
				return sampleSalt, nil
			}))
		r.NoError(err)

		combinedFormatForIssuance, err := token.Serialize()
		r.NoError(err)
		r.True(strings.HasSuffix(combinedFormatForIssuance, common.CombinedFormatSeparator))

		cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
		r.NoError(err)
		r.Len(cfi.Disclosures, 1)
		r.Empty(cfi.KeyBindingJWT)

		var parsedClaims map[string]interface{}
		r.NoError(verifyViaGoJose(cfi.JWTSerialized, pubKey, &parsedClaims))
		r.True(existsInDisclosures(parsedClaims, expectedHashWithSpaces))
		r.Equal(common.SHA256, parsedClaims[common.SDAlgorithmKey])
		r.Equal(issuer, parsedClaims["iss"])
		r.NotContains(parsedClaims, "given_name")

		r.Equal(common.MediaTypeSDJWT, token.LookupStringHeader(afjose.HeaderType))
	})

	t.Run("success - RS256", func(t *testing.T) {
		r := require.New(t)

		privKey, err := rsa.GenerateKey(rand.Reader, 2048)
		r.NoError(err)

		token, err := New(issuer, claims, nil, afjwt.NewRS256Signer(privKey, nil))
		r.NoError(err)

		combinedFormatForIssuance, err := token.Serialize()
		r.NoError(err)

		cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
		r.NoError(err)

		var parsedClaims map[string]interface{}
		r.NoError(verifyViaGoJose(cfi.JWTSerialized, &privKey.PublicKey, &parsedClaims))
		r.Len(parsedClaims[common.SDKey], 1)
	})

	t.Run("success - ES256 with registered claims and holder key", func(t *testing.T) {
		r := require.New(t)

		privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		r.NoError(err)

		signer, err := afjwt.NewECDSASigner(privKey, map[string]interface{}{afjose.HeaderKeyID: "issuer-key-1"})
		r.NoError(err)

		holderPubKey, _, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		holderJWK, err := jwk.JWKFromKey(holderPubKey)
		r.NoError(err)

		now := time.Now()

		token, err := New(issuer, createComplexClaims(), afjose.Headers{"custom": "value"}, signer,
			WithSubject("john_doe_42"),
			WithAudience("https://verifier.example"),
			WithJTI("jti-1"),
			WithVCT("https://credentials.example/identity_credential"),
			WithIssuedAt(jwt.NewNumericDate(now)),
			WithNotBefore(jwt.NewNumericDate(now)),
			WithExpiry(jwt.NewNumericDate(now.Add(time.Hour))),
			WithHolderPublicKey(holderJWK))
		r.NoError(err)

		var payload map[string]interface{}
		r.NoError(token.DecodeClaims(&payload))

		r.Equal("john_doe_42", payload["sub"])
		r.Equal("https://verifier.example", payload["aud"])
		r.Equal("jti-1", payload["jti"])
		r.Equal("https://credentials.example/identity_credential", payload["vct"])
		r.Equal(float64(now.Unix()), payload["iat"])
		r.Equal(float64(now.Add(time.Hour).Unix()), payload["exp"])

		// sub is in the plain claims too, the option wins and the claim stays visible.
		r.Len(payload[common.SDKey], 6)

		key, err := common.GetHolderJWK(payload)
		r.NoError(err)
		r.Equal(holderPubKey, key.Key)

		r.Equal("issuer-key-1", token.LookupStringHeader(afjose.HeaderKeyID))
		r.Equal("value", token.LookupStringHeader("custom"))
		r.Equal(afjose.AlgorithmES256, token.LookupStringHeader(afjose.HeaderAlgorithm))
	})

	t.Run("success - custom typ header", func(t *testing.T) {
		token, err := getValidJSONWebToken(afjose.Headers{afjose.HeaderType: "example+sd-jwt"})
		require.NoError(t, err)
		require.Equal(t, "example+sd-jwt", token.LookupStringHeader(afjose.HeaderType))
	})

	t.Run("success - selective structured claims", func(t *testing.T) {
		r := require.New(t)

		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		token, err := New(issuer, createComplexClaims(), nil, afjwt.NewEd25519Signer(privKey, nil),
			WithSelectiveClaims("/address", "/address/street_address", "/address/country", "/given_name"))
		r.NoError(err)
		r.Len(token.Disclosures, 4)

		// deepest pointers are concealed first so the address disclosure carries the nested digests.
		r.Equal("street_address", token.Disclosures[0].Name)
		r.Equal("country", token.Disclosures[1].Name)
		r.Equal("address", token.Disclosures[2].Name)
		r.Equal("given_name", token.Disclosures[3].Name)

		address, ok := token.Disclosures[2].Value.(map[string]interface{})
		r.True(ok)
		r.Len(address[common.SDKey], 2)
		r.Equal("Anytown", address["locality"])

		var payload map[string]interface{}
		r.NoError(token.DecodeClaims(&payload))
		r.Len(payload[common.SDKey], 2)
		r.Equal("Doe", payload["family_name"])
		r.NotContains(payload, "address")
	})

	t.Run("success - decoy digests at every level", func(t *testing.T) {
		r := require.New(t)

		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		token, err := New(issuer, createComplexClaims(), nil, afjwt.NewEd25519Signer(privKey, nil),
			WithSelectiveClaims("/given_name", "/address/region"),
			WithDecoyDigests(3))
		r.NoError(err)
		r.Len(token.Disclosures, 2)

		var payload map[string]interface{}
		r.NoError(token.DecodeClaims(&payload))
		r.Len(payload[common.SDKey], 4)
		r.Len(payload["address"].(map[string]interface{})[common.SDKey], 4)
	})

	t.Run("success - decoys inside a concealed object", func(t *testing.T) {
		r := require.New(t)

		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		token, err := New(issuer, createComplexClaims(), nil, afjwt.NewEd25519Signer(privKey, nil),
			WithSelectiveClaims("/address", "/address/region"),
			WithDecoyDigests(2))
		r.NoError(err)
		r.Len(token.Disclosures, 2)

		address, ok := token.Disclosures[1].Value.(map[string]interface{})
		r.True(ok)
		r.Len(address[common.SDKey], 3)

		var payload map[string]interface{}
		r.NoError(token.DecodeClaims(&payload))
		r.Len(payload[common.SDKey], 3)
	})

	t.Run("success - sha-512 digests", func(t *testing.T) {
		r := require.New(t)

		token, err := getValidJSONWebToken(nil, WithHashAlgorithm(common.SHA512))
		r.NoError(err)

		var payload map[string]interface{}
		r.NoError(token.DecodeClaims(&payload))
		r.Equal(common.SHA512, payload[common.SDAlgorithmKey])

		hasher, err := common.GetHasher(common.SHA512)
		r.NoError(err)
		r.Equal(hasher.Digest(token.Disclosures[0].Encoded), token.Disclosures[0].Digest)
	})

	t.Run("success - claims schema", func(t *testing.T) {
		token, err := getValidJSONWebToken(nil, WithClaimsSchema([]byte(testSchema)))
		require.NoError(t, err)
		require.Len(t, token.Disclosures, 1)
	})

	t.Run("error - claims schema violation", func(t *testing.T) {
		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		token, err := New(issuer, map[string]interface{}{"family_name": "Doe"}, nil,
			afjwt.NewEd25519Signer(privKey, nil), WithClaimsSchema([]byte(testSchema)))
		require.ErrorIs(t, err, common.ErrClaimsSchemaViolation)
		require.Contains(t, err.Error(), "given_name")
		require.Nil(t, token)
	})

	t.Run("error - invalid claims schema", func(t *testing.T) {
		_, err := getValidJSONWebToken(nil, WithClaimsSchema([]byte("{")))
		require.Error(t, err)
	})

	t.Run("error - unsupported hash algorithm", func(t *testing.T) {
		_, err := getValidJSONWebToken(nil, WithHashAlgorithm("md5"))
		require.ErrorIs(t, err, common.ErrDigestAlgorithmUnsupported)
	})

	t.Run("error - invalid pointer", func(t *testing.T) {
		_, err := getValidJSONWebToken(nil, WithSelectiveClaims("/missing"))
		require.ErrorIs(t, err, common.ErrInvalidPointer)
	})

	t.Run("error - reserved claim", func(t *testing.T) {
		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		_, err = New(issuer, map[string]interface{}{common.SDKey: []interface{}{}}, nil,
			afjwt.NewEd25519Signer(privKey, nil))
		require.ErrorContains(t, err, "reserved claim")
		require.ErrorIs(t, err, common.ErrReservedClaimName)
	})

	t.Run("error - nested reserved claim", func(t *testing.T) {
		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		claims := map[string]interface{}{
			"o": map[string]interface{}{common.SDKey: []interface{}{"forged"}, "a": "v"},
		}

		_, err = New(issuer, claims, nil, afjwt.NewEd25519Signer(privKey, nil), WithSelectiveClaims("/o/a"))
		require.ErrorIs(t, err, common.ErrReservedClaimName)
		require.ErrorContains(t, err, "/o/_sd")
	})

	t.Run("error - salt function", func(t *testing.T) {
		_, err := getValidJSONWebToken(nil, WithSaltFnc(func() (string, error) {
			return "", errors.New("salt error")
		}))
		require.ErrorContains(t, err, "salt error")
	})

	t.Run("error - marshaller", func(t *testing.T) {
		_, err := getValidJSONWebToken(nil, WithJSONMarshaller(func(interface{}) ([]byte, error) {
			return nil, errors.New("marshal error")
		}))
		require.ErrorContains(t, err, "marshal error")
	})

	t.Run("error - claims are not an object", func(t *testing.T) {
		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		_, err = New(issuer, "not JSON", nil, afjwt.NewEd25519Signer(privKey, nil))
		require.ErrorContains(t, err, "convert payload to map")

		_, err = New(issuer, getUnmarshallableMap(), nil, afjwt.NewEd25519Signer(privKey, nil))
		require.Error(t, err)
	})

	t.Run("error - no signer", func(t *testing.T) {
		_, err := New(issuer, claims, nil, nil)
		require.Error(t, err)
	})

	t.Run("error - signer failure", func(t *testing.T) {
		_, err := New(issuer, claims, nil, &failingSigner{})
		require.ErrorContains(t, err, "create SD-JWT")
	})
}

func TestSelectiveDisclosureJWT_Serialize(t *testing.T) {
	t.Run("success - all disclosures are emitted", func(t *testing.T) {
		r := require.New(t)

		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		r.NoError(err)

		token, err := New(issuer, createComplexClaims(), nil, afjwt.NewEd25519Signer(privKey, nil))
		r.NoError(err)

		combinedFormatForIssuance, err := token.Serialize()
		r.NoError(err)

		cfi, err := common.ParseSDJWT(combinedFormatForIssuance)
		r.NoError(err)
		r.Len(cfi.Disclosures, len(token.Disclosures))

		for _, d := range token.Disclosures {
			r.Contains(cfi.Disclosures, d.Encoded)
		}
	})

	t.Run("error - no signed JWT", func(t *testing.T) {
		_, err := (&SelectiveDisclosureJWT{}).Serialize()
		require.Error(t, err)
	})
}

func getValidJSONWebToken(headers afjose.Headers, opts ...NewOpt) (*SelectiveDisclosureJWT, error) {
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return New(issuer, createClaims(), headers, afjwt.NewEd25519Signer(privKey, nil), opts...)
}

func verifyViaGoJose(jws string, pubKey interface{}, claims interface{}) error {
	jwtToken, err := jwt.ParseSigned(jws)
	if err != nil {
		return fmt.Errorf("parse SD-JWT from signed JWS: %w", err)
	}

	if err = jwtToken.Claims(pubKey, claims); err != nil {
		return fmt.Errorf("verify JWT signature: %w", err)
	}

	return nil
}

func getUnmarshallableMap() map[string]interface{} {
	return map[string]interface{}{"error": map[chan int]interface{}{make(chan int): 6}}
}

func createClaims() map[string]interface{} {
	return map[string]interface{}{
		"given_name": "John",
	}
}

func createComplexClaims() map[string]interface{} {
	return map[string]interface{}{
		"sub":          "john_doe_42",
		"given_name":   "John",
		"family_name":  "Doe",
		"email":        "johndoe@example.com",
		"phone_number": "+1-202-555-0101",
		"birthdate":    "1940-01-01",
		"address": map[string]interface{}{
			"street_address": "123 Main St",
			"locality":       "Anytown",
			"region":         "Anystate",
			"country":        "US",
		},
	}
}

func existsInDisclosures(claims map[string]interface{}, val string) bool {
	disclosuresObj, ok := claims[common.SDKey]
	if !ok {
		return false
	}

	disclosures, ok := disclosuresObj.([]interface{})
	if !ok {
		return false
	}

	for _, d := range disclosures {
		if d.(string) == val {
			return true
		}
	}

	return false
}

func jsonMarshalWithSpace(v interface{}) ([]byte, error) {
	vBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []byte(strings.ReplaceAll(string(vBytes), ",", ", ")), nil
}

func prettyPrint(msg []byte) (string, error) {
	var prettyJSON bytes.Buffer

	err := json.Indent(&prettyJSON, msg, "", "\t")
	if err != nil {
		return "", err
	}

	return prettyJSON.String(), nil
}

type failingSigner struct{}

func (s *failingSigner) Sign(_ []byte) ([]byte, error) {
	return nil, errors.New("sign error")
}

func (s *failingSigner) Headers() afjose.Headers {
	return afjose.Headers{afjose.HeaderAlgorithm: afjose.AlgorithmEdDSA}
}

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["given_name"],
  "properties": {
    "given_name": {"type": "string"}
  }
}`
