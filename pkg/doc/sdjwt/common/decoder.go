/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/emotionlink/sdjwt/pkg/common/log"
)

var logger = log.New("sdjwt/common")

// Decoder reconstructs disclosed claims from an issuer-signed payload and a set of disclosures.
type Decoder struct {
	disclosures []string
}

// NewDecoder creates a decoder for the given base64url disclosures.
func NewDecoder(disclosures []string) *Decoder {
	return &Decoder{disclosures: disclosures}
}

// DecodeClaims is a shortcut for NewDecoder(disclosures).Decode(redacted).
func DecodeClaims(redacted map[string]interface{}, disclosures []string) (map[string]interface{}, error) {
	return NewDecoder(disclosures).Decode(redacted)
}

type decodeState struct {
	byDigest   map[string]*Disclosure
	used       map[string]bool
	unresolved int
}

// Decode returns a copy of redacted with every digest that has a matching disclosure replaced by the
// disclosed claim. Digests without a disclosure are dropped. The result carries no _sd, _sd_alg or
// array element placeholders.
func (d *Decoder) Decode(redacted map[string]interface{}) (map[string]interface{}, error) {
	hasher, err := GetHasherFromClaims(redacted)
	if err != nil {
		return nil, err
	}

	st := &decodeState{
		byDigest: make(map[string]*Disclosure, len(d.disclosures)),
		used:     make(map[string]bool, len(d.disclosures)),
	}

	for _, encoded := range d.disclosures {
		disclosure, e := ParseDisclosure(hasher, encoded)
		if e != nil {
			return nil, e
		}

		if _, ok := st.byDigest[disclosure.Digest]; ok {
			return nil, fmt.Errorf("%w: disclosure with digest '%s' supplied more than once",
				ErrDuplicateDigestResolution, disclosure.Digest)
		}

		st.byDigest[disclosure.Digest] = disclosure
	}

	top := make(map[string]interface{}, len(redacted))

	for k, v := range redacted {
		if k != SDAlgorithmKey {
			top[k] = v
		}
	}

	claims, err := st.decodeObject(top, "")
	if err != nil {
		return nil, err
	}

	unused := make([]string, 0)

	for _, digest := range maps.Keys(st.byDigest) {
		if !st.used[digest] {
			unused = append(unused, digest)
		}
	}

	if len(unused) > 0 {
		slices.Sort(unused)

		return nil, fmt.Errorf("%w: no digest found for disclosure(s) %v", ErrUnusedDisclosure, unused)
	}

	logger.Debugf("decoded %d disclosure(s) with %s, %d digest(s) left unresolved",
		len(st.byDigest), hasher.Name(), st.unresolved)

	return claims, nil
}

func (st *decodeState) decodeObject(obj map[string]interface{}, path string) (map[string]interface{}, error) {
	digests, err := getDigests(obj)
	if err != nil {
		return nil, fmt.Errorf("%w at '%s'", err, path)
	}

	out := make(map[string]interface{}, len(obj)+len(digests))

	for k, v := range obj {
		if k == SDKey {
			continue
		}

		out[k], err = st.decodeValue(v, path+"/"+k)
		if err != nil {
			return nil, err
		}
	}

	for _, digest := range digests {
		disclosure, ok, e := st.resolve(digest, DisclosureTypeObject, path)
		if e != nil {
			return nil, e
		}

		if !ok {
			continue
		}

		if _, exists := out[disclosure.Name]; exists {
			return nil, fmt.Errorf("%w: claim name '%s' already exists at '%s'",
				ErrMalformedDisclosure, disclosure.Name, path)
		}

		out[disclosure.Name], err = st.decodeValue(disclosure.Value, path+"/"+disclosure.Name)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (st *decodeState) decodeArray(arr []interface{}, path string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(arr))

	for i, e := range arr {
		elementPath := path + "/" + strconv.Itoa(i)

		digest, isDigest, err := getArrayElementDigest(e)
		if err != nil {
			return nil, fmt.Errorf("%w at '%s'", err, elementPath)
		}

		value := e

		if isDigest {
			disclosure, ok, resolveErr := st.resolve(digest, DisclosureTypeArrayElement, elementPath)
			if resolveErr != nil {
				return nil, resolveErr
			}

			if !ok {
				continue
			}

			value = disclosure.Value
		}

		decoded, err := st.decodeValue(value, elementPath)
		if err != nil {
			return nil, err
		}

		out = append(out, decoded)
	}

	return out, nil
}

func (st *decodeState) decodeValue(v interface{}, path string) (interface{}, error) {
	switch value := v.(type) {
	case map[string]interface{}:
		return st.decodeObject(value, path)
	case []interface{}:
		return st.decodeArray(value, path)
	default:
		return v, nil
	}
}

// resolve looks up the disclosure of digest. A digest without disclosure is not an error.
func (st *decodeState) resolve(digest string, expected DisclosureType, path string) (*Disclosure, bool, error) {
	disclosure, ok := st.byDigest[digest]
	if !ok {
		st.unresolved++

		return nil, false, nil
	}

	if st.used[digest] {
		return nil, false, fmt.Errorf("%w: digest '%s' is referenced more than once, again at '%s'",
			ErrDuplicateDigestResolution, digest, path)
	}

	if disclosure.Type != expected {
		return nil, false, fmt.Errorf("%w: disclosure with digest '%s' does not fit its slot at '%s'",
			ErrMalformedDisclosure, digest, path)
	}

	st.used[digest] = true

	return disclosure, true, nil
}
