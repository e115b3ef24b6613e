/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	// SaltSize is the number of random bytes in a generated salt (128 bits).
	SaltSize = 128 / 8

	objectDisclosureParts       = 3
	arrayElementDisclosureParts = 2

	saltIndex = 0
	nameIndex = 1
)

// DisclosureType tells whether a disclosure reveals an object member or an array element.
type DisclosureType int

const (
	// DisclosureTypeObject is a [salt, name, value] disclosure.
	DisclosureTypeObject DisclosureType = iota + 1
	// DisclosureTypeArrayElement is a [salt, value] disclosure.
	DisclosureTypeArrayElement
)

// MarshalFunc serializes the disclosure array.
type MarshalFunc func(v interface{}) ([]byte, error)

// Disclosure is a salted, digest-committed claim. It is immutable once created.
type Disclosure struct {
	Salt  string
	Name  string
	Value interface{}
	Type  DisclosureType

	// Encoded is the base64url form carried in the combined format.
	Encoded string
	// Digest is the hash of Encoded, as referenced from _sd or {"...": digest}.
	Digest string
}

// NewDisclosure creates the disclosure of an object member.
func NewDisclosure(hasher *Hasher, marshal MarshalFunc, salt, name string, value interface{}) (*Disclosure, error) {
	if IsReservedClaimName(name) {
		return nil, fmt.Errorf("claim name '%s' is reserved", name)
	}

	d := &Disclosure{Salt: salt, Name: name, Value: value, Type: DisclosureTypeObject}

	return d, d.encode(hasher, marshal, []interface{}{salt, name, value})
}

// NewArrayElementDisclosure creates the disclosure of an array element.
func NewArrayElementDisclosure(hasher *Hasher, marshal MarshalFunc, salt string, value interface{}) (*Disclosure, error) {
	d := &Disclosure{Salt: salt, Value: value, Type: DisclosureTypeArrayElement}

	return d, d.encode(hasher, marshal, []interface{}{salt, value})
}

func (d *Disclosure) encode(hasher *Hasher, marshal MarshalFunc, parts []interface{}) error {
	if marshal == nil {
		marshal = json.Marshal
	}

	disclosureBytes, err := marshal(parts)
	if err != nil {
		return fmt.Errorf("marshal disclosure: %w", err)
	}

	d.Encoded = base64.RawURLEncoding.EncodeToString(disclosureBytes)
	d.Digest = hasher.Digest(d.Encoded)

	return nil
}

// ParseDisclosure decodes a base64url disclosure and computes its digest with hasher.
func ParseDisclosure(hasher *Hasher, encoded string) (*Disclosure, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64url: %v", ErrMalformedDisclosure, err)
	}

	if !utf8.Valid(decoded) || !json.Valid(decoded) {
		return nil, fmt.Errorf("%w: content is not UTF-8 JSON", ErrMalformedDisclosure)
	}

	var parts []interface{}

	dec := json.NewDecoder(bytes.NewReader(decoded))
	dec.UseNumber()

	if err = dec.Decode(&parts); err != nil {
		return nil, fmt.Errorf("%w: unmarshal disclosure array: %v", ErrMalformedDisclosure, err)
	}

	if len(parts) != objectDisclosureParts && len(parts) != arrayElementDisclosureParts {
		return nil, fmt.Errorf("%w: disclosure array size[%d] must be %d or %d", ErrMalformedDisclosure,
			len(parts), arrayElementDisclosureParts, objectDisclosureParts)
	}

	salt, ok := parts[saltIndex].(string)
	if !ok {
		return nil, fmt.Errorf("%w: salt type[%T] must be string", ErrMalformedDisclosure, parts[saltIndex])
	}

	d := &Disclosure{
		Salt:    salt,
		Value:   parts[len(parts)-1],
		Type:    DisclosureTypeArrayElement,
		Encoded: encoded,
		Digest:  hasher.Digest(encoded),
	}

	if len(parts) == arrayElementDisclosureParts {
		return d, nil
	}

	name, ok := parts[nameIndex].(string)
	if !ok {
		return nil, fmt.Errorf("%w: name type[%T] must be string", ErrMalformedDisclosure, parts[nameIndex])
	}

	if IsReservedClaimName(name) {
		return nil, fmt.Errorf("%w: claim name '%s' is reserved", ErrMalformedDisclosure, name)
	}

	d.Name, d.Type = name, DisclosureTypeObject

	return d, nil
}

// GenerateSalt returns 128 random bits, base64url encoded.
func GenerateSalt() (string, error) {
	salt := make([]byte, SaltSize)

	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(salt), nil
}
