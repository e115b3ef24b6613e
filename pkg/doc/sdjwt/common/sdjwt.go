/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"fmt"
	"strings"

	"github.com/emotionlink/sdjwt/pkg/doc/jose"
)

const minEnvelopeParts = 2

// SDJWT is the combined format <issuer-signed JWT>~<disclosure>~...~<disclosure>~[<key binding JWT>].
type SDJWT struct {
	JWTSerialized string
	Disclosures   []string
	KeyBindingJWT string
}

// ParseSDJWT splits a combined format string into its parts.
// The last segment is the key binding JWT when it is a compact JWS and must be empty otherwise.
func ParseSDJWT(combinedFormat string) (*SDJWT, error) {
	parts := strings.Split(combinedFormat, CombinedFormatSeparator)
	if len(parts) < minEnvelopeParts {
		return nil, fmt.Errorf("%w: expected at least one '%s' separator", ErrEnvelopeMalformed, CombinedFormatSeparator)
	}

	if !jose.IsCompactJWS(parts[0]) {
		return nil, fmt.Errorf("%w: first segment is not a compact JWT", ErrEnvelopeMalformed)
	}

	last := parts[len(parts)-1]
	if last != "" && !jose.IsCompactJWS(last) {
		return nil, fmt.Errorf("%w: last segment is neither empty nor a compact JWT", ErrEnvelopeMalformed)
	}

	var disclosures []string

	for i, d := range parts[1 : len(parts)-1] {
		if d == "" {
			return nil, fmt.Errorf("%w: empty disclosure at position %d", ErrEnvelopeMalformed, i)
		}

		disclosures = append(disclosures, d)
	}

	return &SDJWT{
		JWTSerialized: parts[0],
		Disclosures:   disclosures,
		KeyBindingJWT: last,
	}, nil
}

// Presentation assembles the combined format. It is the inverse of ParseSDJWT.
func (s *SDJWT) Presentation() string {
	return s.WithoutKeyBinding() + s.KeyBindingJWT
}

// WithoutKeyBinding returns <issuer-signed JWT>~<disclosure>~...~<disclosure>~, the input of sd_hash.
func (s *SDJWT) WithoutKeyBinding() string {
	return joinWithoutKeyBinding(s.JWTSerialized, s.Disclosures)
}

func joinWithoutKeyBinding(issuerJWT string, disclosures []string) string {
	var b strings.Builder

	b.WriteString(issuerJWT)
	b.WriteString(CombinedFormatSeparator)

	for _, d := range disclosures {
		b.WriteString(d)
		b.WriteString(CombinedFormatSeparator)
	}

	return b.String()
}
