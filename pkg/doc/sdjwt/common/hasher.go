/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Hash algorithm names from the IANA "Named Information Hash Algorithm" registry.
const (
	SHA256  = "sha-256"
	SHA384  = "sha-384"
	SHA512  = "sha-512"
	SHA3256 = "sha3-256"
	SHA3512 = "sha3-512"
)

// DefaultSDAlg is assumed when the SD-JWT carries no _sd_alg claim.
const DefaultSDAlg = SHA256

//nolint:gochecknoglobals
var hashFunctions = map[string]func() hash.Hash{
	SHA256:  sha256.New,
	SHA384:  sha512.New384,
	SHA512:  sha512.New,
	SHA3256: sha3.New256,
	SHA3512: sha3.New512,
}

// Hasher digests disclosures and key binding inputs. Its name is the value of the _sd_alg claim.
type Hasher struct {
	name    string
	newHash func() hash.Hash
}

// GetHasher returns the hasher for an _sd_alg value. Names are matched case-insensitively.
func GetHasher(alg string) (*Hasher, error) {
	name := strings.ToLower(alg)

	newHash, ok := hashFunctions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s '%s'", ErrDigestAlgorithmUnsupported, SDAlgorithmKey, alg)
	}

	return &Hasher{name: name, newHash: newHash}, nil
}

// DefaultHasher returns the sha-256 hasher used when _sd_alg is absent.
func DefaultHasher() *Hasher {
	return &Hasher{name: DefaultSDAlg, newHash: sha256.New}
}

// SupportedHashAlgorithms lists the names accepted by GetHasher.
func SupportedHashAlgorithms() []string {
	names := maps.Keys(hashFunctions)
	slices.Sort(names)

	return names
}

// Name returns the _sd_alg identifier.
func (h *Hasher) Name() string {
	return h.name
}

// Digest returns base64url(hash(ASCII(value))) without padding.
func (h *Hasher) Digest(value string) string {
	hh := h.newHash()
	hh.Write([]byte(value)) //nolint:errcheck // hash.Hash writes never fail

	return base64.RawURLEncoding.EncodeToString(hh.Sum(nil))
}
