/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonpointer"

	afgjwt "github.com/emotionlink/sdjwt/pkg/doc/jwt"
	"github.com/emotionlink/sdjwt/pkg/doc/sdjwt/common"
	"github.com/emotionlink/sdjwt/pkg/doc/util/maphelpers"
)

// Encoder conceals members and elements of a claim set, addressed by JSON pointers (RFC 6901).
// Its tree is consistent after every call.
type Encoder struct {
	claims      map[string]interface{}
	disclosures []*common.Disclosure

	hasher      *common.Hasher
	jsonMarshal common.MarshalFunc
	getSalt     func() (string, error)
}

// EncoderOpt is an Encoder option.
type EncoderOpt func(e *Encoder)

// WithEncoderHasher sets the digest algorithm (default sha-256).
func WithEncoderHasher(hasher *common.Hasher) EncoderOpt {
	return func(e *Encoder) {
		e.hasher = hasher
	}
}

// WithEncoderSaltFnc sets the salt source (default 128 random bits).
func WithEncoderSaltFnc(fnc func() (string, error)) EncoderOpt {
	return func(e *Encoder) {
		e.getSalt = fnc
	}
}

// WithEncoderJSONMarshaller sets the marshaller of disclosure arrays.
func WithEncoderJSONMarshaller(jsonMarshal common.MarshalFunc) EncoderOpt {
	return func(e *Encoder) {
		e.jsonMarshal = jsonMarshal
	}
}

// NewEncoder creates an encoder over a copy of claims.
func NewEncoder(claims map[string]interface{}, opts ...EncoderOpt) (*Encoder, error) {
	if claims == nil {
		return nil, fmt.Errorf("claims are not defined")
	}

	// JSON round trip: the tree only holds maps, slices, strings, json.Number, bools and nils.
	claimsBytes, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}

	tree, err := afgjwt.PayloadToMap(claimsBytes)
	if err != nil {
		return nil, err
	}

	if err = checkReservedNames(tree, ""); err != nil {
		return nil, err
	}

	e := &Encoder{
		claims:      tree,
		hasher:      common.DefaultHasher(),
		jsonMarshal: json.Marshal,
		getSalt:     common.GenerateSalt,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Conceal replaces the member or element at pointer by a digest and returns its disclosure.
// Object members move to the parent's _sd array, array elements become {"...": digest}.
func (e *Encoder) Conceal(pointer string) (*common.Disclosure, error) {
	salt, err := e.getSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	return e.ConcealWithSalt(pointer, salt)
}

// ConcealWithSalt is Conceal with a caller-provided salt.
func (e *Encoder) ConcealWithSalt(pointer, salt string) (*common.Disclosure, error) {
	tokens, err := parsePointer(pointer)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: the root cannot be concealed", common.ErrInvalidPointer)
	}

	parent, err := e.get(formatPointer(tokens[:len(tokens)-1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, pointer)
	}

	token := tokens[len(tokens)-1]

	var disclosure *common.Disclosure

	switch p := parent.(type) {
	case map[string]interface{}:
		value, ok := p[token]
		if !ok {
			return nil, fmt.Errorf("%w: member '%s' does not exist", common.ErrInvalidPointer, pointer)
		}

		disclosure, err = common.NewDisclosure(e.hasher, e.jsonMarshal, salt, token, value)
		if err != nil {
			return nil, err
		}

		if err = appendDigests(p, disclosure.Digest); err != nil {
			return nil, err
		}

		delete(p, token)
	case []interface{}:
		idx, ok := arrayIndex(token, len(p))
		if !ok {
			return nil, fmt.Errorf("%w: element '%s' does not exist", common.ErrInvalidPointer, pointer)
		}

		if isArrayElementDigest(p[idx]) {
			return nil, fmt.Errorf("%w: element '%s' is already concealed", common.ErrInvalidPointer, pointer)
		}

		disclosure, err = common.NewArrayElementDisclosure(e.hasher, e.jsonMarshal, salt, p[idx])
		if err != nil {
			return nil, err
		}

		p[idx] = map[string]interface{}{common.ArrayElementDigestKey: disclosure.Digest}
	default:
		return nil, fmt.Errorf("%w: parent of '%s' is not an object or an array", common.ErrInvalidPointer, pointer)
	}

	e.disclosures = append(e.disclosures, disclosure)

	return disclosure, nil
}

// AddDecoys adds n digests that no disclosure resolves to the object or array at pointer.
// Object decoys are shuffled into _sd, array decoys are inserted at random positions, so add
// array decoys after concealing the elements of that array.
func (e *Encoder) AddDecoys(pointer string, n int) error {
	if n < 0 {
		return fmt.Errorf("decoy count must not be negative")
	}

	if n == 0 {
		return nil
	}

	tokens, err := parsePointer(pointer)
	if err != nil {
		return err
	}

	target, err := e.get(pointer)
	if err != nil {
		return fmt.Errorf("%w: %s", err, pointer)
	}

	digests := make([]string, 0, n)

	for i := 0; i < n; i++ {
		digest, decoyErr := e.decoyDigest()
		if decoyErr != nil {
			return decoyErr
		}

		digests = append(digests, digest)
	}

	switch t := target.(type) {
	case map[string]interface{}:
		return appendDigests(t, digests...)
	case []interface{}:
		if len(tokens) == 0 {
			return fmt.Errorf("%w: root is not an array", common.ErrInvalidPointer)
		}

		arr := t

		for _, digest := range digests {
			pos, posErr := randomInt(len(arr) + 1)
			if posErr != nil {
				return posErr
			}

			arr = append(arr[:pos], append([]interface{}{
				map[string]interface{}{common.ArrayElementDigestKey: digest},
			}, arr[pos:]...)...)
		}

		return e.set(tokens, arr)
	default:
		return fmt.Errorf("%w: '%s' is not an object or an array", common.ErrInvalidPointer, pointer)
	}
}

// AddSDAlgProperty sets _sd_alg to the hasher name. Repeated calls leave the same value.
func (e *Encoder) AddSDAlgProperty() {
	e.claims[common.SDAlgorithmKey] = e.hasher.Name()
}

// Object returns a copy of the redacted claim set.
func (e *Encoder) Object() map[string]interface{} {
	return maphelpers.CopyMap(e.claims)
}

// Disclosures returns the disclosures created so far, in creation order.
func (e *Encoder) Disclosures() []*common.Disclosure {
	return append([]*common.Disclosure(nil), e.disclosures...)
}

// Hasher returns the digest algorithm of the encoder.
func (e *Encoder) Hasher() *common.Hasher {
	return e.hasher
}

func (e *Encoder) decoyDigest() (string, error) {
	salt, err := e.getSalt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	value, err := common.GenerateSalt()
	if err != nil {
		return "", fmt.Errorf("generate decoy value: %w", err)
	}

	decoy, err := common.NewArrayElementDisclosure(e.hasher, e.jsonMarshal, salt, value)
	if err != nil {
		return "", err
	}

	return decoy.Digest, nil
}

func (e *Encoder) get(pointer string) (interface{}, error) {
	jp, err := gojsonpointer.NewJsonPointer(pointer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidPointer, err)
	}

	value, _, err := jp.Get(e.claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidPointer, err)
	}

	if isArrayElementDigest(value) {
		return nil, fmt.Errorf("%w: path goes through a concealed element", common.ErrInvalidPointer)
	}

	return value, nil
}

// set replaces the value at a non-root pointer, used when an array has grown.
func (e *Encoder) set(tokens []string, value interface{}) error {
	jp, err := gojsonpointer.NewJsonPointer(formatPointer(tokens))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidPointer, err)
	}

	if _, err = jp.Set(e.claims, value); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidPointer, err)
	}

	return nil
}

// checkReservedNames rejects _sd, _sd_alg and "..." members anywhere in the input tree.
func checkReservedNames(v interface{}, path string) error {
	switch t := v.(type) {
	case map[string]interface{}:
		for name, child := range t {
			childPath := path + formatPointer([]string{name})

			if common.IsReservedClaimName(name) {
				return fmt.Errorf("%w: claims must not contain reserved claim '%s' at '%s'",
					common.ErrReservedClaimName, name, childPath)
			}

			if err := checkReservedNames(child, childPath); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, child := range t {
			if err := checkReservedNames(child, path+"/"+strconv.Itoa(i)); err != nil {
				return err
			}
		}
	}

	return nil
}

// parsePointer splits an RFC 6901 pointer into unescaped reference tokens and rejects paths
// through the reserved _sd, _sd_alg and "..." members.
func parsePointer(pointer string) ([]string, error) {
	if pointer == "" {
		return nil, nil
	}

	if !strings.HasPrefix(pointer, "/") {
		return nil, fmt.Errorf("%w: '%s' must start with '/'", common.ErrInvalidPointer, pointer)
	}

	tokens := strings.Split(pointer[1:], "/")

	for i, token := range tokens {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")

		if common.IsReservedClaimName(token) {
			return nil, fmt.Errorf("%w: '%s' goes through reserved member '%s'", common.ErrInvalidPointer, pointer, token)
		}

		tokens[i] = token
	}

	return tokens, nil
}

func formatPointer(tokens []string) string {
	var b strings.Builder

	for _, token := range tokens {
		b.WriteString("/")
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1"))
	}

	return b.String()
}

func arrayIndex(token string, length int) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}

	idx, err := strconv.Atoi(token)
	if err != nil || idx < 0 || idx >= length {
		return 0, false
	}

	return idx, true
}

func isArrayElementDigest(v interface{}) bool {
	obj, ok := v.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return false
	}

	_, ok = obj[common.ArrayElementDigestKey]

	return ok
}

// appendDigests adds digests to obj's _sd array and shuffles it. obj is left untouched on error.
func appendDigests(obj map[string]interface{}, digests ...string) error {
	var sd []interface{}

	if existing, ok := obj[common.SDKey]; ok {
		arr, isArr := existing.([]interface{})
		if !isArr {
			return fmt.Errorf("%w: existing %s is not an array", common.ErrInvalidPointer, common.SDKey)
		}

		sd = append(make([]interface{}, 0, len(arr)+len(digests)), arr...)
	}

	for _, digest := range digests {
		sd = append(sd, digest)
	}

	if err := shuffle(len(sd), func(i, j int) { sd[i], sd[j] = sd[j], sd[i] }); err != nil {
		return err
	}

	obj[common.SDKey] = sd

	return nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return err
		}

		swap(i, j)
	}

	return nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random int: %w", err)
	}

	return int(v.Int64()), nil
}
